package tracker

import "time"

// pollTimer is a one-shot timer re-armed after every tick, which gives a
// periodic timer that can never fire while its own tick is still running.
type pollTimer struct {
	name     string
	interval time.Duration
	timer    *time.Timer
	armed    bool
}

func newPollTimer(name string, interval time.Duration) *pollTimer {
	t := time.NewTimer(interval)
	t.Stop()
	return &pollTimer{name: name, interval: interval, timer: t}
}

// arm schedules an immediate first tick.
func (p *pollTimer) arm() {
	p.timer.Reset(0)
	p.armed = true
}

// rearm schedules the next tick one interval after the tick that started at
// started. A tick that overran its interval fires again right away.
func (p *pollTimer) rearm(started time.Time) {
	if !p.armed {
		return
	}
	next := p.interval - time.Since(started)
	if next < 0 {
		next = 0
	}
	p.timer.Reset(next)
}

func (p *pollTimer) disarm() {
	p.timer.Stop()
	p.armed = false
}

// C returns the timer channel, or nil while disarmed so a select on it
// never fires.
func (p *pollTimer) C() <-chan time.Time {
	if !p.armed {
		return nil
	}
	return p.timer.C
}
