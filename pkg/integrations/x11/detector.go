package x11

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sleepy-project/sleepy-agent/pkg/integrations/process"
	"github.com/sleepy-project/sleepy-agent/pkg/window"
)

// Detector implements window.Detector for X11 using a persistent X connection.
type Detector struct {
	mu     sync.Mutex
	client *client
}

// NewDetector creates a new X11 detector. The X connection is opened lazily.
func NewDetector() *Detector {
	return &Detector{}
}

// conn returns the cached client, dialing the X server if needed.
func (d *Detector) conn() (*client, error) {
	if d.client != nil {
		return d.client, nil
	}
	c, err := newClient()
	if err != nil {
		return nil, err
	}
	d.client = c
	return c, nil
}

// reset drops a connection that failed mid-query so the next call redials.
func (d *Detector) reset() {
	if d.client != nil {
		d.client.close()
		d.client = nil
	}
}

// checkConn resets the connection after a failed query if the X server no
// longer answers, e.g. after it restarted.
func (d *Detector) checkConn(c *client) {
	if err := c.ping(); err != nil {
		d.reset()
	}
}

// IsAvailable checks if an X server is reachable
func (d *Detector) IsAvailable() bool {
	if os.Getenv("DISPLAY") == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.conn()
	return err == nil
}

// GetDisplayServer returns "x11"
func (d *Detector) GetDisplayServer() string {
	return "x11"
}

// GetFocusedWindow returns information about the currently focused window
func (d *Detector) GetFocusedWindow() (*window.WindowInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.conn()
	if err != nil {
		return nil, err
	}

	win, err := c.activeWindow()
	if err != nil {
		d.checkConn(c)
		return nil, err
	}

	instance, class := c.windowClass(win)
	appName := class
	if appName == "" {
		appName = instance
	}

	info := &window.WindowInfo{
		WindowTitle:   c.windowName(win),
		AppName:       appName,
		PID:           c.windowPID(win),
		DisplayServer: "x11",
	}
	process.Fill(info)

	if info.Label() == "" {
		d.checkConn(c)
		return nil, errors.Errorf("focused window 0x%x has no title, class or pid", uint32(win))
	}
	return info, nil
}

// GetIdleTime returns the time since the last input seen by the X server
func (d *Detector) GetIdleTime() (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.conn()
	if err != nil {
		return 0, err
	}

	idle, err := c.idleTime()
	if err != nil {
		d.checkConn(c)
		return 0, err
	}
	return idle, nil
}

// Close cleans up resources
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.reset()
	return nil
}
