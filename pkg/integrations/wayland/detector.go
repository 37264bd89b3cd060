package wayland

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/sleepy-project/sleepy-agent/pkg/integrations/process"
	"github.com/sleepy-project/sleepy-agent/pkg/window"
)

// commandTimeout bounds every compositor and logind query.
var commandTimeout = 2 * time.Second

// Detector implements window.Detector for Wayland compositors
type Detector struct {
	compositor  string
	hasSwaymsg  bool
	hasHyprctl  bool
	hasGdbus    bool
	hasKdotool  bool
	hasLoginctl bool
}

// NewDetector creates a new Wayland detector
func NewDetector() *Detector {
	d := &Detector{}
	d.hasSwaymsg = commandExists("swaymsg")
	d.hasHyprctl = commandExists("hyprctl")
	d.hasGdbus = commandExists("gdbus")
	d.hasKdotool = commandExists("kdotool")
	d.hasLoginctl = commandExists("loginctl")
	d.compositor = detectCompositor()
	return d
}

func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// runCommand runs a command and returns its stdout. The command is killed once
// commandTimeout passes.
func runCommand(name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = commandTimeout
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, errors.Errorf("%s timed out after %v", name, commandTimeout)
	}
	return out, err
}

// detectCompositor attempts to detect the running Wayland compositor
func detectCompositor() string {
	if os.Getenv("SWAYSOCK") != "" {
		return "sway"
	}
	if os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" {
		return "hyprland"
	}

	compositors := []struct{ process, name string }{
		{"sway", "sway"},
		{"Hyprland", "hyprland"},
		{"gnome-shell", "gnome"},
		{"kwin_wayland", "kde"},
	}

	for _, c := range compositors {
		if _, err := runCommand("pgrep", "-x", c.process); err == nil {
			return c.name
		}
	}

	return "unknown"
}

// IsAvailable checks if Wayland detection is available
func (d *Detector) IsAvailable() bool {
	switch d.compositor {
	case "sway":
		return d.hasSwaymsg
	case "hyprland":
		return d.hasHyprctl
	case "gnome":
		return d.hasGdbus
	case "kde":
		return d.hasKdotool
	default:
		return false
	}
}

// GetDisplayServer returns "wayland"
func (d *Detector) GetDisplayServer() string {
	return "wayland"
}

// GetFocusedWindow returns information about the currently focused window
func (d *Detector) GetFocusedWindow() (*window.WindowInfo, error) {
	var (
		info *window.WindowInfo
		err  error
	)

	switch d.compositor {
	case "sway":
		info, err = d.getFocusedWindowSway()
	case "hyprland":
		info, err = d.getFocusedWindowHyprland()
	case "gnome":
		info, err = d.getFocusedWindowGnome()
	case "kde":
		info, err = d.getFocusedWindowKDE()
	default:
		return nil, errors.Errorf("unsupported wayland compositor: %s", d.compositor)
	}
	if err != nil {
		return nil, err
	}

	info.DisplayServer = "wayland"
	process.Fill(info)
	return info, nil
}

type swayNode struct {
	Name             string     `json:"name"`
	Focused          bool       `json:"focused"`
	AppID            string     `json:"app_id"`
	PID              int32      `json:"pid"`
	Nodes            []swayNode `json:"nodes"`
	FloatingNodes    []swayNode `json:"floating_nodes"`
	WindowProperties *struct {
		Class string `json:"class"`
	} `json:"window_properties"`
}

func (d *Detector) getFocusedWindowSway() (*window.WindowInfo, error) {
	out, err := runCommand("swaymsg", "-t", "get_tree", "-r")
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute swaymsg")
	}
	return parseSwayTree(out)
}

// parseSwayTree walks the sway layout tree and returns the focused leaf
func parseSwayTree(data []byte) (*window.WindowInfo, error) {
	var root swayNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, "failed to decode sway tree")
	}

	node := findFocused(&root)
	if node == nil {
		return nil, errors.New("no focused window in sway tree")
	}

	appName := node.AppID
	if appName == "" && node.WindowProperties != nil {
		appName = node.WindowProperties.Class
	}

	return &window.WindowInfo{
		WindowTitle: node.Name,
		AppName:     appName,
		PID:         node.PID,
	}, nil
}

func findFocused(node *swayNode) *swayNode {
	if node.Focused && node.PID > 0 {
		return node
	}
	for i := range node.Nodes {
		if found := findFocused(&node.Nodes[i]); found != nil {
			return found
		}
	}
	for i := range node.FloatingNodes {
		if found := findFocused(&node.FloatingNodes[i]); found != nil {
			return found
		}
	}
	return nil
}

type hyprlandWindow struct {
	Class string `json:"class"`
	Title string `json:"title"`
	PID   int32  `json:"pid"`
}

func (d *Detector) getFocusedWindowHyprland() (*window.WindowInfo, error) {
	out, err := runCommand("hyprctl", "activewindow", "-j")
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute hyprctl")
	}
	return parseHyprlandWindow(out)
}

func parseHyprlandWindow(data []byte) (*window.WindowInfo, error) {
	var w hyprlandWindow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(err, "failed to decode hyprctl output")
	}
	if w.Class == "" && w.Title == "" && w.PID <= 0 {
		return nil, errors.New("hyprland reports no active window")
	}

	return &window.WindowInfo{
		WindowTitle: w.Title,
		AppName:     w.Class,
		PID:         w.PID,
	}, nil
}

const gnomeScript = `
try {
	let win = global.get_window_actors().map(a => a.meta_window).find(w => w && w.has_focus());
	win ? [win.get_wm_class() || '', win.get_title() || '', win.get_pid() || 0].join('|||') : '';
} catch (e) {
	'';
}`

// getFocusedWindowGnome asks GNOME Shell over D-Bus. Newer shells block Eval
// unless unsafe mode is on, in which case the reply starts with "(false,".
func (d *Detector) getFocusedWindowGnome() (*window.WindowInfo, error) {
	out, err := runCommand("gdbus", "call", "--session",
		"--dest", "org.gnome.Shell",
		"--object-path", "/org/gnome/Shell",
		"--method", "org.gnome.Shell.Eval",
		gnomeScript)
	if err != nil {
		return nil, errors.Wrap(err, "failed to call org.gnome.Shell.Eval")
	}
	return parseGnomeEval(string(out))
}

// parseGnomeEval parses output like: (true, 'firefox|||Title|||1234')
func parseGnomeEval(output string) (*window.WindowInfo, error) {
	result := strings.TrimSpace(output)
	if !strings.HasPrefix(result, "(true,") {
		return nil, errors.New("GNOME Shell Eval is not permitted")
	}

	result = strings.TrimPrefix(result, "(true,")
	result = strings.TrimSuffix(result, ")")
	result = strings.Trim(strings.TrimSpace(result), `'"`)

	parts := strings.Split(result, "|||")
	if len(parts) < 2 || (parts[0] == "" && parts[1] == "") {
		return nil, errors.New("GNOME Shell reports no focused window")
	}

	info := &window.WindowInfo{
		AppName:     parts[0],
		WindowTitle: parts[1],
	}
	if len(parts) >= 3 {
		if pid, err := strconv.ParseInt(parts[2], 10, 32); err == nil {
			info.PID = int32(pid)
		}
	}
	return info, nil
}

// getFocusedWindowKDE uses kdotool, which runs a KWin script and relays its
// output. The chained commands print the caption, then the pid.
func (d *Detector) getFocusedWindowKDE() (*window.WindowInfo, error) {
	out, err := runCommand("kdotool", "getactivewindow", "getwindowname", "getwindowpid")
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute kdotool")
	}
	return parseKdotool(string(out))
}

func parseKdotool(output string) (*window.WindowInfo, error) {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, errors.New("KWin reports no active window")
	}

	info := &window.WindowInfo{WindowTitle: strings.TrimSpace(lines[0])}
	if len(lines) >= 2 {
		if pid, err := strconv.ParseInt(strings.TrimSpace(lines[len(lines)-1]), 10, 32); err == nil {
			info.PID = int32(pid)
		}
	}
	return info, nil
}

// GetIdleTime reads the logind idle hint for the current session. Wayland
// has no portable idle query; compositors that do not feed logind report 0.
func (d *Detector) GetIdleTime() (time.Duration, error) {
	if !d.hasLoginctl {
		return 0, errors.New("loginctl not available")
	}

	session := os.Getenv("XDG_SESSION_ID")
	if session == "" {
		session = "auto"
	}

	out, err := runCommand("loginctl", "show-session", session, "-p", "IdleHint", "-p", "IdleSinceHint")
	if err != nil {
		return 0, errors.Wrap(err, "failed to query logind session")
	}

	return parseLogindIdle(string(out), time.Now())
}

// parseLogindIdle converts IdleHint/IdleSinceHint (usec since epoch) into a duration
func parseLogindIdle(output string, now time.Time) (time.Duration, error) {
	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if ok {
			props[key] = value
		}
	}

	hint, ok := props["IdleHint"]
	if !ok {
		return 0, errors.New("IdleHint missing from logind output")
	}
	if hint != "yes" {
		return 0, nil
	}

	usec, err := strconv.ParseInt(props["IdleSinceHint"], 10, 64)
	if err != nil || usec <= 0 {
		return 0, errors.Errorf("invalid IdleSinceHint %q", props["IdleSinceHint"])
	}

	idle := now.Sub(time.UnixMicro(usec))
	if idle < 0 {
		return 0, nil
	}
	return idle, nil
}

// Close cleans up resources
func (d *Detector) Close() error {
	return nil
}
