package x11

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
)

var atomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_NAME",
	"_NET_WM_PID",
	"WM_NAME",
	"WM_CLASS",
	"UTF8_STRING",
}

// client is a single X connection with the atoms the detector needs.
type client struct {
	conn        *xgb.Conn
	root        xproto.Window
	atoms       map[string]xproto.Atom
	hasSaverExt bool

	// ping makes a round trip to the server; an error means the connection
	// is gone.
	ping func() error
}

func newClient() (*client, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to X server")
	}

	setup := xproto.Setup(conn)
	c := &client{
		conn:  conn,
		root:  setup.DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom, len(atomNames)),
	}
	c.ping = func() error {
		_, err := xproto.GetInputFocus(conn).Reply()
		return err
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "failed to intern atom %s", name)
		}
		c.atoms[name] = reply.Atom
	}

	// MIT-SCREEN-SAVER is optional; without it idle time reads as zero.
	c.hasSaverExt = screensaver.Init(conn) == nil

	return c, nil
}

func (c *client) close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *client) getProperty(win xproto.Window, atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(c.conn, false, win, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (c *client) activeWindowFromProperty() xproto.Window {
	data, err := c.getProperty(c.root, c.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return xproto.Window(binary.LittleEndian.Uint32(data))
}

func (c *client) activeWindowFromInputFocus() xproto.Window {
	reply, err := xproto.GetInputFocus(c.conn).Reply()
	if err != nil {
		return 0
	}
	return reply.Focus
}

func (c *client) topLevelParent(win xproto.Window) xproto.Window {
	for {
		reply, err := xproto.QueryTree(c.conn, win).Reply()
		if err != nil || reply.Parent == c.root || reply.Parent == 0 {
			return win
		}
		win = reply.Parent
	}
}

// activeWindow prefers the EWMH active window and falls back to the input
// focus owner's top-level parent. Window managers update _NET_ACTIVE_WINDOW
// asynchronously, so a couple of short retries are allowed.
func (c *client) activeWindow() (xproto.Window, error) {
	for i := 0; i < 3; i++ {
		win := c.activeWindowFromProperty()
		if win != 0 {
			return win, nil
		}

		win = c.activeWindowFromInputFocus()
		if win != 0 && win != c.root && win != xproto.InputFocusPointerRoot {
			return c.topLevelParent(win), nil
		}

		time.Sleep(20 * time.Millisecond)
	}

	return 0, errors.New("no active window found")
}

func (c *client) windowName(win xproto.Window) string {
	data, err := c.getProperty(win, c.atoms["_NET_WM_NAME"], c.atoms["UTF8_STRING"], 256)
	if err == nil && len(data) > 0 {
		return trimProperty(data)
	}

	data, err = c.getProperty(win, c.atoms["WM_NAME"], xproto.AtomString, 256)
	if err == nil && len(data) > 0 {
		return trimProperty(data)
	}

	return ""
}

func (c *client) windowClass(win xproto.Window) (instance, class string) {
	data, err := c.getProperty(win, c.atoms["WM_CLASS"], xproto.AtomString, 256)
	if err != nil {
		return "", ""
	}
	return splitWMClass(data)
}

func (c *client) windowPID(win xproto.Window) int32 {
	data, err := c.getProperty(win, c.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(data))
}

func (c *client) idleTime() (time.Duration, error) {
	if !c.hasSaverExt {
		return 0, errors.New("MIT-SCREEN-SAVER extension not available")
	}
	reply, err := screensaver.QueryInfo(c.conn, xproto.Drawable(c.root)).Reply()
	if err != nil {
		return 0, errors.Wrap(err, "failed to query screensaver info")
	}
	return time.Duration(reply.MsSinceUserInput) * time.Millisecond, nil
}

func trimProperty(data []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(data), "\x00"))
}

// splitWMClass decodes the two NUL-terminated strings of WM_CLASS.
func splitWMClass(data []byte) (instance, class string) {
	if len(data) == 0 {
		return "", ""
	}
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) >= 1 {
		instance = parts[0]
	}
	if len(parts) >= 2 {
		class = parts[1]
	}
	return instance, class
}
