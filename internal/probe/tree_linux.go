//go:build linux

package probe

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// AT-SPI D-Bus names.
const (
	a11yBusService    = "org.a11y.Bus"
	a11yBusPath       = "/org/a11y/bus"
	registryService   = "org.a11y.atspi.Registry"
	rootPath          = "/org/a11y/atspi/accessible/root"
	nullPath          = "/org/a11y/atspi/null"
	accessibleIface   = "org.a11y.atspi.Accessible"
	propertiesGetCall = "org.freedesktop.DBus.Properties.Get"
)

// AT-SPI roles treated as indicator buttons.
const (
	atspiRolePushButton   = 43
	atspiRoleToggleButton = 62
)

// Traversal limits. The accessibility graph is live and may alias nodes;
// the visited set stops cycles and the limits stop runaway applications.
const (
	maxDepth = 64
	maxNodes = 10000
)

// objectRef addresses one accessible object, D-Bus signature (so).
type objectRef struct {
	Name string
	Path dbus.ObjectPath
}

func (r objectRef) isNull() bool {
	return r.Path == "" || r.Path == nullPath
}

// accessibleBus is the subset of org.a11y.atspi.Accessible the probe uses.
type accessibleBus interface {
	children(ref objectRef) ([]objectRef, error)
	role(ref objectRef) (uint32, error)
	name(ref objectRef) (string, error)
}

// ATSPISource acquires the desktop tree from the AT-SPI registry.
type ATSPISource struct{}

// NewSource returns the platform Source.
func NewSource() Source {
	return ATSPISource{}
}

// Open resolves the accessibility bus through the session bus and
// connects to it. The session bus connection is closed before returning.
func (ATSPISource) Open() (Tree, error) {
	session, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	var addr string
	err = session.Object(a11yBusService, a11yBusPath).Call(a11yBusService+".GetAddress", 0).Store(&addr)
	session.Close()
	if err != nil {
		return nil, fmt.Errorf("get accessibility bus address: %w", err)
	}

	conn, err := dbus.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("connect accessibility bus: %w", err)
	}
	return &atspiTree{conn: conn, bus: &dbusAccessible{conn: conn}}, nil
}

type atspiTree struct {
	conn *dbus.Conn
	bus  accessibleBus
}

func (t *atspiTree) Root() (Element, error) {
	if t.bus == nil {
		return nil, errors.New("tree closed")
	}
	return &atspiElement{bus: t.bus, ref: objectRef{Name: registryService, Path: rootPath}}, nil
}

func (t *atspiTree) Close() error {
	t.bus = nil
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

type atspiElement struct {
	bus accessibleBus
	ref objectRef
}

func (e *atspiElement) FindChild(name string) (Element, error) {
	children, err := e.bus.children(e.ref)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if c.isNull() {
			continue
		}
		n, err := e.bus.name(c)
		if err != nil {
			continue
		}
		if n == name {
			return &atspiElement{bus: e.bus, ref: c}, nil
		}
	}
	return nil, nil
}

// FindDescendants walks the subtree depth-first in child order, which
// matches the order UI Automation's FindAll reports on Windows.
func (e *atspiElement) FindDescendants(role Role) ([]Element, error) {
	if role != RoleButton {
		return nil, nil
	}

	visited := map[objectRef]bool{e.ref: true}
	var out []Element
	var walk func(ref objectRef, depth int) error
	walk = func(ref objectRef, depth int) error {
		if depth > maxDepth {
			return nil
		}
		children, err := e.bus.children(ref)
		if err != nil {
			if depth == 0 {
				return err
			}
			return nil
		}
		for _, c := range children {
			if c.isNull() || visited[c] {
				continue
			}
			if len(visited) >= maxNodes {
				return nil
			}
			visited[c] = true

			if r, err := e.bus.role(c); err == nil && isButtonRole(r) {
				out = append(out, &atspiElement{bus: e.bus, ref: c})
			}
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(e.ref, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *atspiElement) Label() (string, error) {
	return e.bus.name(e.ref)
}

func isButtonRole(r uint32) bool {
	return r == atspiRolePushButton || r == atspiRoleToggleButton
}

// dbusAccessible implements accessibleBus over a live connection.
type dbusAccessible struct {
	conn *dbus.Conn
}

func (d *dbusAccessible) obj(ref objectRef) dbus.BusObject {
	return d.conn.Object(ref.Name, ref.Path)
}

func (d *dbusAccessible) children(ref objectRef) ([]objectRef, error) {
	var out []objectRef
	if err := d.obj(ref).Call(accessibleIface+".GetChildren", 0).Store(&out); err != nil {
		return nil, fmt.Errorf("GetChildren %s%s: %w", ref.Name, ref.Path, err)
	}
	return out, nil
}

func (d *dbusAccessible) role(ref objectRef) (uint32, error) {
	var r uint32
	if err := d.obj(ref).Call(accessibleIface+".GetRole", 0).Store(&r); err != nil {
		return 0, err
	}
	return r, nil
}

func (d *dbusAccessible) name(ref objectRef) (string, error) {
	var v dbus.Variant
	if err := d.obj(ref).Call(propertiesGetCall, 0, accessibleIface, "Name").Store(&v); err != nil {
		return "", err
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("Name of %s%s is %s, not a string", ref.Name, ref.Path, v.Signature())
	}
	return s, nil
}
