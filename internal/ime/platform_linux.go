//go:build linux

package ime

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/godbus/dbus/v5"
)

// D-Bus names of the supported input method frameworks.
const (
	Fcitx5Service    = "org.fcitx.Fcitx5"
	Fcitx5Path       = "/controller"
	Fcitx5Controller = "org.fcitx.Fcitx.Controller1"

	IBusService   = "org.freedesktop.IBus"
	IBusPath      = "/org/freedesktop/IBus"
	IBusInterface = "org.freedesktop.IBus"
)

const linuxRemedy = `Please use system-specific tools:
- For ibus: /usr/bin/ibus engine <engine-name>
- For fcitx: fcitx-remote -s <input-method>
- For xkb-switch: xkb-switch -s <layout>`

// LinuxPlatform talks to Fcitx5 on the session bus, falling back to the
// IBus daemon on its private bus. A connection is opened for every call and
// closed before the call returns.
type LinuxPlatform struct {
	sessionBus func() (*dbus.Conn, error)
	ibusBus    func() (*dbus.Conn, error)
}

// NewLinuxPlatform creates the Linux backend.
func NewLinuxPlatform() *LinuxPlatform {
	return &LinuxPlatform{
		sessionBus: func() (*dbus.Conn, error) { return dbus.ConnectSessionBus() },
		ibusBus:    connectIBus,
	}
}

// NewPlatform returns the backend for the current OS.
func NewPlatform() Backend {
	return NewLinuxPlatform()
}

func (p *LinuxPlatform) Name() string {
	return "linux"
}

// framework is one connected input method framework.
type framework interface {
	current() (string, error)
	selectIM(name string) error
	close() error
}

func (p *LinuxPlatform) Current() (string, error) {
	fw, err := p.connect()
	if err != nil {
		return "", err
	}
	defer fw.close()
	return fw.current()
}

func (p *LinuxPlatform) Select(token string) error {
	fw, err := p.connect()
	if err != nil {
		return err
	}
	defer fw.close()
	return fw.selectIM(token)
}

// connect returns the first framework that is running.
func (p *LinuxPlatform) connect() (framework, error) {
	if conn, err := p.sessionBus(); err == nil {
		if hasOwner(conn, Fcitx5Service) {
			return &fcitx5{conn: conn}, nil
		}
		conn.Close()
	}

	if conn, err := p.ibusBus(); err == nil {
		return &ibus{conn: conn}, nil
	}

	return nil, &UnsupportedError{Platform: "Linux", Remedy: linuxRemedy}
}

func hasOwner(conn *dbus.Conn, name string) bool {
	var owned bool
	err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, name).Store(&owned)
	return err == nil && owned
}

// fcitx5 drives org.fcitx.Fcitx.Controller1.
type fcitx5 struct {
	conn *dbus.Conn
}

func (f *fcitx5) obj() dbus.BusObject {
	return f.conn.Object(Fcitx5Service, Fcitx5Path)
}

func (f *fcitx5) current() (string, error) {
	var name string
	if err := f.obj().Call(Fcitx5Controller+".CurrentInputMethod", 0).Store(&name); err != nil {
		return "", fmt.Errorf("ime: fcitx5 current input method: %w", err)
	}
	return name, nil
}

// fcitx5InputMethod mirrors one entry of AvailableInputMethods, a(ssssssb).
type fcitx5InputMethod struct {
	UniqueName   string
	Name         string
	NativeName   string
	Icon         string
	Label        string
	LanguageCode string
	Configurable bool
}

func (f *fcitx5) selectIM(name string) error {
	var available []fcitx5InputMethod
	if err := f.obj().Call(Fcitx5Controller+".AvailableInputMethods", 0).Store(&available); err != nil {
		return fmt.Errorf("ime: fcitx5 available input methods: %w", err)
	}
	if !containsInputMethod(available, name) {
		return fmt.Errorf("%w: '%s'", ErrSourceNotFound, name)
	}
	if err := f.obj().Call(Fcitx5Controller+".SetCurrentIM", 0, name).Err; err != nil {
		return fmt.Errorf("ime: fcitx5 set input method: %w", err)
	}
	return nil
}

func (f *fcitx5) close() error { return f.conn.Close() }

func containsInputMethod(list []fcitx5InputMethod, name string) bool {
	for _, im := range list {
		if im.UniqueName == name {
			return true
		}
	}
	return false
}

// ibus drives the IBus daemon's global engine.
type ibus struct {
	conn *dbus.Conn
}

func (b *ibus) obj() dbus.BusObject {
	return b.conn.Object(IBusService, IBusPath)
}

func (b *ibus) current() (string, error) {
	var desc dbus.Variant
	if err := b.obj().Call(IBusInterface+".GetGlobalEngine", 0).Store(&desc); err != nil {
		return "", fmt.Errorf("ime: ibus global engine: %w", err)
	}
	return engineName(desc)
}

func (b *ibus) selectIM(name string) error {
	if err := b.obj().Call(IBusInterface+".SetGlobalEngine", 0, name).Err; err != nil {
		return fmt.Errorf("ime: ibus set global engine %q: %w", name, err)
	}
	return nil
}

func (b *ibus) close() error { return b.conn.Close() }

// engineName extracts the engine name from a serialized IBusEngineDesc:
// ("IBusEngineDesc", attachments, name, longname, ...).
func engineName(desc dbus.Variant) (string, error) {
	fields, ok := desc.Value().([]interface{})
	if !ok || len(fields) < 3 {
		return "", fmt.Errorf("ime: unexpected engine description %s", desc.Signature())
	}
	if typeName, _ := fields[0].(string); typeName != "IBusEngineDesc" {
		return "", fmt.Errorf("ime: unexpected serialized type %q", typeName)
	}
	name, ok := fields[2].(string)
	if !ok {
		return "", errors.New("ime: engine description has no name")
	}
	return name, nil
}

// connectIBus dials the IBus daemon's private bus.
func connectIBus() (*dbus.Conn, error) {
	addr, err := ibusAddress()
	if err != nil {
		return nil, err
	}
	return dbus.Connect(addr)
}

// ibusAddress honours IBUS_ADDRESS and otherwise asks the ibus CLI.
func ibusAddress() (string, error) {
	if addr := os.Getenv("IBUS_ADDRESS"); addr != "" {
		return addr, nil
	}
	out, err := exec.Command("ibus", "address").Output()
	if err != nil {
		return "", fmt.Errorf("ime: ibus address: %w", err)
	}
	return parseIBusAddress(string(out))
}

func parseIBusAddress(out string) (string, error) {
	addr := strings.TrimSpace(out)
	if addr == "" || addr == "(null)" {
		return "", errors.New("ime: ibus-daemon is not running")
	}
	return addr, nil
}

var _ Backend = (*LinuxPlatform)(nil)
