//go:build linux

package keystroke

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// uinput ioctls and event constants from <linux/uinput.h> and
// <linux/input-event-codes.h>.
const (
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502

	evSyn     = 0x00
	evKey     = 0x01
	synReport = 0

	busVirtual = 0x06
)

// Evdev key codes.
var evdevKeys = map[Key]uint16{
	KeyShift:   42, // KEY_LEFTSHIFT
	KeyControl: 29, // KEY_LEFTCTRL
	KeyAlt:     56, // KEY_LEFTALT
	KeySpace:   57, // KEY_SPACE
}

// UinputInjector creates a short-lived virtual keyboard for every Send and
// destroys it before returning.
type UinputInjector struct {
	// Path is the uinput device node.
	Path string

	// Settle is how long to wait after creating the device so the
	// compositor or X server has picked it up before events arrive.
	Settle time.Duration

	// Drain is how long to wait after writing before the device is
	// destroyed. Readers lose events still queued on a destroyed device.
	Drain time.Duration

	open  func(path string) (uinputDevice, error)
	sleep func(time.Duration)
}

// uinputDevice is a created virtual keyboard.
type uinputDevice interface {
	io.Writer
	destroy() error
	Close() error
}

// NewInjector returns the platform injector.
func NewInjector() Injector {
	return &UinputInjector{
		Path:   "/dev/uinput",
		Settle: 200 * time.Millisecond,
		Drain:  50 * time.Millisecond,
	}
}

func (u *UinputInjector) Send(b Batch) error {
	if b.Len() == 0 {
		return nil
	}

	open, sleep := u.open, u.sleep
	if open == nil {
		open = openUinput
	}
	if sleep == nil {
		sleep = time.Sleep
	}

	dev, err := open(u.Path)
	if err != nil {
		return &IncompleteError{Sent: 0, Total: b.Len(), Err: err}
	}
	defer dev.Close()

	sleep(u.Settle)

	payload := encodeEvents(b)
	n, err := dev.Write(payload)

	// Partially written frames may still be in flight, so drain either way.
	sleep(u.Drain)
	_ = dev.destroy()

	sent := n / (2 * inputEventSize)
	if sent > b.Len() {
		sent = b.Len()
	}
	if err != nil || n != len(payload) {
		return &IncompleteError{Sent: sent, Total: b.Len(), Err: err}
	}
	return nil
}

// uinputFile is a uinput node with a created device.
type uinputFile struct {
	*os.File
}

func (f uinputFile) destroy() error {
	return unix.IoctlSetInt(int(f.Fd()), uiDevDestroy, 0)
}

func openUinput(path string) (uinputDevice, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := setupDevice(f, int(f.Fd())); err != nil {
		f.Close()
		return nil, err
	}
	return uinputFile{f}, nil
}

// setupDevice registers every supported key and creates the device.
func setupDevice(f *os.File, fd int) error {
	if err := unix.IoctlSetInt(fd, uiSetEvBit, evKey); err != nil {
		return fmt.Errorf("UI_SET_EVBIT: %w", err)
	}
	for _, code := range evdevKeys {
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, int(code)); err != nil {
			return fmt.Errorf("UI_SET_KEYBIT %d: %w", code, err)
		}
	}
	if _, err := f.Write(userDev("im-select virtual keyboard")); err != nil {
		return fmt.Errorf("write uinput_user_dev: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		return fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	return nil
}

// inputEvent mirrors struct input_event. The timeval width follows the
// architecture, so the record is 24 bytes on 64-bit kernels and 16 on
// 32-bit ones.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

var inputEventSize = binary.Size(inputEvent{})

// encodeEvents renders every event in its own frame, each followed by a
// SYN_REPORT, so a press and release of the same key never share a frame.
func encodeEvents(b Batch) []byte {
	var buf bytes.Buffer
	for _, ev := range b.events {
		value := int32(1)
		if ev.Up {
			value = 0
		}
		binary.Write(&buf, binary.NativeEndian, inputEvent{Type: evKey, Code: evdevKeys[ev.Key], Value: value})
		binary.Write(&buf, binary.NativeEndian, inputEvent{Type: evSyn, Code: synReport})
	}
	return buf.Bytes()
}

// userDev builds the legacy struct uinput_user_dev: name[80], input_id,
// ff_effects_max and four absolute-axis arrays of 64 int32 each.
func userDev(name string) []byte {
	var dev struct {
		Name         [80]byte
		Bustype      uint16
		Vendor       uint16
		Product      uint16
		Version      uint16
		FFEffectsMax uint32
		Absmax       [64]int32
		Absmin       [64]int32
		Absfuzz      [64]int32
		Absflat      [64]int32
	}
	copy(dev.Name[:], name)
	dev.Bustype = busVirtual
	dev.Vendor = 0x1
	dev.Product = 0x1
	dev.Version = 1

	var buf bytes.Buffer
	binary.Write(&buf, binary.NativeEndian, &dev)
	return buf.Bytes()
}
