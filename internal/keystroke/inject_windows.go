//go:build windows

package keystroke

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procSendInput = user32.NewProc("SendInput")
)

const (
	inputKeyboard  = 1
	keyeventfKeyUp = 0x0002
)

// Virtual-key codes.
var virtualKeys = map[Key]uint16{
	KeyShift:   0x10, // VK_SHIFT
	KeyControl: 0x11, // VK_CONTROL
	KeyAlt:     0x12, // VK_MENU
	KeySpace:   0x20, // VK_SPACE
}

// keybdInput mirrors KEYBDINPUT.
type keybdInput struct {
	vk        uint16
	scan      uint16
	flags     uint32
	time      uint32
	extraInfo uintptr
}

// keyboardInput mirrors INPUT with the keyboard arm of the union. The
// padding makes it as large as the MOUSEINPUT arm, which SendInput checks
// through cbSize.
type keyboardInput struct {
	typ     uint32
	ki      keybdInput
	padding [8]byte
}

// SendInputInjector injects events with user32!SendInput.
type SendInputInjector struct{}

// NewInjector returns the platform injector.
func NewInjector() Injector {
	return &SendInputInjector{}
}

func (s *SendInputInjector) Send(b Batch) error {
	if b.Len() == 0 {
		return nil
	}

	inputs := toInputs(b)
	sent, _, callErr := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(sent) != len(inputs) {
		var err error
		if errno, ok := callErr.(windows.Errno); !ok || errno != 0 {
			err = callErr
		}
		return &IncompleteError{Sent: int(sent), Total: len(inputs), Err: err}
	}
	return nil
}

func toInputs(b Batch) []keyboardInput {
	inputs := make([]keyboardInput, 0, b.Len())
	for _, ev := range b.events {
		in := keyboardInput{typ: inputKeyboard}
		in.ki.vk = virtualKeys[ev.Key]
		if ev.Up {
			in.ki.flags = keyeventfKeyUp
		}
		inputs = append(inputs, in)
	}
	return inputs
}
