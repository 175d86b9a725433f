//go:build windows

package ime

import (
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procGetKeyboardLayout = user32.NewProc("GetKeyboardLayout")
	procPostMessageW      = user32.NewProc("PostMessageW")
)

const wmInputLangChangeRequest = 0x0050

// WindowsPlatform reads and sets the keyboard layout of the foreground
// window. Tokens are decimal locale IDs (e.g. "1033" for en-US, "2052" for
// zh-CN), taken from the low word of the HKL.
type WindowsPlatform struct{}

// NewWindowsPlatform creates the Windows backend.
func NewWindowsPlatform() *WindowsPlatform {
	return &WindowsPlatform{}
}

// NewPlatform returns the backend for the current OS.
func NewPlatform() Backend {
	return NewWindowsPlatform()
}

func (p *WindowsPlatform) Name() string {
	return "windows"
}

func (p *WindowsPlatform) Current() (string, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return "", errors.New("ime: failed to get foreground window")
	}

	tid, err := windows.GetWindowThreadProcessId(hwnd, nil)
	if err != nil {
		return "", fmt.Errorf("ime: get window thread: %w", err)
	}

	hkl, _, _ := procGetKeyboardLayout.Call(uintptr(tid))
	return formatLocale(hkl), nil
}

func (p *WindowsPlatform) Select(token string) error {
	locale, err := parseLocale(token)
	if err != nil {
		return err
	}

	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return errors.New("ime: failed to get foreground window")
	}

	ret, _, callErr := procPostMessageW.Call(
		uintptr(hwnd),
		wmInputLangChangeRequest,
		0,
		uintptr(locale),
	)
	if ret == 0 {
		return fmt.Errorf("ime: failed to post input language change request: %w", callErr)
	}
	return nil
}

// formatLocale renders the locale half of an HKL.
func formatLocale(hkl uintptr) string {
	return strconv.FormatUint(uint64(hkl&0xFFFF), 10)
}

// parseLocale accepts the decimal form produced by formatLocale.
func parseLocale(token string) (uint32, error) {
	v, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return 0, Configf("invalid locale ID: %s", token)
	}
	return uint32(v), nil
}

var _ Backend = (*WindowsPlatform)(nil)
