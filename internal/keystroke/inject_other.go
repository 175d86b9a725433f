//go:build !windows && !linux

package keystroke

import (
	"runtime"

	"imselect/internal/ime"
)

type unsupportedInjector struct{}

// NewInjector returns the platform injector.
func NewInjector() Injector {
	return unsupportedInjector{}
}

func (unsupportedInjector) Send(b Batch) error {
	if b.Len() == 0 {
		return nil
	}
	return &ime.UnsupportedError{
		Platform: runtime.GOOS,
		Feature:  "key injection",
		Remedy:   "Synthetic key injection is only available on Windows and Linux; use the direct mode instead.",
	}
}
