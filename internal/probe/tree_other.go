//go:build !linux && !(windows && cgo)

package probe

import (
	"runtime"

	"imselect/internal/ime"
)

type unsupportedSource struct{}

// NewSource returns the platform Source.
func NewSource() Source {
	return unsupportedSource{}
}

func (unsupportedSource) Open() (Tree, error) {
	remedy := "The probe mode needs UI Automation (Windows, built with cgo) or AT-SPI (Linux)."
	if runtime.GOOS == "darwin" {
		remedy = "Use the direct mode; macOS exposes the input source through Text Input Sources."
	}
	return nil, &ime.UnsupportedError{Platform: runtime.GOOS, Feature: "accessibility probing", Remedy: remedy}
}
