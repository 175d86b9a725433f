//go:build !darwin && !windows && !linux

package ime

import "runtime"

// NewPlatform returns the backend for the current OS.
func NewPlatform() Backend {
	return NewUnsupported(runtime.GOOS, "")
}
