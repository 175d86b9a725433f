package ime

import (
	"errors"
	"fmt"
)

// Error categories. Typed errors in the keystroke, probe and switcher
// packages unwrap to one of these so callers can branch with errors.Is.
var (
	// ErrConfiguration covers bad patterns, bad chords and bad policy values.
	// It is never retried.
	ErrConfiguration = errors.New("ime: configuration error")

	// ErrTransientProbe indicates the accessibility tree or one of its
	// elements could not be reached on a single attempt.
	ErrTransientProbe = errors.New("ime: probe unavailable")

	// ErrInjection indicates synthetic input could not be delivered.
	ErrInjection = errors.New("ime: input injection failed")

	// ErrVerificationTimeout indicates the poll and resend budget ran out
	// without observing the target token.
	ErrVerificationTimeout = errors.New("ime: verification timed out")

	// ErrUnsupported indicates no probe or direct API exists for this OS or mode.
	ErrUnsupported = errors.New("ime: unsupported platform")

	// ErrSourceNotFound indicates a direct backend does not know the requested token.
	ErrSourceNotFound = errors.New("ime: input source not found")
)

// UnsupportedError reports a missing capability on the current platform.
// Feature defaults to direct input method control. Remedy is free text
// shown to the user verbatim.
type UnsupportedError struct {
	Platform string
	Feature  string
	Remedy   string
}

func (e *UnsupportedError) Error() string {
	feature := e.Feature
	if feature == "" {
		feature = "direct input method control"
	}
	if e.Remedy == "" {
		return fmt.Sprintf("%s is not supported on %s", feature, e.Platform)
	}
	return fmt.Sprintf("%s is not supported on %s.\n%s", feature, e.Platform, e.Remedy)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// Configf returns a configuration error with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
