// Package keystroke turns key-chord strings into synthetic key events and
// delivers them to the OS input queue.
//
// A chord such as "ctrl+space" becomes a Batch: the press events in chord
// order followed by the release events in reverse order, so the last key
// pressed is the first released. The set of supported keys is deliberately
// small (shift, ctrl/control, alt, space); these are the keys input methods
// bind their mode toggles to.
//
// Platform support for Injector:
//   - Windows: SendInput (user32)
//   - Linux: a transient /dev/uinput keyboard (requires write access to
//     /dev/uinput, usually the input group or a udev rule)
//   - others: unsupported
package keystroke

import (
	"fmt"

	"imselect/internal/ime"
)

// Injector delivers synthetic key events.
type Injector interface {
	// Send enqueues every event of b in a single call. It fails with an
	// *IncompleteError if the OS accepted fewer events than submitted.
	// An empty batch is a no-op.
	Send(b Batch) error
}

// InvalidKeyError names the first chord segment that is not a known key.
type InvalidKeyError struct {
	Key string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("keystroke: invalid key: %q", e.Key)
}

func (e *InvalidKeyError) Unwrap() error { return ime.ErrConfiguration }

// IncompleteError reports a partially accepted batch. Another process
// holding an exclusive input hook, or a secure desktop, can cause this.
type IncompleteError struct {
	Sent  int
	Total int
	Err   error
}

func (e *IncompleteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("keystroke: failed to send all inputs: sent %d/%d: %v", e.Sent, e.Total, e.Err)
	}
	return fmt.Sprintf("keystroke: failed to send all inputs: sent %d/%d", e.Sent, e.Total)
}

func (e *IncompleteError) Unwrap() []error {
	if e.Err != nil {
		return []error{ime.ErrInjection, e.Err}
	}
	return []error{ime.ErrInjection}
}
