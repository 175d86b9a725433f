package keystroke

import "strings"

// Key identifies one of the supported keys independent of platform codes.
type Key uint8

const (
	KeyShift Key = iota + 1
	KeyControl
	KeyAlt
	KeySpace
)

var keyNames = map[Key]string{
	KeyShift:   "shift",
	KeyControl: "ctrl",
	KeyAlt:     "alt",
	KeySpace:   "space",
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return "unknown"
}

// LookupKey resolves a key name case-insensitively.
func LookupKey(name string) (Key, bool) {
	switch strings.ToLower(name) {
	case "shift":
		return KeyShift, true
	case "ctrl", "control":
		return KeyControl, true
	case "alt":
		return KeyAlt, true
	case "space":
		return KeySpace, true
	default:
		return 0, false
	}
}

// Event is a single press or release of a key.
type Event struct {
	Key Key
	Up  bool
}

// Batch is an immutable sequence of key events produced by Parse.
// The same Batch may be sent more than once.
type Batch struct {
	keys   []Key
	events []Event
}

// Parse converts a "+"-delimited chord such as "ctrl+space" into a Batch.
// Segments are trimmed and matched case-insensitively. The first segment
// that does not name a supported key fails the whole chord with an
// *InvalidKeyError; no partial batch is returned.
func Parse(chord string) (Batch, error) {
	segments := strings.Split(chord, "+")
	keys := make([]Key, 0, len(segments))
	for _, seg := range segments {
		k, ok := LookupKey(strings.TrimSpace(seg))
		if !ok {
			return Batch{}, &InvalidKeyError{Key: seg}
		}
		keys = append(keys, k)
	}
	return newBatch(keys), nil
}

func newBatch(keys []Key) Batch {
	events := make([]Event, 0, 2*len(keys))
	for _, k := range keys {
		events = append(events, Event{Key: k})
	}
	for i := len(keys) - 1; i >= 0; i-- {
		events = append(events, Event{Key: keys[i], Up: true})
	}
	return Batch{keys: keys, events: events}
}

// Events returns a copy of the batch's events.
func (b Batch) Events() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Len returns the number of events.
func (b Batch) Len() int { return len(b.events) }

// String renders the chord in canonical form, e.g. "ctrl+space".
func (b Batch) String() string {
	names := make([]string, len(b.keys))
	for i, k := range b.keys {
		names[i] = k.String()
	}
	return strings.Join(names, "+")
}
