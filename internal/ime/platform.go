package ime

// Backend is the synchronous get/set API a platform exposes for its
// current input method. Tokens are opaque; equality is exact string match.
type Backend interface {
	// Name returns the backend name (e.g., "windows", "macos", "fcitx5").
	Name() string

	// Current returns the token of the active input method.
	Current() (string, error)

	// Select makes token the active input method.
	Select(token string) error
}

// unsupportedBackend fails every call with the same UnsupportedError.
type unsupportedBackend struct {
	err *UnsupportedError
}

// NewUnsupported returns a Backend whose calls all fail with an
// UnsupportedError naming platform and carrying remedy as guidance.
func NewUnsupported(platform, remedy string) Backend {
	return &unsupportedBackend{err: &UnsupportedError{Platform: platform, Remedy: remedy}}
}

func (b *unsupportedBackend) Name() string { return "unsupported" }

func (b *unsupportedBackend) Current() (string, error) { return "", b.err }

func (b *unsupportedBackend) Select(string) error { return b.err }
