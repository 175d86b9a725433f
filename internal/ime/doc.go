// Package ime reads and changes the active input method of the foreground
// application through the platform's authoritative, synchronous API.
//
// # Backends
//
//	┌──────────┬──────────────────────────────────────────────────────────┐
//	│ Platform │ API                                                      │
//	├──────────┼──────────────────────────────────────────────────────────┤
//	│ Windows  │ GetKeyboardLayout / WM_INPUTLANGCHANGEREQUEST (locale ID)│
//	│ macOS    │ Text Input Sources (TISSelectInputSource)                │
//	│ Linux    │ Fcitx5 controller or IBus global engine over D-Bus       │
//	│ other    │ none, every call returns *UnsupportedError               │
//	└──────────┴──────────────────────────────────────────────────────────┘
//
// A direct call is self-confirming, so the verify and resend machinery in
// package switcher is bypassed entirely on this path. Input methods whose
// state is only visible on screen (for example the conversion mode of
// Microsoft Pinyin) are handled by the probe/inject pipeline instead.
//
// # Errors
//
// errors.go defines the error categories shared by every package in the
// module. Typed errors elsewhere unwrap to one of them:
//
//	ErrConfiguration        bad pattern, chord or policy; never retried
//	ErrTransientProbe       tree or element unreachable on one attempt
//	ErrInjection            synthetic input not fully accepted
//	ErrVerificationTimeout  target never observed within the budget
//	ErrUnsupported          no API for this OS or mode
package ime
