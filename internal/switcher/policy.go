package switcher

import (
	"fmt"
	"time"

	"imselect/internal/ime"
)

// Default timings, tuned against Microsoft Pinyin on Windows 11 where the
// taskbar indicator usually repaints within 100-300ms of the chord.
const (
	DefaultSettleDelay  = 100 * time.Millisecond
	DefaultPollInterval = 50 * time.Millisecond
	DefaultPollAttempts = 5
	DefaultResendRounds = 1
	DefaultResendDelay  = 200 * time.Millisecond
)

// Policy bounds how long a switch may wait for the probe to converge.
// Zero PollAttempts means "no verification"; zero ResendRounds means
// "no resend".
type Policy struct {
	// SettleDelay is slept once after each send, before the first poll.
	SettleDelay time.Duration

	// PollInterval is slept before every poll.
	PollInterval time.Duration

	// PollAttempts is the number of polls per send.
	PollAttempts int

	// ResendRounds is the number of additional sends after the first.
	ResendRounds int

	// ResendDelay is slept before every resend.
	ResendDelay time.Duration
}

// DefaultPolicy returns the default timings.
func DefaultPolicy() Policy {
	return Policy{
		SettleDelay:  DefaultSettleDelay,
		PollInterval: DefaultPollInterval,
		PollAttempts: DefaultPollAttempts,
		ResendRounds: DefaultResendRounds,
		ResendDelay:  DefaultResendDelay,
	}
}

// PolicyError reports a negative policy value.
type PolicyError struct {
	Field string
	Value string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("switch: %s must not be negative, got %s", e.Field, e.Value)
}

func (e *PolicyError) Unwrap() error { return ime.ErrConfiguration }

// Validate rejects negative values.
func (p Policy) Validate() error {
	durations := []struct {
		field string
		d     time.Duration
	}{
		{"settle delay", p.SettleDelay},
		{"poll interval", p.PollInterval},
		{"resend delay", p.ResendDelay},
	}
	for _, f := range durations {
		if f.d < 0 {
			return &PolicyError{Field: f.field, Value: f.d.String()}
		}
	}
	if p.PollAttempts < 0 {
		return &PolicyError{Field: "poll attempts", Value: fmt.Sprint(p.PollAttempts)}
	}
	if p.ResendRounds < 0 {
		return &PolicyError{Field: "resend rounds", Value: fmt.Sprint(p.ResendRounds)}
	}
	return nil
}

// MaxSends is the number of injections a non-converging switch performs.
func (p Policy) MaxSends() int {
	return 1 + p.ResendRounds
}

// MaxPolls is the number of probe reads after the initial check.
func (p Policy) MaxPolls() int {
	return p.PollAttempts * p.MaxSends()
}

// Budget is the total time a non-converging switch spends sleeping.
// Probe and injection latency come on top.
func (p Policy) Budget() time.Duration {
	perRound := p.SettleDelay + time.Duration(p.PollAttempts)*p.PollInterval
	return time.Duration(p.MaxSends())*perRound + time.Duration(p.ResendRounds)*p.ResendDelay
}
