// Package switcher drives the probed input-method state to a target by
// injecting a key chord and confirming convergence through bounded polling.
//
// Injected input reports nothing about whether the foreground application
// acted on it, so success is defined purely by what the probe observes:
//
//	Idle → CheckCurrent ─┬→ Done
//	                     └→ Sending → Verifying ─┬→ Done
//	                                             ├→ Resending → Verifying
//	                                             └→ Failed
//
// Only verification non-convergence consumes the resend budget. Chord parse
// errors and injection failures end the switch immediately.
package switcher

import (
	"fmt"
	"log/slog"
	"time"

	"imselect/internal/ime"
	"imselect/internal/keystroke"
)

// Reader observes the current state token. *probe.Probe implements it.
type Reader interface {
	Read() (token string, found bool, err error)
}

// Clock is the scheduling contract for the controller's waits. All waits
// block the calling goroutine; the controller never runs concurrently with
// itself.
type Clock interface {
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock sleeps with time.Sleep.
var SystemClock Clock = systemClock{}

// State is a controller state.
type State int

const (
	StateIdle State = iota
	StateCheckCurrent
	StateSending
	StateVerifying
	StateResending
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateCheckCurrent: "check-current",
	StateSending:      "sending",
	StateVerifying:    "verifying",
	StateResending:    "resending",
	StateDone:         "done",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// VerificationError reports that the target was never observed.
// LastErr holds the probe error of the final poll, if it failed.
type VerificationError struct {
	Target  string
	Sends   int
	Polls   int
	LastErr error
}

func (e *VerificationError) Error() string {
	msg := fmt.Sprintf("switch: verification failed after sending input: %q not reached (%d sends, %d polls)",
		e.Target, e.Sends, e.Polls)
	if e.LastErr != nil {
		msg += ": last probe: " + e.LastErr.Error()
	}
	return msg
}

func (e *VerificationError) Unwrap() []error {
	if e.LastErr != nil {
		return []error{ime.ErrVerificationTimeout, e.LastErr}
	}
	return []error{ime.ErrVerificationTimeout}
}

// Controller runs switches. It holds no state between calls.
type Controller struct {
	reader   Reader
	injector keystroke.Injector
	policy   Policy
	clock    Clock
	logger   *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces SystemClock.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// New creates a Controller.
func New(reader Reader, injector keystroke.Injector, policy Policy, opts ...Option) *Controller {
	c := &Controller{
		reader:   reader,
		injector: injector,
		policy:   policy,
		clock:    SystemClock,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run is the per-call state of one SwitchTo.
type run struct {
	target  string
	chord   string
	batch   keystroke.Batch
	round   int
	sends   int
	polls   int
	lastErr error
	err     error
}

// SwitchTo drives the observed state to target by sending chord.
// If the first probe already reports target, nothing is injected.
func (c *Controller) SwitchTo(target, chord string) error {
	if err := c.policy.Validate(); err != nil {
		return err
	}

	r := &run{target: target, chord: chord}
	st := StateIdle
	for {
		next := c.step(st, r)
		c.logger.Debug("transition",
			"from", st.String(), "to", next.String(),
			"round", r.round, "sends", r.sends, "polls", r.polls)
		st = next

		switch st {
		case StateDone:
			return nil
		case StateFailed:
			return r.err
		}
	}
}

func (c *Controller) step(st State, r *run) State {
	switch st {
	case StateIdle:
		return StateCheckCurrent
	case StateCheckCurrent:
		return c.checkCurrent(r)
	case StateSending:
		return c.send(r)
	case StateVerifying:
		return c.verify(r)
	case StateResending:
		return c.resend(r)
	default:
		r.err = fmt.Errorf("switch: no transition from %s", st)
		return StateFailed
	}
}

// checkCurrent short-circuits when the target is already active. A toggle
// chord sent in that case would flip away from it. Not-found and probe
// errors both mean "not at target".
func (c *Controller) checkCurrent(r *run) State {
	token, found, err := c.reader.Read()
	switch {
	case err != nil:
		c.logger.Debug("initial probe failed, switching anyway", "error", err)
		return StateSending
	case !found:
		c.logger.Debug("initial probe found no indicator, switching anyway")
		return StateSending
	case token == r.target:
		c.logger.Debug("already at target", "state", token)
		return StateDone
	default:
		c.logger.Debug("current state", "state", token, "target", r.target)
		return StateSending
	}
}

func (c *Controller) send(r *run) State {
	batch, err := keystroke.Parse(r.chord)
	if err != nil {
		r.err = err
		return StateFailed
	}
	r.batch = batch

	if !c.inject(r) {
		return StateFailed
	}
	return StateVerifying
}

// inject sends the run's batch once. Failures are fatal and never retried.
func (c *Controller) inject(r *run) bool {
	r.sends++
	if err := c.injector.Send(r.batch); err != nil {
		c.logger.Warn("injection failed", "chord", r.batch.String(), "send", r.sends, "error", err)
		r.err = err
		return false
	}
	c.logger.Debug("chord sent", "chord", r.batch.String(), "send", r.sends)
	return true
}

// verify polls until the target is observed or the round's attempts run
// out. Probe errors count as non-matching attempts.
func (c *Controller) verify(r *run) State {
	c.clock.Sleep(c.policy.SettleDelay)

	for attempt := 1; attempt <= c.policy.PollAttempts; attempt++ {
		c.clock.Sleep(c.policy.PollInterval)

		token, found, err := c.reader.Read()
		r.polls++
		if err != nil {
			r.lastErr = err
			c.logger.Debug("poll failed", "round", r.round, "attempt", attempt, "error", err)
			continue
		}
		r.lastErr = nil

		if found && token == r.target {
			c.logger.Debug("converged", "round", r.round, "attempt", attempt, "state", token)
			return StateDone
		}
		c.logger.Debug("not converged", "round", r.round, "attempt", attempt, "state", token, "found", found)
	}

	if r.round < c.policy.ResendRounds {
		return StateResending
	}

	r.err = &VerificationError{Target: r.target, Sends: r.sends, Polls: r.polls, LastErr: r.lastErr}
	c.logger.Warn("target not reached", "target", r.target, "sends", r.sends, "polls", r.polls)
	return StateFailed
}

func (c *Controller) resend(r *run) State {
	r.round++
	c.clock.Sleep(c.policy.ResendDelay)

	if !c.inject(r) {
		return StateFailed
	}
	return StateVerifying
}
