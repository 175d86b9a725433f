package switcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imselect/internal/ime"
	"imselect/internal/keystroke"
)

type reading struct {
	token string
	found bool
	err   error
}

// scriptedReader replays readings in order and repeats the last one.
type scriptedReader struct {
	script []reading
	calls  int
	clock  *fakeClock
}

func (r *scriptedReader) Read() (string, bool, error) {
	i := r.calls
	if i >= len(r.script) {
		i = len(r.script) - 1
	}
	r.calls++
	if r.clock != nil {
		r.clock.log = append(r.clock.log, "read")
	}
	rd := r.script[i]
	return rd.token, rd.found, rd.err
}

// togglingReader models an indicator that flips on every injected chord.
type togglingReader struct {
	states  []string
	current int
	calls   int
}

func (r *togglingReader) Read() (string, bool, error) {
	r.calls++
	return r.states[r.current], true, nil
}

type recordingInjector struct {
	batches []keystroke.Batch
	errAt   int
	err     error
	onSend  func()
	clock   *fakeClock
}

func (i *recordingInjector) Send(b keystroke.Batch) error {
	i.batches = append(i.batches, b)
	if i.clock != nil {
		i.clock.log = append(i.clock.log, "send")
	}
	if i.err != nil && len(i.batches) == i.errAt {
		return i.err
	}
	if i.onSend != nil {
		i.onSend()
	}
	return nil
}

type fakeClock struct {
	slept time.Duration
	log   []string
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept += d
	c.log = append(c.log, fmt.Sprintf("sleep %s", d))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func found(tok string) reading { return reading{token: tok, found: true} }

func newController(r Reader, inj keystroke.Injector, p Policy, clk Clock) *Controller {
	return New(r, inj, p, WithClock(clk), WithLogger(quietLogger()))
}

func TestSwitchAlreadyAtTarget(t *testing.T) {
	policies := map[string]Policy{
		"default":            DefaultPolicy(),
		"no verification":    {PollAttempts: 0, ResendRounds: 0, SettleDelay: time.Second},
		"no verify, resends": {PollAttempts: 0, ResendRounds: 3, ResendDelay: time.Second},
		"many resends":       {PollAttempts: 7, ResendRounds: 4, PollInterval: time.Millisecond},
		"zero timings":       {PollAttempts: 1, ResendRounds: 1},
	}
	tokens := []string{"中", "英", "1033", "com.apple.keylayout.ABC", "keyboard-us", "A"}

	for name, p := range policies {
		for _, tok := range tokens {
			t.Run(name+"/"+tok, func(t *testing.T) {
				reader := &scriptedReader{script: []reading{found(tok)}}
				inj := &recordingInjector{}
				clk := &fakeClock{}

				err := newController(reader, inj, p, clk).SwitchTo(tok, "shift")

				require.NoError(t, err)
				assert.Empty(t, inj.batches)
				assert.Equal(t, 1, reader.calls)
				assert.Zero(t, clk.slept)
				assert.Empty(t, clk.log)
			})
		}
	}
}

func TestSwitchConvergesOnThirdPoll(t *testing.T) {
	reader := &scriptedReader{script: []reading{
		found("中"), found("中"), found("中"), found("英"),
	}}
	inj := &recordingInjector{}
	clk := &fakeClock{}

	err := newController(reader, inj, DefaultPolicy(), clk).SwitchTo("英", "shift")

	require.NoError(t, err)
	assert.Len(t, inj.batches, 1)
	assert.Equal(t, 4, reader.calls)
	assert.Equal(t, DefaultSettleDelay+3*DefaultPollInterval, clk.slept)
}

func TestSwitchResendsAfterFirstRoundFails(t *testing.T) {
	// The first chord is swallowed; the resent one lands.
	tr := &togglingReader{states: []string{"中", "英"}}
	swallowed := true
	inj := &recordingInjector{}
	inj.onSend = func() {
		if swallowed {
			swallowed = false
			return
		}
		tr.current = 1
	}
	clk := &fakeClock{}

	err := newController(tr, inj, DefaultPolicy(), clk).SwitchTo("英", "shift")

	require.NoError(t, err)
	assert.Len(t, inj.batches, 2)
	assert.Equal(t, 1+DefaultPollAttempts+1, tr.calls)
}

func TestSwitchResendReusesBatch(t *testing.T) {
	reader := &scriptedReader{script: []reading{found("中")}}
	inj := &recordingInjector{}

	_ = newController(reader, inj, DefaultPolicy(), &fakeClock{}).SwitchTo("英", "ctrl+space")

	require.Len(t, inj.batches, 2)
	assert.Equal(t, inj.batches[0].Events(), inj.batches[1].Events())
	assert.Equal(t, "ctrl+space", inj.batches[1].String())
}

func TestSwitchNeverConverges(t *testing.T) {
	reader := &scriptedReader{script: []reading{found("中")}}
	inj := &recordingInjector{}
	clk := &fakeClock{}
	p := DefaultPolicy()

	err := newController(reader, inj, p, clk).SwitchTo("英", "shift")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ime.ErrVerificationTimeout))
	assert.Contains(t, err.Error(), "verification failed after sending input")

	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "英", verr.Target)
	assert.Equal(t, 2, verr.Sends)
	assert.Equal(t, 10, verr.Polls)
	assert.NoError(t, verr.LastErr)

	assert.Len(t, inj.batches, p.MaxSends())
	assert.Equal(t, 1+p.MaxPolls(), reader.calls)
	assert.Equal(t, p.Budget(), clk.slept)
}

func TestSwitchBoundedAttempts(t *testing.T) {
	for attempts := 0; attempts <= 3; attempts++ {
		for rounds := 0; rounds <= 3; rounds++ {
			t.Run(fmt.Sprintf("a%d_r%d", attempts, rounds), func(t *testing.T) {
				reader := &scriptedReader{script: []reading{found("中")}}
				inj := &recordingInjector{}
				p := Policy{PollAttempts: attempts, ResendRounds: rounds}

				err := newController(reader, inj, p, &fakeClock{}).SwitchTo("英", "shift")

				assert.True(t, errors.Is(err, ime.ErrVerificationTimeout))
				assert.Len(t, inj.batches, 1+rounds)
				assert.Equal(t, 1+attempts*(1+rounds), reader.calls)
			})
		}
	}
}

func TestSwitchStopsPollingOnMatch(t *testing.T) {
	reader := &scriptedReader{script: []reading{found("中"), found("英")}}
	inj := &recordingInjector{}
	p := Policy{PollAttempts: 10, ResendRounds: 3}

	err := newController(reader, inj, p, &fakeClock{}).SwitchTo("英", "shift")

	require.NoError(t, err)
	assert.Len(t, inj.batches, 1)
	assert.Equal(t, 2, reader.calls)
}

func TestSwitchZeroAttemptsSendsOnceUnverified(t *testing.T) {
	reader := &scriptedReader{script: []reading{found("中")}}
	inj := &recordingInjector{}
	p := Policy{PollAttempts: 0, ResendRounds: 0, SettleDelay: 7 * time.Millisecond}
	clk := &fakeClock{}

	err := newController(reader, inj, p, clk).SwitchTo("英", "shift")

	assert.True(t, errors.Is(err, ime.ErrVerificationTimeout))
	assert.Len(t, inj.batches, 1)
	assert.Equal(t, 1, reader.calls)
	assert.Equal(t, 7*time.Millisecond, clk.slept)
}

func TestSwitchInjectionFailureIsFatal(t *testing.T) {
	reader := &scriptedReader{script: []reading{found("中")}}
	sendErr := &keystroke.IncompleteError{Sent: 1, Total: 4}
	inj := &recordingInjector{err: sendErr, errAt: 1}

	err := newController(reader, inj, DefaultPolicy(), &fakeClock{}).SwitchTo("英", "ctrl+space")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ime.ErrInjection))
	assert.False(t, errors.Is(err, ime.ErrVerificationTimeout))
	assert.Contains(t, err.Error(), "failed to send all inputs")
	assert.Len(t, inj.batches, 1)
	assert.Equal(t, 1, reader.calls)
}

func TestSwitchResendInjectionFailureIsFatal(t *testing.T) {
	reader := &scriptedReader{script: []reading{found("中")}}
	inj := &recordingInjector{err: &keystroke.IncompleteError{Total: 2}, errAt: 2}
	p := Policy{PollAttempts: 1, ResendRounds: 5}

	err := newController(reader, inj, p, &fakeClock{}).SwitchTo("英", "shift")

	assert.True(t, errors.Is(err, ime.ErrInjection))
	assert.Len(t, inj.batches, 2)
}

func TestSwitchInvalidChordInjectsNothing(t *testing.T) {
	reader := &scriptedReader{script: []reading{found("中")}}
	inj := &recordingInjector{}

	err := newController(reader, inj, DefaultPolicy(), &fakeClock{}).SwitchTo("英", "ctrl+tab")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ime.ErrConfiguration))
	var kerr *keystroke.InvalidKeyError
	require.True(t, errors.As(err, &kerr))
	assert.Equal(t, "tab", kerr.Key)
	assert.Empty(t, inj.batches)
}

func TestSwitchProbeErrorsCountAsMisses(t *testing.T) {
	transient := fmt.Errorf("%w: tree busy", ime.ErrTransientProbe)
	reader := &scriptedReader{script: []reading{
		found("中"), {err: transient}, {err: transient}, found("英"),
	}}
	inj := &recordingInjector{}

	err := newController(reader, inj, DefaultPolicy(), &fakeClock{}).SwitchTo("英", "shift")

	require.NoError(t, err)
	assert.Len(t, inj.batches, 1)
}

func TestSwitchInitialProbeFailureStillSwitches(t *testing.T) {
	for name, first := range map[string]reading{
		"not found": {},
		"error":     {err: fmt.Errorf("%w: no taskbar", ime.ErrTransientProbe)},
	} {
		t.Run(name, func(t *testing.T) {
			reader := &scriptedReader{script: []reading{first, found("英")}}
			inj := &recordingInjector{}

			err := newController(reader, inj, DefaultPolicy(), &fakeClock{}).SwitchTo("英", "shift")

			require.NoError(t, err)
			assert.Len(t, inj.batches, 1)
		})
	}
}

func TestSwitchSurfacesTerminalProbeError(t *testing.T) {
	transient := fmt.Errorf("%w: tree busy", ime.ErrTransientProbe)
	reader := &scriptedReader{script: []reading{found("中"), {err: transient}}}
	p := Policy{PollAttempts: 2, ResendRounds: 0}

	err := newController(reader, &recordingInjector{}, p, &fakeClock{}).SwitchTo("英", "shift")

	assert.True(t, errors.Is(err, ime.ErrVerificationTimeout))
	assert.True(t, errors.Is(err, ime.ErrTransientProbe))
	assert.Contains(t, err.Error(), "tree busy")
}

func TestSwitchEarlierProbeErrorNotSurfaced(t *testing.T) {
	transient := fmt.Errorf("%w: tree busy", ime.ErrTransientProbe)
	reader := &scriptedReader{script: []reading{found("中"), {err: transient}, found("中")}}
	p := Policy{PollAttempts: 2, ResendRounds: 0}

	err := newController(reader, &recordingInjector{}, p, &fakeClock{}).SwitchTo("英", "shift")

	assert.True(t, errors.Is(err, ime.ErrVerificationTimeout))
	assert.False(t, errors.Is(err, ime.ErrTransientProbe))
}

func TestSwitchSleepOrdering(t *testing.T) {
	clk := &fakeClock{}
	reader := &scriptedReader{script: []reading{found("中")}, clock: clk}
	inj := &recordingInjector{clock: clk}
	p := Policy{
		SettleDelay:  1 * time.Millisecond,
		PollInterval: 2 * time.Millisecond,
		PollAttempts: 2,
		ResendRounds: 1,
		ResendDelay:  3 * time.Millisecond,
	}

	_ = newController(reader, inj, p, clk).SwitchTo("英", "shift")

	assert.Equal(t, []string{
		"read",
		"send", "sleep 1ms", "sleep 2ms", "read", "sleep 2ms", "read",
		"sleep 3ms",
		"send", "sleep 1ms", "sleep 2ms", "read", "sleep 2ms", "read",
	}, clk.log)
}

func TestSwitchRejectsNegativePolicy(t *testing.T) {
	reader := &scriptedReader{script: []reading{found("中")}}
	inj := &recordingInjector{}
	p := DefaultPolicy()
	p.PollInterval = -time.Millisecond

	err := newController(reader, inj, p, &fakeClock{}).SwitchTo("英", "shift")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ime.ErrConfiguration))
	assert.Contains(t, err.Error(), "poll interval")
	assert.Zero(t, reader.calls)
	assert.Empty(t, inj.batches)
}

func TestPolicyBudget(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 2, p.MaxSends())
	assert.Equal(t, 10, p.MaxPolls())
	// 2 * (100ms + 5*50ms) + 200ms
	assert.Equal(t, 900*time.Millisecond, p.Budget())
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.NoError(t, Policy{}.Validate())

	tests := []struct {
		name  string
		p     Policy
		field string
	}{
		{"settle", Policy{SettleDelay: -1}, "settle delay"},
		{"resend delay", Policy{ResendDelay: -1}, "resend delay"},
		{"attempts", Policy{PollAttempts: -1}, "poll attempts"},
		{"rounds", Policy{ResendRounds: -2}, "resend rounds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			var perr *PolicyError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "check-current", StateCheckCurrent.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
