// Package config handles configuration loading and validation for im-select.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"imselect/internal/probe"
	"imselect/internal/switcher"
)

// Modes select how the current input method is read and changed.
const (
	// ModeDirect uses the platform's synchronous input-method API.
	ModeDirect = "direct"

	// ModeProbe reads the taskbar indicator and toggles with a key chord.
	ModeProbe = "probe"
)

// Config is the effective im-select configuration.
type Config struct {
	// Verbose enables debug logging.
	Verbose bool `toml:"verbose" json:"verbose" yaml:"verbose"`

	// Mode is ModeDirect or ModeProbe.
	Mode string `toml:"mode" json:"mode" yaml:"mode"`

	// SwitchKeys is the chord sent in probe mode, e.g. "ctrl+space".
	SwitchKeys string `toml:"switch_keys" json:"switch_keys" yaml:"switch_keys"`

	Probe   ProbeConfig   `toml:"probe" json:"probe" yaml:"probe"`
	Verify  VerifyConfig  `toml:"verify" json:"verify" yaml:"verify"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// ProbeConfig locates the input-method indicator.
type ProbeConfig struct {
	// Container is the name of the root's child that holds the indicator.
	Container string `toml:"container" json:"container" yaml:"container"`

	// Pattern extracts the state token from an indicator label. It must
	// have exactly one capturing group.
	Pattern string `toml:"pattern" json:"pattern" yaml:"pattern"`
}

// VerifyConfig holds the switch timings. Durations are milliseconds.
type VerifyConfig struct {
	Attempts      int `toml:"attempts" json:"attempts" yaml:"attempts"`
	IntervalMs    int `toml:"interval_ms" json:"interval_ms" yaml:"interval_ms"`
	ResendRounds  int `toml:"resend_rounds" json:"resend_rounds" yaml:"resend_rounds"`
	ResendDelayMs int `toml:"resend_delay_ms" json:"resend_delay_ms" yaml:"resend_delay_ms"`
	SettleMs      int `toml:"settle_ms" json:"settle_ms" yaml:"settle_ms"`
}

// LoggingConfig configures diagnostics on stderr.
type LoggingConfig struct {
	// Level: debug, info, warn, error. Verbose forces debug.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// File, when set, receives logs instead of stderr.
	File string `toml:"file" json:"file" yaml:"file"`
}

// DefaultConfig returns the built-in defaults, tuned for Microsoft Pinyin on
// a Chinese-language Windows taskbar.
func DefaultConfig() *Config {
	p := switcher.DefaultPolicy()
	return &Config{
		Mode:       ModeDirect,
		SwitchKeys: DefaultSwitchKeys,
		Probe: ProbeConfig{
			Container: DefaultContainer,
			Pattern:   DefaultPattern,
		},
		Verify: VerifyConfig{
			Attempts:      p.PollAttempts,
			IntervalMs:    int(p.PollInterval / time.Millisecond),
			ResendRounds:  p.ResendRounds,
			ResendDelayMs: int(p.ResendDelay / time.Millisecond),
			SettleMs:      int(p.SettleDelay / time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Policy returns the switch timings.
func (c *Config) Policy() switcher.Policy {
	return switcher.Policy{
		SettleDelay:  ms(c.Verify.SettleMs),
		PollInterval: ms(c.Verify.IntervalMs),
		PollAttempts: c.Verify.Attempts,
		ResendRounds: c.Verify.ResendRounds,
		ResendDelay:  ms(c.Verify.ResendDelayMs),
	}
}

// Locator compiles the probe pattern.
func (c *Config) Locator() (probe.Locator, error) {
	return probe.NewLocator(c.Probe.Container, c.Probe.Pattern)
}

// LogLevel is the effective level name, with Verbose taking precedence.
func (c *Config) LogLevel() string {
	if c.Verbose {
		return "debug"
	}
	return c.Logging.Level
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. Variables are prefixed with IM_SELECT_. Malformed values
// are reported and leave the field unchanged.
func (c *Config) ApplyEnvOverrides() error {
	var errs ValidationErrors

	if v := os.Getenv(EnvVerbose); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   EnvVerbose,
				Message: "must be a boolean, got " + strconv.Quote(v),
			})
		} else {
			c.Verbose = b
		}
	}
	if v := os.Getenv(EnvMode); v != "" {
		c.Mode = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(EnvSwitchKeys); v != "" {
		c.SwitchKeys = v
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// normalize folds case on the enumerated fields so "Probe" or "WARN"
// are accepted wherever they come from.
func (c *Config) normalize() {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
