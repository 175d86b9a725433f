// Command im-select queries or switches the active input method.
//
// Usage:
//
//	im-select [flags] [input-method]
//
// Without an argument the current input method is printed to stdout. With
// one, im-select switches to it and exits silently on success.
//
// Two modes are available. "direct" uses the platform's own input-method
// API: keyboard-layout locale IDs on Windows (e.g. 1033, 2052), input
// source IDs on macOS (e.g. com.apple.keylayout.ABC), Fcitx5 or IBus
// engine names on Linux. "probe" reads the input indicator from the
// accessibility tree and toggles it with a key chord, which is what
// Microsoft Pinyin needs when no separate English keyboard is installed:
//
//	im-select -mode probe        # prints 中 or 英
//	im-select -mode probe 英
//	im-select -mspy -switch-keys shift 英
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"imselect/internal/config"
	"imselect/internal/ime"
	"imselect/internal/keystroke"
	"imselect/internal/logging"
	"imselect/internal/probe"
	"imselect/internal/switcher"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// platform holds the OS-facing constructors so tests can substitute fakes.
type platform struct {
	backend  func() ime.Backend
	source   func() probe.Source
	injector func() keystroke.Injector
	clock    switcher.Clock
}

var nativePlatform = platform{
	backend:  ime.NewPlatform,
	source:   probe.NewSource,
	injector: keystroke.NewInjector,
	clock:    switcher.SystemClock,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, nativePlatform))
}

type options struct {
	verbose      bool
	configPath   string
	mode         string
	mspy         bool
	taskbar      string
	imePattern   string
	switchKeys   string
	attempts     int
	intervalMs   int
	resendRounds int
	resendWaitMs int
	settleMs     int
	initConfig   bool
	showVersion  bool
}

func newFlagSet(stderr io.Writer, o *options) *flag.FlagSet {
	d := config.DefaultConfig()
	fs := flag.NewFlagSet("im-select", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVar(&o.verbose, "verbose", false, "log debug diagnostics to stderr")
	fs.StringVar(&o.configPath, "config", "", "config file (default: "+config.ConfigPath()+")")
	fs.StringVar(&o.mode, "mode", d.Mode, "backend: direct or probe")
	fs.BoolVar(&o.mspy, "mspy", false, "shorthand for -mode probe (Microsoft Pinyin)")
	fs.StringVar(&o.taskbar, "taskbar", d.Probe.Container, "name of the element holding the input indicator")
	fs.StringVar(&o.imePattern, "ime-pattern", d.Probe.Pattern, "regex with one capture group extracting the state from the indicator label")
	fs.StringVar(&o.switchKeys, "switch-keys", d.SwitchKeys, "chord that toggles the input method, e.g. shift or ctrl+space")
	fs.IntVar(&o.attempts, "verify-attempts", d.Verify.Attempts, "probe polls after each send")
	fs.IntVar(&o.intervalMs, "verify-interval-ms", d.Verify.IntervalMs, "delay in ms before each poll")
	fs.IntVar(&o.resendRounds, "resend-retries", d.Verify.ResendRounds, "additional sends if verification fails")
	fs.IntVar(&o.resendWaitMs, "resend-wait-ms", d.Verify.ResendDelayMs, "delay in ms before each resend")
	fs.IntVar(&o.settleMs, "settle-ms", d.Verify.SettleMs, "delay in ms after each send before polling")
	fs.BoolVar(&o.initConfig, "init-config", false, "write the effective configuration to the config file and exit")
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "im-select - query or switch the active input method\n\n")
		fmt.Fprintf(stderr, "Usage: im-select [flags] [input-method]\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nEnvironment:\n")
		fmt.Fprintf(stderr, "  %s, %s, %s, %s\n",
			config.EnvVerbose, config.EnvMode, config.EnvLogLevel, config.EnvSwitchKeys)
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  im-select                  # print current locale ID / input source\n")
		fmt.Fprintf(stderr, "  im-select 1033             # switch keyboard layout (Windows)\n")
		fmt.Fprintf(stderr, "  im-select -mspy 英         # toggle Microsoft Pinyin to English\n")
	}
	return fs
}

// applyFlags copies explicitly set flags onto cfg so they win over the
// file and the environment.
func applyFlags(fs *flag.FlagSet, o *options, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "verbose":
			cfg.Verbose = o.verbose
		case "mode":
			cfg.Mode = o.mode
		case "taskbar":
			cfg.Probe.Container = o.taskbar
		case "ime-pattern":
			cfg.Probe.Pattern = o.imePattern
		case "switch-keys":
			cfg.SwitchKeys = o.switchKeys
		case "verify-attempts":
			cfg.Verify.Attempts = o.attempts
		case "verify-interval-ms":
			cfg.Verify.IntervalMs = o.intervalMs
		case "resend-retries":
			cfg.Verify.ResendRounds = o.resendRounds
		case "resend-wait-ms":
			cfg.Verify.ResendDelayMs = o.resendWaitMs
		case "settle-ms":
			cfg.Verify.SettleMs = o.settleMs
		}
	})
	if o.mspy {
		cfg.Mode = config.ModeProbe
	}
}

func run(args []string, stdout, stderr io.Writer, p platform) int {
	var o options
	fs := newFlagSet(stderr, &o)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if o.showVersion {
		fmt.Fprintf(stdout, "im-select %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return 0
	}

	if fs.NArg() > 1 {
		fmt.Fprintf(stderr, "Error: expected at most one input method, got %d\n\n", fs.NArg())
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(o.configPath, func(c *config.Config) { applyFlags(fs, &o, c) })
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if o.initConfig {
		path := o.configPath
		if path == "" {
			path = config.ConfigPath()
		}
		if err := config.SaveConfig(cfg, path); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, path)
		return 0
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Close()
	logging.SetDefault(logger)

	app := &app{cfg: cfg, platform: p, logger: logger}

	if fs.NArg() == 0 {
		current, err := app.query()
		if err != nil {
			fmt.Fprintf(stderr, "Error getting input method: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, current)
		return 0
	}

	if err := app.switchTo(fs.Arg(0)); err != nil {
		fmt.Fprintf(stderr, "Error switching input method: %v\n", err)
		return 1
	}
	return 0
}

func newLogger(cfg *config.Config, stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel())
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	lc := &logging.Config{
		Level:  level,
		Format: format,
	}
	if cfg.Logging.File != "" {
		lc.Output = "file"
		lc.FilePath = cfg.Logging.File
	} else {
		lc.Writer = stderr
	}
	return logging.New(lc)
}
