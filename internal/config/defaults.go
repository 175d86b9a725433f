package config

import (
	"os"
	"path/filepath"
)

// Probe defaults for the Windows 11 taskbar with a Chinese UI. The pattern
// also accepts the English indicator label.
const (
	DefaultContainer  = "任务栏"
	DefaultPattern    = `(?:(?:托盘)?输入指示器|Input Indicator)\s+(\S+)`
	DefaultSwitchKeys = "ctrl+space"
)

// Environment variables read by ApplyEnvOverrides.
const (
	EnvVerbose    = "IM_SELECT_VERBOSE"
	EnvMode       = "IM_SELECT_MODE"
	EnvLogLevel   = "IM_SELECT_LOG_LEVEL"
	EnvSwitchKeys = "IM_SELECT_SWITCH_KEYS"
)

// ConfigDir returns the per-user configuration directory, falling back to
// the working directory when the platform reports none.
func ConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return "."
	}
	return filepath.Join(base, "im-select")
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{
		"toml",
		"json",
		"yaml",
		"yml",
	}
}

// FindConfigFile searches the config directory for config.<format>.
// Returns the first existing path, or empty string if none found.
func FindConfigFile() string {
	dir := ConfigDir()
	for _, ext := range SupportedConfigFormats() {
		path := filepath.Join(dir, "config."+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
