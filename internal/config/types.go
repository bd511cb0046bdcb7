// SPDX-License-Identifier: MPL-2.0

package config

import "fmt"

const (
	// ColorSchemeAuto picks the glamour style from the terminal background.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces the dark style.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces the light style.
	ColorSchemeLight ColorScheme = "light"

	defaultXZLevel  = 6
	defaultAttempts = 3
)

type (
	// ColorScheme selects how help text is rendered.
	ColorScheme string

	// Config is the user-level settings file. Project-specific values live in
	// pkgsmith.toml instead.
	Config struct {
		UI          UIConfig          `json:"ui" mapstructure:"ui"`
		Build       BuildConfig       `json:"build" mapstructure:"build"`
		Compression CompressionConfig `json:"compression" mapstructure:"compression"`
		Download    DownloadConfig    `json:"download" mapstructure:"download"`
	}

	// UIConfig controls terminal output.
	UIConfig struct {
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}

	// BuildConfig holds defaults for `pkgsmith build` flags.
	BuildConfig struct {
		// QuietTools hides the output of rpmbuild, appimagetool and makensis
		// unless --verbose is given.
		QuietTools  bool `json:"quiet_tools" mapstructure:"quiet_tools"`
		IgnoreError bool `json:"ignore_error" mapstructure:"ignore_error"`
	}

	// CompressionConfig tunes the xz encoder.
	CompressionConfig struct {
		XZLevel int `json:"xz_level" mapstructure:"xz_level"`
		// XZThreads of 0 means one per logical CPU.
		XZThreads int `json:"xz_threads" mapstructure:"xz_threads"`
	}

	// DownloadConfig controls the tool downloader.
	DownloadConfig struct {
		// ToolsDir defaults to <user cache dir>/pkgsmith/tools when empty.
		ToolsDir string `json:"tools_dir" mapstructure:"tools_dir"`
		Attempts int    `json:"attempts" mapstructure:"attempts"`
	}
)

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
		Build: BuildConfig{
			QuietTools: true,
		},
		Compression: CompressionConfig{
			XZLevel: defaultXZLevel,
		},
		Download: DownloadConfig{
			Attempts: defaultAttempts,
		},
	}
}

// GlamourStyle maps the color scheme to a glamour standard style name.
func (s ColorScheme) GlamourStyle(hasDarkBackground bool) string {
	switch s {
	case ColorSchemeDark:
		return "dark"
	case ColorSchemeLight:
		return "light"
	default:
		if hasDarkBackground {
			return "dark"
		}
		return "light"
	}
}

// String implements fmt.Stringer.
func (s ColorScheme) String() string { return string(s) }

// Validate reports whether s is a known scheme.
func (s ColorScheme) Validate() error {
	switch s {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return fmt.Errorf("invalid color scheme %q (valid: auto, dark, light)", string(s))
	}
}
