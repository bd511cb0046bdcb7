// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/cueutil"
	"github.com/pkgsmith/pkgsmith/pkg/platform"
)

const (
	// AppName is the application name.
	AppName = "pkgsmith"
	// ConfigFileName is the name of the settings file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the settings file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. PKGSMITH_COMPRESSION_XZ_LEVEL.
	EnvPrefix = "PKGSMITH"

	maxFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the pkgsmith settings directory: %APPDATA% on Windows,
// ~/Library/Application Support on macOS and $XDG_CONFIG_HOME (defaulting to
// ~/.config) elsewhere.
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var dir string
	switch runtime.GOOS {
	case platform.Windows:
		dir = os.Getenv("APPDATA")
		if dir == "" {
			dir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support")
	default:
		dir = os.Getenv("XDG_CONFIG_HOME")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dir = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(dir, AppName), nil
}

// ConfigFilePath returns the default settings file location.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// ToolsDir returns the directory downloaded tools are kept in.
func (c *Config) ToolsDir() (string, error) {
	if c.Download.ToolsDir != "" {
		return c.Download.ToolsDir, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate cache directory: %w", err)
	}
	return filepath.Join(cache, AppName, "tools"), nil
}

// loadWithOptions reads defaults, then the settings file, then PKGSMITH_*
// environment overrides. It returns the file used, or "" when none was found.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, explicit, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}
	if explicit && !fileExists(path) {
		return nil, "", issue.NewErrorContext().
			WithOperation("load settings").
			WithResource(path).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Use 'pkgsmith config show' to see the default settings").
			Wrap(issue.Errorf(issue.KindConfig, path, "settings file not found")).
			BuildError()
	}

	resolved := ""
	if fileExists(path) {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load settings").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Compare it with 'pkgsmith config show'").
				Wrap(issue.New(issue.KindConfig, path, err)).
				BuildError()
		}
		resolved = path
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", issue.New(issue.KindConfig, path, fmt.Errorf("failed to parse settings: %w", err))
	}
	if err := cfg.validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate settings").
			WithResource(resolved).
			WithSuggestion("Check the " + EnvPrefix + "_* environment variables").
			Wrap(issue.New(issue.KindConfig, resolved, err)).
			BuildError()
	}
	return &cfg, resolved, nil
}

// resolvePath picks the settings file: an explicit path, else the file in
// the settings directory.
func resolvePath(opts LoadOptions) (string, bool, error) {
	if opts.ConfigFilePath != "" {
		return opts.ConfigFilePath, true, nil
	}
	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", false, err
		}
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), false, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("ui.verbose", d.UI.Verbose)
	v.SetDefault("ui.color_scheme", string(d.UI.ColorScheme))
	v.SetDefault("build.quiet_tools", d.Build.QuietTools)
	v.SetDefault("build.ignore_error", d.Build.IgnoreError)
	v.SetDefault("compression.xz_level", d.Compression.XZLevel)
	v.SetDefault("compression.xz_threads", d.Compression.XZThreads)
	v.SetDefault("download.tools_dir", d.Download.ToolsDir)
	v.SetDefault("download.attempts", d.Download.Attempts)
}

// validate re-checks the ranges the schema enforces, since environment
// overrides bypass CUE.
func (c *Config) validate() error {
	var errs []error
	if err := c.UI.ColorScheme.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ui.color_scheme: %w", err))
	}
	if c.Compression.XZLevel < 0 || c.Compression.XZLevel > 9 {
		errs = append(errs, fmt.Errorf("compression.xz_level: %d is outside 0-9", c.Compression.XZLevel))
	}
	if c.Compression.XZThreads < 0 {
		errs = append(errs, fmt.Errorf("compression.xz_threads: %d is negative", c.Compression.XZThreads))
	}
	if c.Download.Attempts < 1 || c.Download.Attempts > 10 {
		errs = append(errs, fmt.Errorf("download.attempts: %d is outside 1-10", c.Download.Attempts))
	}
	return errors.Join(errs...)
}

// loadCUEIntoViper validates the settings file against #Config and merges
// it into v. Fields stay optional, so validation is not concrete.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	unified, err := cueutil.Unify(configSchema, data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
		cueutil.WithMaxFileSize(maxFileSize),
	)
	if err != nil {
		return err
	}

	var settings map[string]any
	if err := unified.Decode(&settings); err != nil {
		return cueutil.FormatError(err, path)
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("failed to merge settings: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default settings file unless one exists,
// and returns its path.
func CreateDefaultConfig() (string, error) {
	path, err := ConfigFilePath()
	if err != nil {
		return "", err
	}
	if fileExists(path) {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write settings file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders cfg as a settings file.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder
	sb.WriteString("// pkgsmith settings\n\n")

	sb.WriteString("ui: {\n")
	fmt.Fprintf(&sb, "\tverbose:      %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	sb.WriteString("}\n\n")

	sb.WriteString("build: {\n")
	fmt.Fprintf(&sb, "\tquiet_tools:  %v\n", cfg.Build.QuietTools)
	fmt.Fprintf(&sb, "\tignore_error: %v\n", cfg.Build.IgnoreError)
	sb.WriteString("}\n\n")

	sb.WriteString("compression: {\n")
	fmt.Fprintf(&sb, "\txz_level:   %d\n", cfg.Compression.XZLevel)
	fmt.Fprintf(&sb, "\txz_threads: %d\n", cfg.Compression.XZThreads)
	sb.WriteString("}\n\n")

	sb.WriteString("download: {\n")
	if cfg.Download.ToolsDir != "" {
		fmt.Fprintf(&sb, "\ttools_dir: %q\n", cfg.Download.ToolsDir)
	}
	fmt.Fprintf(&sb, "\tattempts: %d\n", cfg.Download.Attempts)
	sb.WriteString("}\n")

	return sb.String()
}
