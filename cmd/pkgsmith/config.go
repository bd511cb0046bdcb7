// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/internal/config"
)

func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pkgsmith settings",
		Long: `Manage pkgsmith user settings.

Settings are stored in:
  - Linux: ~/.config/pkgsmith/config.cue
  - macOS: ~/Library/Application Support/pkgsmith/config.cue
  - Windows: %APPDATA%\pkgsmith\config.cue

Every key can be overridden with a PKGSMITH_<SECTION>_<KEY> variable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := app.Settings.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: app.settingsPath})
			if err != nil {
				return err
			}
			showSettings(app, loaded)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the settings file path",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := app.settingsPath
			if path == "" {
				var err error
				if path, err = config.ConfigFilePath(); err != nil {
					return err
				}
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default settings file",
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s Settings file: %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the effective settings as CUE",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := app.Settings.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: app.settingsPath})
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(loaded.Config))
			return nil
		},
	})

	return cfgCmd
}

func showSettings(app *App, loaded *config.Loaded) {
	w := app.stdout
	key := CmdStyle.Render
	value := SuccessStyle.Render
	cfg := loaded.Config

	fmt.Fprintln(w, TitleStyle.Render("Current Settings"))
	fmt.Fprintln(w)
	if loaded.Path != "" {
		fmt.Fprintf(w, "%s: %s\n", key("Settings file"), loaded.Path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", key("Settings file"), SubtitleStyle.Render("(using defaults)"))
	}

	toolsDir, err := cfg.ToolsDir()
	if err != nil {
		toolsDir = SubtitleStyle.Render("(unavailable)")
	}
	sections := []struct {
		name   string
		fields [][2]string
	}{
		{"ui", [][2]string{
			{"verbose", fmt.Sprint(cfg.UI.Verbose)},
			{"color_scheme", cfg.UI.ColorScheme.String()},
		}},
		{"build", [][2]string{
			{"quiet_tools", fmt.Sprint(cfg.Build.QuietTools)},
			{"ignore_error", fmt.Sprint(cfg.Build.IgnoreError)},
		}},
		{"compression", [][2]string{
			{"xz_level", fmt.Sprint(cfg.Compression.XZLevel)},
			{"xz_threads", fmt.Sprint(cfg.Compression.XZThreads)},
		}},
		{"download", [][2]string{
			{"tools_dir", toolsDir},
			{"attempts", fmt.Sprint(cfg.Download.Attempts)},
		}},
	}
	for _, s := range sections {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s:\n", key(s.name))
		for _, f := range s.fields {
			fmt.Fprintf(w, "  %s: %s\n", f[0], value(f[1]))
		}
	}
}
