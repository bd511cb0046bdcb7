// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/internal/config"
	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// App holds the state shared by every command of one invocation.
	App struct {
		Settings config.Provider
		stdout   io.Writer
		stderr   io.Writer

		verbose      bool
		settingsPath string

		// Populated by the root PersistentPreRunE.
		settings *config.Config
		logger   *log.Logger
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults.
	Dependencies struct {
		Settings config.Provider
		Stdout   io.Writer
		Stderr   io.Writer
	}
)

// NewApp creates an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{
		Settings: deps.Settings,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
	}
	if app.Settings == nil {
		app.Settings = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "pkgsmith",
		Short: "Build Linux and Windows installers from one project file",
		Long: TitleStyle.Render("pkgsmith") + SubtitleStyle.Render(" - cross-platform installer builder") + `

pkgsmith reads pkgsmith.toml and produces .deb, .rpm, AppImage and NSIS
installers for every configured architecture.

` + SubtitleStyle.Render("Examples:") + `
  pkgsmith init                        Create a starter pkgsmith.toml
  pkgsmith build                       Build every target for the host architecture
  pkgsmith build --cross               Build every configured architecture
  pkgsmith build --target deb,rpm      Build selected targets
  pkgsmith download                    Fetch the tools listed under [[tools]]`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd.Context())
		},
	}

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.settingsPath, "settings", "", "settings file (default is the pkgsmith config.cue)")

	root.AddCommand(
		newBuildCommand(app),
		newDownloadCommand(app),
		newInitCommand(app),
		newConfigCommand(app),
	)
	return root
}

// Execute runs the CLI and exits with the resulting status.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(int(types.ExitBuildFailed))
	}
}

// prepare loads user settings and builds the logger. A broken settings file is
// reported and replaced by defaults so that `config path` still works.
func (a *App) prepare(ctx context.Context) error {
	loaded, err := a.Settings.Load(ctx, config.LoadOptions{ConfigFilePath: a.settingsPath})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, a.verbose))
		a.settings = config.DefaultConfig()
	} else {
		a.settings = loaded.Config
	}
	if !a.verbose {
		a.verbose = a.settings.UI.Verbose
	}

	level := log.InfoLevel
	if a.verbose {
		level = log.DebugLevel
	}
	a.logger = log.NewWithOptions(a.stderr, log.Options{
		Prefix: "pkgsmith",
		Level:  level,
	})
	return nil
}

// glamourStyle picks the help text style from the settings and terminal.
func (a *App) glamourStyle() string {
	return a.settings.UI.ColorScheme.GlamourStyle(lipgloss.HasDarkBackground())
}

// renderIssue writes the troubleshooting page for err's kind, if it has one.
func (a *App) renderIssue(err error) {
	kind, ok := issue.KindOf(err)
	if !ok {
		return
	}
	page := issue.Get(kind)
	if page == nil {
		return
	}
	rendered, rerr := page.Render(a.glamourStyle())
	if rerr != nil {
		a.logger.Debug("rendering help failed", "kind", kind, "err", rerr)
		return
	}
	fmt.Fprint(a.stderr, rendered)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// formatErrorForDisplay uses ActionableError's formatting when available.
// Verbose mode shows the full error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
