// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/pkgsmith/pkgsmith/internal/appimage"
	"github.com/pkgsmith/pkgsmith/internal/archive"
	"github.com/pkgsmith/pkgsmith/internal/build"
	"github.com/pkgsmith/pkgsmith/internal/deb"
	"github.com/pkgsmith/pkgsmith/internal/macro"
	"github.com/pkgsmith/pkgsmith/internal/nsis"
	"github.com/pkgsmith/pkgsmith/internal/rpm"
	"github.com/pkgsmith/pkgsmith/internal/toolexec"
	"github.com/pkgsmith/pkgsmith/pkg/platform"
	"github.com/pkgsmith/pkgsmith/pkg/project"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

type buildFlags struct {
	projectPath string
	targets     []string
	arches      []string
	oses        []string
	ignoreError bool
	cross       bool
	download    bool
}

func newBuildCommand(app *App) *cobra.Command {
	var flags buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the configured installers",
		Long: `Build every configured (target, architecture) pair, Linux before Windows.

Without --arch or --cross only the host architecture is built. The first
failure stops the run unless --ignore-error is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("ignore-error") {
				flags.ignoreError = app.settings.Build.IgnoreError
			}
			return runBuild(cmd, app, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.projectPath, "config", "c", "", "project file (default pkg/pkgsmith.toml, then pkgsmith.toml)")
	cmd.Flags().StringSliceVarP(&flags.targets, "target", "t", nil, "targets to build (deb, rpm, appimage, nsis)")
	cmd.Flags().StringSliceVarP(&flags.arches, "arch", "a", nil, "architectures to build (x86, x86_64, aarch64, mips64)")
	cmd.Flags().StringSliceVar(&flags.oses, "os", nil, "OS families to build (linux, windows)")
	cmd.Flags().BoolVar(&flags.ignoreError, "ignore-error", false, "keep building after a failure")
	cmd.Flags().BoolVar(&flags.cross, "cross", false, "build every configured architecture")
	cmd.Flags().BoolVar(&flags.download, "download", false, "download the [[tools]] manifest and exit")
	return cmd
}

func runBuild(cmd *cobra.Command, app *App, flags buildFlags) error {
	path, cfg, err := loadProject(app, flags.projectPath)
	if err != nil {
		return &ExitError{Code: types.ExitUsage, Err: err}
	}
	if flags.download {
		return ensureTools(cmd, app, cfg, nil)
	}

	opts, err := selection(flags)
	if err != nil {
		return &ExitError{Code: types.ExitUsage, Err: err}
	}
	if v := cfg.Metadata.Version; !semver.IsValid("v" + v) {
		app.logger.Warn("version is not semver, rpm and deb tools may order it unexpectedly", "version", v)
	}

	orch, err := newOrchestrator(app, filepath.Dir(path))
	if err != nil {
		return err
	}
	report, err := orch.Run(cmd.Context(), cfg, opts)
	printReport(app.stdout, report)
	if err != nil {
		app.renderIssue(err)
		return &ExitError{Code: types.ExitBuildFailed, Err: err}
	}
	return nil
}

// loadProject resolves and loads the project file, then loads a .env file
// next to it. Variables already in the environment win.
func loadProject(app *App, explicit string) (string, *project.Config, error) {
	path := project.ResolvePath(explicit)
	cfg, err := project.Load(path)
	if err != nil {
		return "", nil, err
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", nil, fmt.Errorf("loading %s: %w", envFile, err)
	} else if err == nil {
		app.logger.Debug("loaded environment file", "path", envFile)
	}
	app.logger.Debug("loaded project", "path", path, "name", cfg.Metadata.Name)
	return path, cfg, nil
}

// selection converts the build flags into orchestrator options.
func selection(flags buildFlags) (build.Options, error) {
	opts := build.Options{IgnoreError: flags.ignoreError}
	var errs []error
	for _, s := range flags.targets {
		t, err := types.ParseTarget(s)
		errs = append(errs, err)
		opts.Targets = append(opts.Targets, t)
	}
	for _, s := range flags.arches {
		a, err := types.ParseArch(s)
		errs = append(errs, err)
		opts.Arches = append(opts.Arches, a)
	}
	for _, s := range flags.oses {
		f, err := types.ParseOSFamily(s)
		errs = append(errs, err)
		opts.OSFamilies = append(opts.OSFamilies, f)
	}
	if err := errors.Join(errs...); err != nil {
		return build.Options{}, err
	}

	if len(opts.Arches) == 0 && !flags.cross {
		host, ok := types.HostArch()
		if !ok {
			return build.Options{}, errors.New("the host architecture has no package equivalent; pass --arch or --cross")
		}
		opts.Arches = []types.Arch{host}
	}
	return opts, nil
}

// newOrchestrator wires every pipeline with the shared runner, expander and
// compression settings.
func newOrchestrator(app *App, projectDir string) (*build.Orchestrator, error) {
	logger := app.logger
	settings := app.settings

	toolsDir, err := settings.ToolsDir()
	if err != nil {
		return nil, err
	}
	runner := toolexec.NewExecRunner(
		toolexec.WithLogger(logger.WithPrefix("exec")),
		toolexec.WithQuiet(settings.Build.QuietTools && !app.verbose),
		toolexec.WithOutput(app.stdout, app.stderr),
		toolexec.WithSandbox(platform.DetectSandbox()),
	)
	expander := macro.New(
		macro.WithLogger(logger.WithPrefix("macro")),
		macro.WithGitHash(macro.RepoGitHash(projectDir)),
	)
	xz := archive.XZOptions{
		Level:   settings.Compression.XZLevel,
		Threads: settings.Compression.XZThreads,
	}

	return build.New(
		build.WithLogger(logger.WithPrefix("build")),
		build.WithBuildIDExpander(expander.ExpandSimple),
		build.WithProgress(progressPrinter(app.stdout)),
		build.WithPipeline(types.TargetDeb, deb.NewBuilder(
			deb.WithLogger(logger.WithPrefix("deb")),
			deb.WithXZOptions(xz),
		)),
		build.WithPipeline(types.TargetRpm, rpm.NewBuilder(
			rpm.WithLogger(logger.WithPrefix("rpm")),
			rpm.WithRunner(runner),
			rpm.WithExpander(expander),
			rpm.WithXZOptions(xz),
		)),
		build.WithPipeline(types.TargetAppImage, appimage.NewBuilder(
			appimage.WithLogger(logger.WithPrefix("appimage")),
			appimage.WithRunner(runner),
			appimage.WithExpander(expander),
			appimage.WithToolsDir(toolsDir),
		)),
		build.WithPipeline(types.TargetNsis, nsis.NewBuilder(
			nsis.WithLogger(logger.WithPrefix("nsis")),
			nsis.WithRunner(runner),
			nsis.WithExpander(expander),
		)),
	), nil
}

func progressPrinter(w io.Writer) func(build.Outcome) {
	return func(o build.Outcome) {
		cell := cellStyle.Render(fmt.Sprintf("%s/%s", o.Target, o.Arch))
		switch o.Status {
		case build.StatusRunning:
			fmt.Fprintf(w, "%s %s building\n", SubtitleStyle.Render("•"), cell)
		case build.StatusBuilt:
			fmt.Fprintf(w, "%s %s %s\n", SuccessStyle.Render("✓"), cell, o.Artifact)
		case build.StatusSkipped:
			fmt.Fprintf(w, "%s %s %s\n", SubtitleStyle.Render("-"), cell, SubtitleStyle.Render("skipped, no format section"))
		case build.StatusFailed:
			fmt.Fprintf(w, "%s %s %s\n", ErrorStyle.Render("✗"), cell, o.Err)
		}
	}
}

func printReport(w io.Writer, report *build.Report) {
	if report == nil || len(report.Outcomes) == 0 {
		fmt.Fprintln(w, WarningStyle.Render("Nothing to build for the selected targets and architectures."))
		return
	}
	summary := fmt.Sprintf("%d built, %d skipped, %d failed",
		len(report.Built()), len(report.Skipped()), len(report.Failed()))
	if len(report.Failed()) > 0 {
		fmt.Fprintln(w, ErrorStyle.Render(summary))
		return
	}
	fmt.Fprintln(w, SuccessStyle.Render(summary))
}
