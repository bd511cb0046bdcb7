// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/internal/download"
	"github.com/pkgsmith/pkgsmith/pkg/project"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

func newDownloadCommand(app *App) *cobra.Command {
	var (
		projectPath string
		arches      []string
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the tools listed under [[tools]]",
		Long: `Download and verify the helper tools listed in the project's [[tools]]
manifest. Files whose SHA-256 already matches are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := loadProject(app, projectPath)
			if err != nil {
				return &ExitError{Code: types.ExitUsage, Err: err}
			}
			var filter []types.Arch
			for _, s := range arches {
				a, err := types.ParseArch(s)
				if err != nil {
					return &ExitError{Code: types.ExitUsage, Err: err}
				}
				filter = append(filter, a)
			}
			return ensureTools(cmd, app, cfg, filter)
		},
	}
	cmd.Flags().StringVarP(&projectPath, "config", "c", "", "project file (default pkg/pkgsmith.toml, then pkgsmith.toml)")
	cmd.Flags().StringSliceVarP(&arches, "arch", "a", nil, "only download tools for these architectures")
	return cmd
}

func ensureTools(cmd *cobra.Command, app *App, cfg *project.Config, arches []types.Arch) error {
	if len(cfg.Tools) == 0 {
		fmt.Fprintln(app.stdout, SubtitleStyle.Render("No [[tools]] entries to download."))
		return nil
	}
	dir, err := app.settings.ToolsDir()
	if err != nil {
		return err
	}

	d := download.New(
		download.WithLogger(app.logger.WithPrefix("download")),
		download.WithAttempts(app.settings.Download.Attempts),
		download.WithUserAgent("pkgsmith/"+Version),
	)
	results, err := d.Ensure(cmd.Context(), cfg.Tools, dir, arches)
	for _, line := range download.Summary(results) {
		fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓"), line)
	}
	if err != nil {
		app.renderIssue(err)
		return &ExitError{Code: types.ExitBuildFailed, Err: err}
	}
	fmt.Fprintf(app.stdout, "%s %s\n", SubtitleStyle.Render("Tools directory:"), CmdStyle.Render(dir))
	return nil
}
