// SPDX-License-Identifier: MPL-2.0

package nsis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pkgsmith/pkgsmith/internal/fileset"
	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/internal/macro"
	"github.com/pkgsmith/pkgsmith/internal/toolexec"
	"github.com/pkgsmith/pkgsmith/pkg/platform"
	"github.com/pkgsmith/pkgsmith/pkg/project"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

const (
	// StageDir is the directory below the workdir holding the script and payload.
	StageDir = "nsis"
	// FilesDir receives the staged payload inside StageDir.
	FilesDir = "files"

	makensisTool = "makensis"
)

type (
	// Builder produces Windows installers with makensis.
	Builder struct {
		logger   *log.Logger
		runner   toolexec.Runner
		expander *macro.Expander
		resolver *fileset.Resolver
	}

	// Option configures a Builder.
	Option func(*Builder)
)

// WithLogger sets the builder's logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithRunner sets the process runner used for makensis.
func WithRunner(r toolexec.Runner) Option {
	return func(b *Builder) { b.runner = r }
}

// WithExpander sets the macro expander for artifact_name.
func WithExpander(e *macro.Expander) Option {
	return func(b *Builder) { b.expander = e }
}

// NewBuilder creates an NSIS Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(b)
	}
	if b.runner == nil {
		b.runner = toolexec.NewExecRunner(toolexec.WithLogger(b.logger))
	}
	if b.expander == nil {
		b.expander = macro.New(macro.WithLogger(b.logger))
	}
	b.resolver = fileset.New(fileset.WithLogger(b.logger))
	return b
}

// Build stages the payload, renders <name>.nsi and runs makensis.
func (b *Builder) Build(ctx context.Context, cfg *project.Config, arch types.Arch) (string, error) {
	if cfg.Windows == nil {
		return "", issue.Errorf(issue.KindConfig, "windows", "no [windows] section")
	}
	nsisCfg := cfg.Windows.Nsis
	// Reached only by direct callers; Run skips an absent section.
	if nsisCfg == nil {
		nsisCfg = &project.NsisConfig{}
	}
	files := project.ResolveFiles(nsisCfg, cfg.Windows.Files)
	if files == nil {
		return "", issue.Errorf(issue.KindFilesNotSet, "windows.nsis", "neither windows.nsis.files nor windows.files is set")
	}

	meta := cfg.Metadata
	logger := b.logger.With("arch", arch)
	root, err := filepath.Abs(filepath.Join(meta.Workdir, StageDir))
	if err != nil {
		return "", stageErr("prepare", issue.New(issue.KindIO, meta.Workdir, err))
	}
	filesDir := filepath.Join(root, FilesDir)

	logger.Info("staging installer", "dir", filesDir)
	if err := fileset.ResetDir(root); err != nil {
		return "", stageErr("prepare", err)
	}
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return "", stageErr("prepare", issue.New(issue.KindIO, filesDir, err))
	}
	staged, err := b.resolver.Resolve(files, meta.SrcDir, filesDir)
	if err != nil {
		return "", stageErr("files", err)
	}
	if err := checkNames(staged); err != nil {
		return "", stageErr("files", err)
	}

	name, err := b.expander.ExpandContext(nsisCfg.ArtifactNameOrDefault(),
		macro.ContextFor(meta, macro.Context{Target: types.TargetNsis, Arch: arch}))
	if err != nil {
		return "", stageErr("name", err)
	}
	out, err := filepath.Abs(filepath.Join(meta.Workdir, name))
	if err != nil {
		return "", stageErr("name", issue.New(issue.KindIO, name, err))
	}

	var script bytes.Buffer
	if err := NewScript(meta, nsisCfg, arch, filesDir, out).Render(&script); err != nil {
		return "", stageErr("script", err)
	}
	scriptPath := filepath.Join(root, meta.Name+".nsi")
	if err := os.WriteFile(scriptPath, script.Bytes(), 0o644); err != nil {
		return "", stageErr("script", issue.New(issue.KindIO, scriptPath, err))
	}

	if err := b.runner.Run(ctx, toolexec.Command{
		Name: makensisTool,
		Args: Args(nsisCfg, scriptPath),
		Dir:  root,
	}); err != nil {
		return "", stageErr(makensisTool, err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", stageErr(makensisTool, issue.Errorf(issue.KindProcess, out, "makensis did not write the installer"))
	}

	logger.Info("built installer", "path", out)
	return out, nil
}

// Args returns the makensis command line for scriptPath.
func Args(cfg *project.NsisConfig, scriptPath string) []string {
	args := []string{"-V2"}
	if cfg.IsUnicode() {
		args = append(args, "-INPUTCHARSET", "UTF8")
	}
	if cfg.IsWarningsAsErrors() {
		args = append(args, "-WX")
	}
	return append(args, scriptPath)
}

// checkNames rejects staged paths with a component Windows cannot create.
func checkNames(staged []string) error {
	for _, rel := range staged {
		for part := range strings.SplitSeq(rel, "/") {
			if platform.IsWindowsReservedName(part) {
				return issue.Errorf(issue.KindConfig, rel, "%q is a reserved file name on Windows", part)
			}
		}
	}
	return nil
}

func stageErr(stage string, err error) error {
	return fmt.Errorf("nsis %s: %w", stage, err)
}
