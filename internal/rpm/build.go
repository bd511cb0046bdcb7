// SPDX-License-Identifier: MPL-2.0

package rpm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/pkgsmith/pkgsmith/internal/archive"
	"github.com/pkgsmith/pkgsmith/internal/fileset"
	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/internal/macro"
	"github.com/pkgsmith/pkgsmith/internal/toolexec"
	"github.com/pkgsmith/pkgsmith/pkg/project"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

const (
	// StageDir is the rpmbuild top directory below the workdir.
	StageDir = "rpm"

	rpmbuildTool = "rpmbuild"
)

type (
	// Builder produces RPM packages by driving rpmbuild.
	Builder struct {
		logger   *log.Logger
		runner   toolexec.Runner
		expander *macro.Expander
		resolver *fileset.Resolver
		xz       archive.XZOptions
	}

	// Option configures a Builder.
	Option func(*Builder)
)

// WithLogger sets the builder's logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithRunner sets the process runner used for rpmbuild.
func WithRunner(r toolexec.Runner) Option {
	return func(b *Builder) { b.runner = r }
}

// WithExpander sets the macro expander for artifact_name.
func WithExpander(e *macro.Expander) Option {
	return func(b *Builder) { b.expander = e }
}

// WithXZOptions sets the xz parameters for the source tarball.
func WithXZOptions(o archive.XZOptions) Option {
	return func(b *Builder) { b.xz = o }
}

// NewBuilder creates an RPM Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		logger: log.New(io.Discard),
		xz:     archive.DefaultXZOptions(),
	}
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

// Build stages the payload, renders the spec, runs rpmbuild and copies the
// package to the workdir under the expanded artifact name.
func (b *Builder) Build(ctx context.Context, cfg *project.Config, arch types.Arch) (string, error) {
	if cfg.Linux == nil {
		return "", issue.Errorf(issue.KindConfig, "linux", "no [linux] section")
	}
	rpmCfg := cfg.Linux.Rpm
	// Reached only by direct callers; Run skips an absent section.
	if rpmCfg == nil {
		rpmCfg = &project.RpmConfig{}
	}
	files := project.ResolveFiles(rpmCfg, cfg.Linux.Files)
	if files == nil {
		return "", issue.Errorf(issue.KindFilesNotSet, "linux.rpm", "neither linux.rpm.files nor linux.files is set")
	}

	meta := cfg.Metadata
	logger := b.logger.With("arch", arch)
	root, err := filepath.Abs(filepath.Join(meta.Workdir, StageDir))
	if err != nil {
		return "", stageErr("prepare", issue.New(issue.KindIO, meta.Workdir, err))
	}
	version, _ := SplitVersion(meta.Version, rpmCfg.ReleaseOrDefault())
	srcDir := filepath.Join(root, meta.Name+"-"+version)
	sourcesDir := filepath.Join(root, "SOURCES")

	logger.Info("staging rpm", "dir", root)
	if err := fileset.ResetDir(root); err != nil {
		return "", stageErr("prepare", err)
	}
	for _, dir := range []string{srcDir, sourcesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", stageErr("prepare", issue.New(issue.KindIO, dir, err))
		}
	}

	staged, err := b.resolver.Resolve(files, meta.SrcDir, srcDir)
	if err != nil {
		return "", stageErr("files", err)
	}
	sort.Strings(staged)

	tarPath := filepath.Join(root, meta.Name+".tar")
	if err := archive.TarWithRoot(srcDir, tarPath); err != nil {
		return "", stageErr("source", err)
	}
	if err := archive.XZFile(ctx, tarPath, filepath.Join(sourcesDir, SourceName(meta)), b.xz); err != nil {
		return "", stageErr("source", err)
	}

	var spec bytes.Buffer
	if err := NewSpec(meta, rpmCfg, arch, staged).Render(&spec); err != nil {
		return "", stageErr("spec", err)
	}
	specPath := filepath.Join(root, meta.Name+".spec")
	if err := os.WriteFile(specPath, spec.Bytes(), 0o644); err != nil {
		return "", stageErr("spec", issue.New(issue.KindIO, specPath, err))
	}

	err = b.runner.Run(ctx, toolexec.Command{
		Name: rpmbuildTool,
		Args: []string{"-D", "_topdir " + root, "--target", arch.RpmName(), "-bb", specPath},
		Dir:  root,
	})
	if err != nil {
		return "", stageErr("rpmbuild", err)
	}

	built, err := findPackage(filepath.Join(root, "RPMS", arch.RpmName()), meta.Name+"-"+version)
	if err != nil {
		return "", stageErr("collect", err)
	}
	name, err := b.expander.ExpandContext(rpmCfg.ArtifactNameOrDefault(),
		macro.ContextFor(meta, macro.Context{Target: types.TargetRpm, Arch: arch}))
	if err != nil {
		return "", stageErr("collect", err)
	}
	out := filepath.Join(meta.Workdir, name)
	if err := fileset.CopyFile(built, out, 0o644); err != nil {
		return "", stageErr("collect", err)
	}

	logger.Info("built rpm", "path", out)
	return out, nil
}

// findPackage returns the single rpm in dir whose name starts with prefix.
func findPackage(dir, prefix string) (string, error) {
	matches, err := doublestar.FilepathGlob(filepath.Join(dir, "*.rpm"))
	if err != nil {
		return "", issue.New(issue.KindGlob, dir, err)
	}
	var found []string
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), prefix+"-") {
			found = append(found, m)
		}
	}
	switch len(found) {
	case 0:
		return "", issue.Errorf(issue.KindProcess, dir, "rpmbuild produced no %s package", prefix)
	case 1:
		return found[0], nil
	default:
		sort.Strings(found)
		return "", issue.Errorf(issue.KindProcess, dir, "rpmbuild produced several packages: %s", strings.Join(found, ", "))
	}
}

func stageErr(stage string, err error) error {
	return fmt.Errorf("rpm %s: %w", stage, err)
}
