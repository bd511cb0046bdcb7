// SPDX-License-Identifier: MPL-2.0

package appimage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/pkgsmith/pkgsmith/internal/fileset"
	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/internal/macro"
	"github.com/pkgsmith/pkgsmith/internal/toolexec"
	"github.com/pkgsmith/pkgsmith/pkg/project"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

const (
	// StageDir is the directory below the workdir holding AppDir.
	StageDir = "app_image"
	// AppDirName is the AppDir passed to appimagetool.
	AppDirName = "AppDir"
	// LibsDir receives bundled shared libraries inside AppDir.
	LibsDir = "libs"

	appImageTool = "appimagetool"
	lddTool      = "ldd"
)

// lddPattern matches "name => /path/to/lib (0xaddr)" lines of ldd output.
var lddPattern = regexp.MustCompile(`\s+(.+)\s+=>\s+(\S+)\s+\(\S+\)`)

type (
	// Builder produces AppImages with appimagetool.
	Builder struct {
		logger   *log.Logger
		runner   toolexec.Runner
		expander *macro.Expander
		resolver *fileset.Resolver
		toolsDir string
	}

	// Option configures a Builder.
	Option func(*Builder)

	// Library is one resolved shared library dependency.
	Library struct {
		Name string
		Path string
	}
)

// WithLogger sets the builder's logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithRunner sets the process runner for ldd and appimagetool.
func WithRunner(r toolexec.Runner) Option {
	return func(b *Builder) { b.runner = r }
}

// WithExpander sets the macro expander for artifact_name.
func WithExpander(e *macro.Expander) Option {
	return func(b *Builder) { b.expander = e }
}

// WithToolsDir sets the directory searched for a downloaded appimagetool
// before PATH.
func WithToolsDir(dir string) Option {
	return func(b *Builder) { b.toolsDir = dir }
}

// NewBuilder creates an AppImage Builder.
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

// Build stages AppDir, bundles shared libraries and runs appimagetool.
func (b *Builder) Build(ctx context.Context, cfg *project.Config, arch types.Arch) (string, error) {
	if cfg.Linux == nil {
		return "", issue.Errorf(issue.KindConfig, "linux", "no [linux] section")
	}
	aiCfg := cfg.Linux.AppImage
	// Reached only by direct callers; Run skips an absent section.
	if aiCfg == nil {
		aiCfg = &project.AppImageConfig{}
	}
	files := project.ResolveFiles(aiCfg, cfg.Linux.Files)
	if files == nil {
		return "", issue.Errorf(issue.KindFilesNotSet, "linux.app_image", "neither linux.app_image.files nor linux.files is set")
	}

	meta := cfg.Metadata
	logger := b.logger.With("arch", arch)
	root, err := filepath.Abs(filepath.Join(meta.Workdir, StageDir))
	if err != nil {
		return "", stageErr("prepare", issue.New(issue.KindIO, meta.Workdir, err))
	}
	appDir := filepath.Join(root, AppDirName)

	logger.Info("staging AppImage", "dir", appDir)
	if err := fileset.ResetDir(root); err != nil {
		return "", stageErr("prepare", err)
	}
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return "", stageErr("prepare", issue.New(issue.KindIO, appDir, err))
	}
	if _, err := b.resolver.Resolve(files, meta.SrcDir, appDir); err != nil {
		return "", stageErr("files", err)
	}

	if aiCfg.EmbedLibsEnabled() && len(aiCfg.ExeFiles) > 0 {
		n, err := b.embedLibraries(ctx, appDir, aiCfg)
		if err != nil {
			return "", stageErr("libs", err)
		}
		logger.Debug("bundled shared libraries", "count", n)
	}

	name, err := b.expander.ExpandContext(aiCfg.ArtifactNameOrDefault(),
		macro.ContextFor(meta, macro.Context{Target: types.TargetAppImage, Arch: arch}))
	if err != nil {
		return "", stageErr("name", err)
	}
	out, err := filepath.Abs(filepath.Join(meta.Workdir, name))
	if err != nil {
		return "", stageErr("name", issue.New(issue.KindIO, name, err))
	}

	err = b.runner.Run(ctx, toolexec.Command{
		Name: b.toolPath(arch),
		Args: []string{AppDirName, out},
		Dir:  root,
		Env:  []string{"ARCH=" + arch.AppImageName()},
	})
	if err != nil {
		return "", stageErr(appImageTool, err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", stageErr(appImageTool, issue.Errorf(issue.KindProcess, out, "appimagetool did not write the image"))
	}

	logger.Info("built AppImage", "path", out)
	return out, nil
}

// embedLibraries copies the dependencies of every exe_files entry into
// AppDir/libs and returns how many were copied.
func (b *Builder) embedLibraries(ctx context.Context, appDir string, cfg *project.AppImageConfig) (int, error) {
	libsDir := filepath.Join(appDir, LibsDir)
	if err := os.MkdirAll(libsDir, 0o755); err != nil {
		return 0, issue.New(issue.KindIO, libsDir, err)
	}

	copied := 0
	for _, exe := range cfg.ExeFiles {
		if !filepath.IsAbs(exe) {
			exe = filepath.Join(appDir, filepath.FromSlash(exe))
		}
		out, err := b.runner.Output(ctx, toolexec.Command{Name: lddTool, Args: []string{exe}})
		if err != nil {
			return copied, err
		}
		for _, lib := range ParseLdd(string(out)) {
			if excluded(cfg.ExcludeLibs, lib.Name) {
				b.logger.Debug("skipping excluded library", "lib", lib.Name)
				continue
			}
			info, err := os.Stat(lib.Path)
			if err != nil {
				return copied, issue.New(issue.KindIO, lib.Path, err)
			}
			if err := fileset.CopyFile(lib.Path, filepath.Join(libsDir, lib.Name), info.Mode().Perm()); err != nil {
				return copied, err
			}
			copied++
		}
	}
	return copied, nil
}

// ParseLdd extracts resolved libraries from ldd output. Entries without a
// load address, such as "not found" lines, are ignored.
func ParseLdd(output string) []Library {
	var libs []Library
	for _, m := range lddPattern.FindAllStringSubmatch(output, -1) {
		libs = append(libs, Library{Name: strings.TrimSpace(m[1]), Path: m[2]})
	}
	return libs
}

// excluded reports whether name equals or glob-matches an exclude_libs entry.
func excluded(patterns []string, name string) bool {
	for _, pat := range patterns {
		if pat == name {
			return true
		}
		if matched, err := doublestar.Match(pat, name); err == nil && matched {
			return true
		}
	}
	return false
}

// toolPath prefers a downloaded appimagetool over the one on PATH.
func (b *Builder) toolPath(arch types.Arch) string {
	if b.toolsDir == "" {
		return appImageTool
	}
	for _, candidate := range []string{
		appImageTool + "-" + arch.AppImageName() + ".AppImage",
		appImageTool,
	} {
		p := filepath.Join(b.toolsDir, candidate)
		info, err := os.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			b.logger.Warn("cannot inspect tool", "path", p, "err", err)
		}
	}
	return appImageTool
}

func stageErr(stage string, err error) error {
	return fmt.Errorf("app_image %s: %w", stage, err)
}
