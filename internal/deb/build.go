// SPDX-License-Identifier: MPL-2.0

package deb

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/pkgsmith/pkgsmith/internal/archive"
	"github.com/pkgsmith/pkgsmith/internal/fileset"
	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/project"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

const (
	// StageDir is the directory below the workdir holding the deb staging tree.
	StageDir = "deb"

	debianBinary        = "debian-binary"
	debianBinaryContent = "2.0\n"
)

type (
	// Builder assembles .deb packages from a project configuration.
	Builder struct {
		logger   *log.Logger
		resolver *fileset.Resolver
		xz       archive.XZOptions
	}

	// Option configures a Builder.
	Option func(*Builder)

	// layout names every path the pipeline touches.
	layout struct {
		root       string
		data       string
		control    string
		dataTar    string
		controlTar string
		binary     string
	}
)

// WithLogger sets the builder's logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithXZOptions sets the xz encoder parameters for the members.
func WithXZOptions(o archive.XZOptions) Option {
	return func(b *Builder) { b.xz = o }
}

// WithResolver overrides the file set resolver.
func WithResolver(r *fileset.Resolver) Option {
	return func(b *Builder) { b.resolver = r }
}

// NewBuilder creates a deb Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		logger: log.New(io.Discard),
		xz:     archive.DefaultXZOptions(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.resolver == nil {
		b.resolver = fileset.New(fileset.WithLogger(b.logger))
	}
	return b
}

// ArtifactName returns <name>_<version>_<debarch>.deb.
func ArtifactName(m project.Metadata, arch types.Arch) string {
	return fmt.Sprintf("%s_%s_%s.deb", m.Name, m.Version, arch.DebName())
}

func newLayout(workdir string) layout {
	root := filepath.Join(workdir, StageDir)
	return layout{
		root:       root,
		data:       filepath.Join(root, "data"),
		control:    filepath.Join(root, "control"),
		dataTar:    filepath.Join(root, "data.tar"),
		controlTar: filepath.Join(root, "control.tar"),
		binary:     filepath.Join(root, debianBinary),
	}
}

// Build runs the pipeline for one architecture and returns the path of the
// written package. The staging tree is left in place on failure.
func (b *Builder) Build(ctx context.Context, cfg *project.Config, arch types.Arch) (string, error) {
	if cfg.Linux == nil {
		return "", issue.Errorf(issue.KindConfig, "linux", "no [linux] section")
	}
	debCfg := cfg.Linux.Deb
	// The orchestrator skips an absent [linux.deb]; direct callers get the
	// defaults.
	if debCfg == nil {
		debCfg = &project.DebConfig{}
	}
	files := project.ResolveFiles(debCfg, cfg.Linux.Files)
	if files == nil {
		return "", issue.Errorf(issue.KindFilesNotSet, "linux.deb", "neither linux.deb.files nor linux.files is set")
	}

	meta := cfg.Metadata
	codec := debCfg.CompressionOrDefault()
	ext := codec.Extension()
	l := newLayout(meta.Workdir)
	logger := b.logger.With("arch", arch)

	logger.Info("staging deb", "dir", l.root)
	if err := fileset.ResetDir(l.root); err != nil {
		return "", stageErr("prepare", err)
	}
	for _, dir := range []string{l.data, l.control} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", stageErr("prepare", issue.New(issue.KindIO, dir, err))
		}
	}

	staged, err := b.resolver.Resolve(files, meta.SrcDir, l.data)
	if err != nil {
		return "", stageErr("files", err)
	}
	logger.Debug("staged data files", "count", len(staged))

	if err := ctx.Err(); err != nil {
		return "", stageErr("data", issue.New(issue.KindEncode, l.data, err))
	}
	dataMember := l.dataTar + "." + ext
	if err := b.tarAndCompress(ctx, codec, l.data, l.dataTar, dataMember); err != nil {
		return "", stageErr("data", err)
	}

	if _, err := archive.WriteMD5Manifest(l.data, filepath.Join(l.control, "md5sums")); err != nil {
		return "", stageErr("md5sums", err)
	}

	size, err := archive.TreeSize(l.data)
	if err != nil {
		return "", stageErr("control", err)
	}
	control := NewControl(meta, debCfg, arch, size)
	controlFile := filepath.Join(l.control, "control")
	if err := os.WriteFile(controlFile, []byte(control.String()), 0o644); err != nil {
		return "", stageErr("control", issue.New(issue.KindIO, controlFile, err))
	}

	if err := ctx.Err(); err != nil {
		return "", stageErr("control", issue.New(issue.KindEncode, l.control, err))
	}
	controlMember := l.controlTar + "." + ext
	if err := b.tarAndCompress(ctx, codec, l.control, l.controlTar, controlMember); err != nil {
		return "", stageErr("control", err)
	}

	if err := os.WriteFile(l.binary, []byte(debianBinaryContent), 0o644); err != nil {
		return "", stageErr("debian-binary", issue.New(issue.KindIO, l.binary, err))
	}

	out := filepath.Join(meta.Workdir, ArtifactName(meta, arch))
	members := []archive.Member{
		{Path: l.binary},
		{Path: controlMember},
		{Path: dataMember},
	}
	if err := archive.WriteAr(out, members); err != nil {
		return "", stageErr("package", err)
	}

	logger.Info("built deb", "path", out, "installed_size_kib", control.InstalledSize)
	return out, nil
}

func (b *Builder) tarAndCompress(ctx context.Context, codec project.Compression, dir, tarPath, member string) error {
	if err := archive.TarWithoutRoot(dir, tarPath); err != nil {
		return err
	}
	return archive.CompressFile(ctx, codec, tarPath, member, b.xz)
}

func stageErr(stage string, err error) error {
	return fmt.Errorf("deb %s: %w", stage, err)
}
