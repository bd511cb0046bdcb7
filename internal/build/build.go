// SPDX-License-Identifier: MPL-2.0

package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/project"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

const (
	// StatusRunning is reported before a cell starts.
	StatusRunning Status = "running"
	// StatusBuilt marks a cell that produced its artifact.
	StatusBuilt Status = "built"
	// StatusSkipped marks a cell whose format section is absent.
	StatusSkipped Status = "skipped"
	// StatusFailed marks a cell whose pipeline returned an error.
	StatusFailed Status = "failed"
)

type (
	// Pipeline produces one artifact for one architecture.
	Pipeline interface {
		Build(ctx context.Context, cfg *project.Config, arch types.Arch) (string, error)
	}

	// PipelineFunc adapts a function to Pipeline.
	PipelineFunc func(ctx context.Context, cfg *project.Config, arch types.Arch) (string, error)

	// Options selects what a run builds. Empty selections mean everything
	// the project configures.
	Options struct {
		Targets     []types.Target
		Arches      []types.Arch
		OSFamilies  []types.OSFamily
		IgnoreError bool
	}

	// Status is the state of one cell.
	Status string

	// Outcome is the result of one (target, arch) cell.
	Outcome struct {
		Target   types.Target
		Arch     types.Arch
		Status   Status
		Artifact string
		Err      error
	}

	// Report collects the outcomes of a run in build order.
	Report struct {
		Outcomes []Outcome
	}

	// Orchestrator drives the pipelines over the selected cells, one at a time.
	Orchestrator struct {
		pipelines map[types.Target]Pipeline
		expand    func(string) (string, error)
		progress  func(Outcome)
		logger    *log.Logger
	}

	// Option configures an Orchestrator.
	Option func(*Orchestrator)

	// platformSection is the part of a config one OS family contributes.
	platformSection struct {
		family  types.OSFamily
		arches  []types.Arch
		targets []types.Target
	}
)

// Build implements Pipeline.
func (f PipelineFunc) Build(ctx context.Context, cfg *project.Config, arch types.Arch) (string, error) {
	return f(ctx, cfg, arch)
}

// WithPipeline registers the pipeline for target.
func WithPipeline(target types.Target, p Pipeline) Option {
	return func(o *Orchestrator) { o.pipelines[target] = p }
}

// WithBuildIDExpander sets the function applied once to metadata.build_id
// before any cell runs.
func WithBuildIDExpander(fn func(string) (string, error)) Option {
	return func(o *Orchestrator) { o.expand = fn }
}

// WithProgress sets a hook called before and after every cell.
func WithProgress(fn func(Outcome)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator with no pipelines registered.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		pipelines: make(map[types.Target]Pipeline),
		progress:  func(Outcome) {},
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run builds every selected cell sequentially, linux before windows, in
// configuration order. Without IgnoreError the first failure stops the run
// and is returned as is. With IgnoreError all cells run and the joined
// failures are returned alongside the full report.
func (o *Orchestrator) Run(ctx context.Context, cfg *project.Config, opts Options) (*Report, error) {
	if o.expand != nil {
		expanded, err := cfg.ExpandBuildID(o.expand)
		if err != nil {
			return &Report{}, fmt.Errorf("expanding build_id: %w", err)
		}
		cfg = expanded
	}

	report := &Report{}
	for _, sec := range sections(cfg) {
		if !selected(opts.OSFamilies, sec.family) {
			o.logger.Debug("os family not requested", "os", sec.family)
			continue
		}
		for _, target := range sec.targets {
			if !selected(opts.Targets, target) {
				continue
			}
			for _, arch := range sec.arches {
				if !selected(opts.Arches, arch) {
					continue
				}
				if err := ctx.Err(); err != nil {
					return report, err
				}
				out := o.runCell(ctx, cfg, target, arch)
				report.Outcomes = append(report.Outcomes, out)
				o.progress(out)
				if out.Status == StatusFailed && !opts.IgnoreError {
					return report, out.Err
				}
			}
		}
	}
	return report, report.Err()
}

func (o *Orchestrator) runCell(ctx context.Context, cfg *project.Config, target types.Target, arch types.Arch) Outcome {
	out := Outcome{Target: target, Arch: arch}
	logger := o.logger.With("target", target, "arch", arch)

	if !hasSection(cfg, target) {
		logger.Debug("format section absent, skipping")
		out.Status = StatusSkipped
		return out
	}
	p, ok := o.pipelines[target]
	if !ok {
		out.Status = StatusFailed
		out.Err = issue.Errorf(issue.KindConfig, target.String(), "no pipeline for target %s", target)
		return out
	}

	o.progress(Outcome{Target: target, Arch: arch, Status: StatusRunning})
	artifact, err := p.Build(ctx, cfg, arch)
	if err != nil {
		logger.Error("build failed", "err", err)
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	out.Status = StatusBuilt
	out.Artifact = artifact
	return out
}

// Built returns the outcomes that produced an artifact.
func (r *Report) Built() []Outcome { return r.filter(StatusBuilt) }

// Failed returns the outcomes whose pipeline failed.
func (r *Report) Failed() []Outcome { return r.filter(StatusFailed) }

// Skipped returns the outcomes whose format section was absent.
func (r *Report) Skipped() []Outcome { return r.filter(StatusSkipped) }

// Err joins the errors of every failed cell, each prefixed with its cell.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s/%s: %w", o.Target, o.Arch, o.Err))
	}
	return errors.Join(errs...)
}

func (r *Report) filter(s Status) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == s {
			out = append(out, o)
		}
	}
	return out
}

func sections(cfg *project.Config) []platformSection {
	var out []platformSection
	if l := cfg.Linux; l != nil {
		out = append(out, platformSection{family: types.OSLinux, arches: l.Arch, targets: l.Targets})
	}
	if w := cfg.Windows; w != nil {
		out = append(out, platformSection{family: types.OSWindows, arches: w.Arch, targets: w.Targets})
	}
	return out
}

// hasSection reports whether the per-format section of target is present.
func hasSection(cfg *project.Config, target types.Target) bool {
	switch target {
	case types.TargetDeb:
		return cfg.Linux != nil && cfg.Linux.Deb != nil
	case types.TargetRpm:
		return cfg.Linux != nil && cfg.Linux.Rpm != nil
	case types.TargetAppImage:
		return cfg.Linux != nil && cfg.Linux.AppImage != nil
	case types.TargetNsis:
		return cfg.Windows != nil && cfg.Windows.Nsis != nil
	default:
		return false
	}
}

func selected[T comparable](requested []T, v T) bool {
	return len(requested) == 0 || slices.Contains(requested, v)
}
