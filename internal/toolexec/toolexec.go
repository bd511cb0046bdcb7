// SPDX-License-Identifier: MPL-2.0

package toolexec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/platform"
)

// stderrTailSize is how much trailing stderr is kept for error messages.
const stderrTailSize = 4 << 10

type (
	// Command describes one external tool invocation.
	Command struct {
		Name string
		Args []string
		// Dir is the working directory; empty means the current directory.
		Dir string
		// Env entries (KEY=value) are appended to the process environment.
		Env []string
	}

	// Runner runs a command to completion.
	Runner interface {
		// Run shows or discards the tool's output depending on the runner.
		Run(ctx context.Context, cmd Command) error
		// Output returns the tool's stdout.
		Output(ctx context.Context, cmd Command) ([]byte, error)
	}

	// ExecRunner runs commands as child processes.
	ExecRunner struct {
		logger  *log.Logger
		quiet   bool
		stdout  io.Writer
		stderr  io.Writer
		sandbox platform.SandboxType
	}

	// Option configures an ExecRunner.
	Option func(*ExecRunner)

	// tailBuffer keeps the last max bytes written to it.
	tailBuffer struct {
		max int
		buf []byte
	}
)

// WithLogger sets the logger that records each command line.
func WithLogger(l *log.Logger) Option {
	return func(r *ExecRunner) { r.logger = l }
}

// WithQuiet suppresses tool output. Stderr is still captured for errors.
func WithQuiet(quiet bool) Option {
	return func(r *ExecRunner) { r.quiet = quiet }
}

// WithOutput sets where tool output is shown when not quiet.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *ExecRunner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithSandbox routes commands through the given sandbox's host helper.
func WithSandbox(st platform.SandboxType) Option {
	return func(r *ExecRunner) { r.sandbox = st }
}

// NewExecRunner creates a runner that streams tool output to the process's
// stdout and stderr.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		logger:  log.New(io.Discard),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		sandbox: platform.SandboxNone,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts cmd and waits for it. A failure to start or a non-zero exit
// is a KindProcess error carrying the tail of the tool's stderr.
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	if r.quiet {
		return r.run(ctx, c, io.Discard, nil)
	}
	return r.run(ctx, c, r.stdout, r.stderr)
}

// Output runs cmd and returns its stdout. Stderr is shown unless quiet.
func (r *ExecRunner) Output(ctx context.Context, c Command) ([]byte, error) {
	var stdout bytes.Buffer
	stderr := r.stderr
	if r.quiet {
		stderr = nil
	}
	if err := r.run(ctx, c, &stdout, stderr); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

func (r *ExecRunner) run(ctx context.Context, c Command, stdout, stderr io.Writer) error {
	name, args := platform.HostCommand(r.sandbox, c.Name, c.Args)
	r.logger.Info("running", "command", QuoteCommand(name, args), "dir", c.Dir)

	tail := &tailBuffer{max: stderrTailSize}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdout = stdout
	cmd.Stderr = tail
	if stderr != nil {
		cmd.Stderr = io.MultiWriter(stderr, tail)
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(tail.String())
		if msg == "" {
			return issue.Errorf(issue.KindProcess, c.Name, "exited with status %d", exitErr.ExitCode())
		}
		return issue.Errorf(issue.KindProcess, c.Name, "exited with status %d: %s", exitErr.ExitCode(), msg)
	}
	return issue.Errorf(issue.KindProcess, c.Name, "cannot start: %v", err)
}

// QuoteCommand renders name and args as a copy-pasteable shell line.
func QuoteCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, s := range append([]string{name}, args...) {
		q, err := syntax.Quote(s, syntax.LangBash)
		if err != nil {
			// Strings bash cannot quote (NUL bytes) are shown raw.
			q = s
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, " ")
}

// Write implements io.Writer.
func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string { return string(b.buf) }
