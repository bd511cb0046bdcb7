// SPDX-License-Identifier: MPL-2.0

package toolexec

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/pkgsmith/pkgsmith/internal/issue"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
}

func TestExecRunner_Success(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	var stdout, stderr bytes.Buffer
	r := NewExecRunner(WithOutput(&stdout, &stderr))
	err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo out; echo err >&2"}})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if stdout.String() != "out\n" || stderr.String() != "err\n" {
		t.Errorf("stdout %q stderr %q", stdout.String(), stderr.String())
	}
}

func TestExecRunner_QuietSuppressesOutput(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	var stdout, stderr bytes.Buffer
	r := NewExecRunner(WithOutput(&stdout, &stderr), WithQuiet(true))
	if err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo hidden; echo hidden >&2"}}); err != nil {
		t.Fatal(err)
	}
	if stdout.Len() != 0 || stderr.Len() != 0 {
		t.Errorf("quiet runner wrote output: %q %q", stdout.String(), stderr.String())
	}
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	r := NewExecRunner(WithQuiet(true))
	err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo 'spec file broken' >&2; exit 3"}})
	if !errors.Is(err, issue.ErrProcess) {
		t.Fatalf("error = %v, want ErrProcess", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "status 3") || !strings.Contains(msg, "spec file broken") {
		t.Errorf("error message lacks exit status or stderr tail: %q", msg)
	}
}

func TestExecRunner_MissingTool(t *testing.T) {
	t.Parallel()

	r := NewExecRunner(WithQuiet(true))
	err := r.Run(context.Background(), Command{Name: "pkgsmith-no-such-tool"})
	if !errors.Is(err, issue.ErrProcess) {
		t.Errorf("error = %v, want ErrProcess", err)
	}
}

func TestExecRunner_OutputAndEnv(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	r := NewExecRunner(WithQuiet(true))
	out, err := r.Output(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "printf %s \"$ARCH\"; pwd"},
		Dir:  "/",
		Env:  []string{"ARCH=x86_64"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "x86_64/\n" {
		t.Errorf("Output() = %q", out)
	}
}

func TestQuoteCommand(t *testing.T) {
	t.Parallel()

	got := QuoteCommand("rpmbuild", []string{"-D", "_topdir /tmp/work dir", "-bb", "demo.spec"})
	want := "rpmbuild -D '_topdir /tmp/work dir' -bb demo.spec"
	if got != want {
		t.Errorf("QuoteCommand() = %q, want %q", got, want)
	}
}

func TestTailBuffer(t *testing.T) {
	t.Parallel()

	b := &tailBuffer{max: 4}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defg"))
	if b.String() != "defg" {
		t.Errorf("tail = %q", b.String())
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	rec := &Recorder{Handler: func(cmd Command) ([]byte, error) {
		if cmd.Name == "fail" {
			return nil, issue.Errorf(issue.KindProcess, cmd.Name, "boom")
		}
		return []byte("ok"), nil
	}}
	ctx := context.Background()
	if out, err := rec.Output(ctx, Command{Name: "ldd"}); err != nil || string(out) != "ok" {
		t.Errorf("Output() = %q, %v", out, err)
	}
	if err := rec.Run(ctx, Command{Name: "fail"}); !errors.Is(err, issue.ErrProcess) {
		t.Errorf("Run() = %v", err)
	}
	if n := len(rec.Commands()); n != 2 {
		t.Errorf("recorded %d commands", n)
	}
}
