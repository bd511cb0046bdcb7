// SPDX-License-Identifier: MPL-2.0

package rpm

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/pkgsmith/pkgsmith/internal/archive"
	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/internal/macro"
	"github.com/pkgsmith/pkgsmith/internal/testutil"
	"github.com/pkgsmith/pkgsmith/internal/toolexec"
	"github.com/pkgsmith/pkgsmith/pkg/project"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

func newDemoProject(t *testing.T) *project.Config {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	testutil.MustWriteFile(t, filepath.Join(src, "demo"), []byte("binary"), 0o755)
	return &project.Config{
		Metadata: project.Metadata{
			Name:        "demo",
			ProductName: "Demo",
			Description: "Demo tool\nDoes demo things.",
			Homepage:    "https://example.org",
			Author:      "Demo <demo@example.org>",
			Version:     "1.0.0",
			License:     "MIT",
			Workdir:     filepath.Join(root, "work"),
			SrcDir:      src,
		},
		Linux: &project.LinuxConfig{
			Arch:    []types.Arch{types.ArchX8664},
			Targets: []types.Target{types.TargetRpm},
			Files:   []project.FileSet{{From: "demo", To: "usr/bin/demo"}},
			Rpm:     &project.RpmConfig{RequiredPkgs: []string{"glibc", "zlib"}},
		},
	}
}

// fakeRpmbuild writes the package rpmbuild would have produced.
func fakeRpmbuild(t *testing.T) *toolexec.Recorder {
	t.Helper()
	return &toolexec.Recorder{Handler: func(cmd toolexec.Command) ([]byte, error) {
		topdir := strings.TrimPrefix(cmd.Args[1], "_topdir ")
		arch := cmd.Args[3]
		out := filepath.Join(topdir, "RPMS", arch, "demo-1.0.0-1.fc40."+arch+".rpm")
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return nil, err
		}
		return nil, os.WriteFile(out, []byte("rpm"), 0o644)
	}}
}

func newTestBuilder(runner toolexec.Runner) *Builder {
	exp := macro.New(
		macro.WithClock(testutil.NewFakeClock(time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local))),
		macro.WithGitHash(func() (string, error) { return "abc1234", nil }),
	)
	return NewBuilder(
		WithRunner(runner),
		WithExpander(exp),
		WithXZOptions(archive.XZOptions{Level: 1, Threads: 1}),
	)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	cfg := newDemoProject(t)
	rec := fakeRpmbuild(t)
	out, err := newTestBuilder(rec).Build(context.Background(), cfg, types.ArchX8664)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if want := filepath.Join(cfg.Metadata.Workdir, "demo-1.0.0-x86_64.rpm"); out != want {
		t.Errorf("artifact = %s, want %s", out, want)
	}
	if data, err := os.ReadFile(out); err != nil || string(data) != "rpm" {
		t.Errorf("artifact content = %q, %v", data, err)
	}

	cmds := rec.Commands()
	if len(cmds) != 1 || cmds[0].Name != "rpmbuild" {
		t.Fatalf("commands = %+v", cmds)
	}
	args := cmds[0].Args
	root := filepath.Join(cfg.Metadata.Workdir, StageDir)
	absRoot, _ := filepath.Abs(root)
	wantArgs := []string{"-D", "_topdir " + absRoot, "--target", "x86_64", "-bb", filepath.Join(absRoot, "demo.spec")}
	if strings.Join(args, "|") != strings.Join(wantArgs, "|") {
		t.Errorf("args = %q\nwant %q", args, wantArgs)
	}

	spec, err := os.ReadFile(filepath.Join(root, "demo.spec"))
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{
		"Name: demo\n",
		"Version: 1.0.0\n",
		"Release: 1%{?dist}\n",
		"Summary: Demo tool\n",
		"BuildArch: x86_64\n",
		"Source0: demo.tar.xz\n",
		"Requires: glibc\nRequires: zlib\n",
		"%setup -q\n",
		"%files\n\"/usr/bin/demo\"\n",
	} {
		if !bytes.Contains(spec, []byte(line)) {
			t.Errorf("spec missing %q:\n%s", line, spec)
		}
	}

	// The source tarball is rooted at <name>-<version>/ for %setup.
	f, err := os.Open(filepath.Join(root, "SOURCES", "demo.tar.xz"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	xr, err := xz.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(xr)
	var names []string
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, hdr.Name)
	}
	if strings.Join(names, ",") != "demo-1.0.0/usr/,demo-1.0.0/usr/bin/,demo-1.0.0/usr/bin/demo" {
		t.Errorf("source entries = %v", names)
	}
}

func TestBuild_CustomArtifactName(t *testing.T) {
	t.Parallel()

	cfg := newDemoProject(t)
	cfg.Linux.Rpm.ArtifactName = "${name}-${date}-${git}.${ext}"
	out, err := newTestBuilder(fakeRpmbuild(t)).Build(context.Background(), cfg, types.ArchX8664)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(out) != "demo-20240102-abc1234.rpm" {
		t.Errorf("artifact = %s", out)
	}
}

func TestBuild_RpmbuildFailure(t *testing.T) {
	t.Parallel()

	rec := &toolexec.Recorder{Handler: func(toolexec.Command) ([]byte, error) {
		return nil, issue.Errorf(issue.KindProcess, "rpmbuild", "exited with status 1")
	}}
	_, err := newTestBuilder(rec).Build(context.Background(), newDemoProject(t), types.ArchX8664)
	if !errors.Is(err, issue.ErrProcess) {
		t.Errorf("error = %v, want ErrProcess", err)
	}
}

func TestBuild_NoPackageProduced(t *testing.T) {
	t.Parallel()

	_, err := newTestBuilder(&toolexec.Recorder{}).Build(context.Background(), newDemoProject(t), types.ArchAArch64)
	if !errors.Is(err, issue.ErrProcess) {
		t.Errorf("error = %v, want ErrProcess", err)
	}
}

func TestBuild_NoFiles(t *testing.T) {
	t.Parallel()

	cfg := newDemoProject(t)
	cfg.Linux.Files = nil
	_, err := newTestBuilder(&toolexec.Recorder{}).Build(context.Background(), cfg, types.ArchX8664)
	if !errors.Is(err, issue.ErrFilesNotSet) {
		t.Errorf("error = %v, want ErrFilesNotSet", err)
	}
}

func TestSplitVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version     string
		wantVersion string
		wantRelease string
	}{
		{"1.0.0", "1.0.0", "1"},
		{"v2.3.4", "2.3.4", "1"},
		{"1.2.3-rc.1", "1.2.3", "0.1.rc.1"},
		{"1.2.3-beta-2+build.5", "1.2.3", "0.1.beta.2"},
		{"1.2.3+build.5", "1.2.3", "1"},
		{"2024-01-02", "2024_01_02", "1"},
	}
	for _, tt := range tests {
		v, r := SplitVersion(tt.version, "1")
		if v != tt.wantVersion || r != tt.wantRelease {
			t.Errorf("SplitVersion(%q) = %q, %q, want %q, %q", tt.version, v, r, tt.wantVersion, tt.wantRelease)
		}
	}
}

func TestSpec_OmitsEmptyURL(t *testing.T) {
	t.Parallel()

	m := newDemoProject(t).Metadata
	m.Homepage = ""
	var buf bytes.Buffer
	if err := NewSpec(m, &project.RpmConfig{}, types.ArchX86, nil).Render(&buf); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "URL:") {
		t.Errorf("spec has empty URL:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "BuildArch: i686\n") {
		t.Errorf("spec arch:\n%s", buf.String())
	}
}
