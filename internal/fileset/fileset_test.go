// SPDX-License-Identifier: MPL-2.0

package fileset

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/internal/testutil"
	"github.com/pkgsmith/pkgsmith/pkg/project"
)

func mode(m project.FileMode) *project.FileMode { return &m }

// newSourceTree lays out a small project:
//
//	bin/demo
//	bin/demo-helper
//	share/doc/README.md
//	share/doc/notes.txt
//	share/icons/demo.png
func newSourceTree(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(src, "bin", "demo"), []byte("#!/bin/sh\necho demo\n"), 0o755)
	testutil.MustWriteFile(t, filepath.Join(src, "bin", "demo-helper"), []byte("helper"), 0o700)
	testutil.MustWriteFile(t, filepath.Join(src, "share", "doc", "README.md"), []byte("# demo\n"), 0o644)
	testutil.MustWriteFile(t, filepath.Join(src, "share", "doc", "notes.txt"), []byte("notes"), 0o644)
	testutil.MustWriteFile(t, filepath.Join(src, "share", "icons", "demo.png"), []byte{0x89, 'P', 'N', 'G'}, 0o644)
	return src
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

// =============================================================================
// Literal entries
// =============================================================================

func TestResolve_LiteralFileLandsAtTo(t *testing.T) {
	t.Parallel()

	src, dest := newSourceTree(t), t.TempDir()
	staged, err := Resolve([]project.FileSet{{From: "bin/demo", To: "usr/bin/demo-app"}}, src, dest)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if !slices.Equal(staged, []string{"usr/bin/demo-app"}) {
		t.Errorf("staged = %v", staged)
	}
	if got := readFile(t, filepath.Join(dest, "usr", "bin", "demo-app")); got != "#!/bin/sh\necho demo\n" {
		t.Errorf("content = %q", got)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dest, "usr", "bin", "demo-app"))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o755 {
			t.Errorf("mode = %o, want source bits 755", info.Mode().Perm())
		}
	}
}

func TestResolve_LiteralFileWithTrailingSlashKeepsName(t *testing.T) {
	t.Parallel()

	src, dest := newSourceTree(t), t.TempDir()
	staged, err := Resolve([]project.FileSet{{From: "bin/demo", To: "usr/bin/"}}, src, dest)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(staged, []string{"usr/bin/demo"}) {
		t.Errorf("staged = %v", staged)
	}
}

func TestResolve_LiteralDirectoryIsMirrored(t *testing.T) {
	t.Parallel()

	src, dest := newSourceTree(t), t.TempDir()
	staged, err := Resolve([]project.FileSet{{From: "share", To: "usr/share"}}, src, dest)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"usr/share/doc/README.md", "usr/share/doc/notes.txt", "usr/share/icons/demo.png"}
	if !slices.Equal(staged, want) {
		t.Errorf("staged = %v, want %v", staged, want)
	}
}

// =============================================================================
// Wildcards and filters
// =============================================================================

func TestResolve_WildcardPlacesMatchesUnderTo(t *testing.T) {
	t.Parallel()

	src, dest := newSourceTree(t), t.TempDir()
	staged, err := Resolve([]project.FileSet{{From: "bin/*", To: "opt/demo"}}, src, dest)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"opt/demo/demo", "opt/demo/demo-helper"}
	if !slices.Equal(staged, want) {
		t.Errorf("staged = %v, want %v", staged, want)
	}
}

func TestResolve_DoubleStar(t *testing.T) {
	t.Parallel()

	src, dest := newSourceTree(t), t.TempDir()
	staged, err := Resolve([]project.FileSet{{From: "share/**/*.md", To: "doc"}}, src, dest)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(staged, []string{"doc/README.md"}) {
		t.Errorf("staged = %v", staged)
	}
}

func TestResolve_FilterAllowList(t *testing.T) {
	t.Parallel()

	src, dest := newSourceTree(t), t.TempDir()
	sets := []project.FileSet{{From: "share", To: "usr/share", Filter: []string{"*.txt", "icons/**"}}}
	staged, err := Resolve(sets, src, dest)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"usr/share/doc/notes.txt", "usr/share/icons/demo.png"}
	if !slices.Equal(staged, want) {
		t.Errorf("staged = %v, want %v", staged, want)
	}
	if _, err := os.Stat(filepath.Join(dest, "usr", "share", "doc", "README.md")); !os.IsNotExist(err) {
		t.Errorf("filtered file should not be staged, stat err = %v", err)
	}
}

func TestResolve_InvalidFilter(t *testing.T) {
	t.Parallel()

	src, dest := newSourceTree(t), t.TempDir()
	_, err := Resolve([]project.FileSet{{From: "share", To: "x", Filter: []string{"[a-"}}}, src, dest)
	if !errors.Is(err, issue.ErrGlob) {
		t.Errorf("error = %v, want ErrGlob", err)
	}
}

// =============================================================================
// Modes, ordering, failures
// =============================================================================

func TestResolve_ModeOverride(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on Windows")
	}

	src, dest := newSourceTree(t), t.TempDir()
	_, err := Resolve([]project.FileSet{{From: "share/doc", To: "doc", Mode: mode(0o600)}}, src, dest)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dest, "doc", "README.md"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %o, want 600", info.Mode().Perm())
	}
}

func TestResolve_SpecialModeBits(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("setuid is unix only")
	}

	tests := []struct {
		name   string
		source os.FileMode
		set    *project.FileMode
		want   os.FileMode
	}{
		{"override", 0o644, mode(0o4755), os.ModeSetuid | 0o755},
		{"inherited", os.ModeSetuid | 0o750, nil, os.ModeSetuid | 0o750},
		{"plain override clears", os.ModeSetuid | 0o755, mode(0o755), 0o755},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src, dest := t.TempDir(), t.TempDir()
			p := filepath.Join(src, "bin", "demo")
			testutil.MustWriteFile(t, p, []byte("demo"), 0o644)
			if err := os.Chmod(p, tt.source); err != nil {
				t.Fatal(err)
			}

			if _, err := Resolve([]project.FileSet{{From: "bin/demo", To: "usr/bin/demo", Mode: tt.set}}, src, dest); err != nil {
				t.Fatal(err)
			}
			info, err := os.Stat(filepath.Join(dest, "usr", "bin", "demo"))
			if err != nil {
				t.Fatal(err)
			}
			if got := info.Mode() & (os.ModePerm | os.ModeSetuid); got != tt.want {
				t.Errorf("mode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve_LaterEntriesOverwrite(t *testing.T) {
	t.Parallel()

	src, dest := newSourceTree(t), t.TempDir()
	sets := []project.FileSet{
		{From: "share/doc/README.md", To: "README"},
		{From: "share/doc/notes.txt", To: "README"},
	}
	if _, err := Resolve(sets, src, dest); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(dest, "README")); got != "notes" {
		t.Errorf("README = %q, want the second entry", got)
	}
}

func TestResolve_ZeroMatchesFails(t *testing.T) {
	t.Parallel()

	src, dest := newSourceTree(t), t.TempDir()
	tests := []string{"missing.txt", "bin/*.exe", "nowhere/**/*.so"}
	for _, from := range tests {
		_, err := Resolve([]project.FileSet{{From: from, To: "x"}}, src, dest)
		if !errors.Is(err, issue.ErrGlob) {
			t.Errorf("Resolve(%q) error = %v, want ErrGlob", from, err)
		}
	}
}

func TestResolve_FollowsFileSymlinks(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on Windows")
	}

	src, dest := newSourceTree(t), t.TempDir()
	if err := os.Symlink(filepath.Join(src, "bin", "demo"), filepath.Join(src, "share", "doc", "demo-link")); err != nil {
		t.Fatal(err)
	}

	if _, err := Resolve([]project.FileSet{{From: "share/doc", To: "doc"}}, src, dest); err != nil {
		t.Fatal(err)
	}
	info, err := os.Lstat(filepath.Join(dest, "doc", "demo-link"))
	if err != nil {
		t.Fatal(err)
	}
	if !info.Mode().IsRegular() {
		t.Errorf("symlink should be staged as a regular file, got %v", info.Mode())
	}
}

func TestResolve_RejectsSymlinkedDirectory(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on Windows")
	}

	src, dest := newSourceTree(t), t.TempDir()
	if err := os.Symlink(filepath.Join(src, "bin"), filepath.Join(src, "share", "bin-link")); err != nil {
		t.Fatal(err)
	}

	_, err := Resolve([]project.FileSet{{From: "share", To: "usr/share"}}, src, dest)
	if !errors.Is(err, issue.ErrIO) {
		t.Errorf("error = %v, want ErrIO", err)
	}
}

func TestResetDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "deb")
	testutil.MustWriteFile(t, filepath.Join(dir, "data", "stale"), []byte("old"), 0o644)
	if err := ResetDir(dir); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("ResetDir left %d entries", len(entries))
	}
}
