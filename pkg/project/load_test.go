// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/internal/testutil"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

const validDoc = `
[metadata]
name = "demo"
product_name = "Demo"
app_id = "org.example.demo"
description = "Demo app"
homepage = "https://example.org"
author = "Jane <jane@example.org>"
version = "1.0.0"
build_id = "${date}"
license = "MIT"
workdir = "out"
src_dir = "."

[linux]
arch = ["amd64", "arm64"]
targets = ["deb", "AppImage"]

[[linux.files]]
from = "bin/demo"
to = "usr/bin/demo"
mode = 0o755

[linux.deb]
section = "utils"
depends = "libc6"

[[linux.deb.files]]
from = "share/**"
to = "usr/share/demo"
filter = ["*.png"]

[[tools]]
arch = "x86_64"
url = "https://example.org/appimagetool"
filename = "appimagetool"
sha256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
`

func TestParse_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(validDoc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if cfg.Metadata.Name != "demo" || cfg.Metadata.BuildID != "${date}" {
		t.Errorf("metadata = %+v", cfg.Metadata)
	}
	if cfg.Linux == nil {
		t.Fatal("linux section missing")
	}
	wantArch := []types.Arch{types.ArchX8664, types.ArchAArch64}
	for i, a := range wantArch {
		if cfg.Linux.Arch[i] != a {
			t.Errorf("linux.arch[%d] = %q, want %q", i, cfg.Linux.Arch[i], a)
		}
	}
	if cfg.Linux.Targets[1] != types.TargetAppImage {
		t.Errorf("linux.targets[1] = %q, want app_image", cfg.Linux.Targets[1])
	}
	if m := cfg.Linux.Files[0].Mode; m == nil || *m != 0o755 {
		t.Errorf("linux.files[0].mode = %v, want 0o755", m)
	}
	if cfg.Linux.Deb.PriorityOrDefault() != DefaultDebPriority {
		t.Errorf("priority default = %q", cfg.Linux.Deb.PriorityOrDefault())
	}
	if cfg.Linux.Deb.CompressionOrDefault() != CompressionXZ {
		t.Errorf("compression default = %q", cfg.Linux.Deb.CompressionOrDefault())
	}
	if cfg.Windows != nil {
		t.Error("windows section should be absent")
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].Arch != types.ArchX8664 {
		t.Errorf("tools = %+v", cfg.Tools)
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	doc := validDoc + "\n[linux.snap]\nconfinement = \"strict\"\n"
	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatal("expected error for unknown section")
	}
	if !strings.Contains(err.Error(), "snap") {
		t.Errorf("error should name the unknown key: %v", err)
	}
}

func TestParse_RejectsBadArch(t *testing.T) {
	t.Parallel()

	doc := strings.Replace(validDoc, `"amd64", "arm64"`, `"amd64", "riscv"`, 1)
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("expected error for unknown arch")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing name",
			mutate:  func(c *Config) { c.Metadata.Name = "" },
			wantErr: "metadata.name must be set",
		},
		{
			name:    "windows target in linux",
			mutate:  func(c *Config) { c.Linux.Targets = append(c.Linux.Targets, types.TargetNsis) },
			wantErr: "not a linux target",
		},
		{
			name:    "bad compression",
			mutate:  func(c *Config) { c.Linux.Deb.Compression = "zstd" },
			wantErr: "unsupported codec",
		},
		{
			name:    "absolute destination",
			mutate:  func(c *Config) { c.Linux.Files[0].To = "/usr/bin/demo" },
			wantErr: "must be relative",
		},
		{
			name:    "short digest",
			mutate:  func(c *Config) { c.Tools[0].SHA256 = "abc" },
			wantErr: "expected 64 hex characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Parse([]byte(validDoc))
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFileIsConfigError(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, issue.ErrConfig) {
		t.Errorf("error should be a config error: %v", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || !ae.HasSuggestions() {
		t.Errorf("missing file should carry suggestions: %v", err)
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	restore := testutil.MustChdir(t, dir)
	defer restore()

	if got := ResolvePath(""); got != FileName {
		t.Errorf("ResolvePath() with no pkg dir = %q, want %q", got, FileName)
	}

	testutil.MustMkdirAll(t, DefaultDir, 0o755)
	if err := os.WriteFile(filepath.Join(DefaultDir, FileName), []byte(validDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, want := ResolvePath(""), filepath.Join(DefaultDir, FileName); got != want {
		t.Errorf("ResolvePath() = %q, want %q", got, want)
	}
	if got := ResolvePath("custom.toml"); got != "custom.toml" {
		t.Errorf("explicit path should win, got %q", got)
	}
}

func TestResolveFiles(t *testing.T) {
	t.Parallel()

	shared := []FileSet{{From: "a", To: "a"}}
	override := []FileSet{{From: "b", To: "b"}}

	if got := ResolveFiles(&DebConfig{FileList: override}, shared); got[0].From != "b" {
		t.Errorf("override should win, got %+v", got)
	}
	if got := ResolveFiles(&DebConfig{}, shared); got[0].From != "a" {
		t.Errorf("shared should apply, got %+v", got)
	}
	if got := ResolveFiles(nil, nil); got != nil {
		t.Errorf("no manifest should be nil, got %+v", got)
	}
}

func TestExpandBuildID_ReturnsCopy(t *testing.T) {
	t.Parallel()

	cfg := &Config{Metadata: Metadata{BuildID: "${date}"}}
	out, err := cfg.ExpandBuildID(func(s string) (string, error) { return "20240101", nil })
	if err != nil {
		t.Fatal(err)
	}
	if out.Metadata.BuildID != "20240101" {
		t.Errorf("expanded build id = %q", out.Metadata.BuildID)
	}
	if cfg.Metadata.BuildID != "${date}" {
		t.Error("original config must not be modified")
	}

	boom := errors.New("boom")
	if _, err := cfg.ExpandBuildID(func(string) (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Errorf("expander error should propagate, got %v", err)
	}
}

func TestSample_RoundTrips(t *testing.T) {
	t.Parallel()

	data, err := Marshal(Sample("hello"))
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("sample does not parse: %v\n%s", err, data)
	}
	if cfg.Metadata.Name != "hello" || cfg.Linux.Files[0].Mode == nil || *cfg.Linux.Files[0].Mode != 0o755 {
		t.Errorf("round-tripped sample = %+v", cfg.Linux.Files[0])
	}
}

func TestNsisDefaults(t *testing.T) {
	t.Parallel()

	var n NsisConfig
	if !n.IsOneClick() || !n.IsUnicode() || !n.IsWarningsAsErrors() || n.PerMachine {
		t.Error("unexpected nsis boolean defaults")
	}
	if n.CompressMethodOrDefault() != NsisCompressLzma {
		t.Errorf("compress default = %q", n.CompressMethodOrDefault())
	}
	if n.ArtifactNameOrDefault() != DefaultNsisArtifactName {
		t.Errorf("artifact default = %q", n.ArtifactNameOrDefault())
	}
	off := false
	n.OneClick = &off
	if n.IsOneClick() {
		t.Error("explicit false should win")
	}
}

func TestFileMode_FSMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   FileMode
		want fs.FileMode
	}{
		{0o755, 0o755},
		{0o4755, fs.ModeSetuid | 0o755},
		{0o2750, fs.ModeSetgid | 0o750},
		{0o1777, fs.ModeSticky | 0o777},
		{0o7000, fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky},
	}
	for _, tt := range tests {
		if got := tt.in.FSMode(); got != tt.want {
			t.Errorf("FileMode(%o).FSMode() = %v, want %v", uint32(tt.in), got, tt.want)
		}
	}
}
