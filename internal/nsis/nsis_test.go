// SPDX-License-Identifier: MPL-2.0

package nsis

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/internal/testutil"
	"github.com/pkgsmith/pkgsmith/internal/toolexec"
	"github.com/pkgsmith/pkgsmith/pkg/project"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

func newDemoProject(t *testing.T) *project.Config {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	testutil.MustWriteFile(t, filepath.Join(src, "demo.exe"), []byte("MZ"), 0o644)
	testutil.MustWriteFile(t, filepath.Join(src, "LICENSE"), []byte("MIT"), 0o644)
	return &project.Config{
		Metadata: project.Metadata{
			Name:        "demo",
			ProductName: "Demo",
			AppID:       "org.example.demo",
			Author:      "Demo Authors",
			Version:     "1.2.3",
			LicenseFile: "LICENSE",
			Workdir:     filepath.Join(root, "work"),
			SrcDir:      src,
		},
		Windows: &project.WindowsConfig{
			Arch:    []types.Arch{types.ArchX8664},
			Targets: []types.Target{types.TargetNsis},
			Files:   []project.FileSet{{From: "demo.exe", To: "demo.exe"}},
			Nsis:    &project.NsisConfig{},
		},
	}
}

// fakeMakensis writes the OutFile named in the script it is given.
func fakeMakensis() *toolexec.Recorder {
	return &toolexec.Recorder{Handler: func(cmd toolexec.Command) ([]byte, error) {
		script, err := os.ReadFile(cmd.Args[len(cmd.Args)-1])
		if err != nil {
			return nil, err
		}
		for line := range strings.SplitSeq(string(script), "\n") {
			if out, ok := strings.CutPrefix(line, "OutFile "); ok {
				return nil, os.WriteFile(strings.Trim(out, `"`), []byte("exe"), 0o644)
			}
		}
		return nil, errors.New("no OutFile")
	}}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	cfg := newDemoProject(t)
	rec := fakeMakensis()
	out, err := NewBuilder(WithRunner(rec)).Build(context.Background(), cfg, types.ArchX8664)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	want, _ := filepath.Abs(filepath.Join(cfg.Metadata.Workdir, "Demo Setup 1.2.3.exe"))
	if out != want {
		t.Errorf("artifact = %s, want %s", out, want)
	}

	root, _ := filepath.Abs(filepath.Join(cfg.Metadata.Workdir, StageDir))
	if _, err := os.Stat(filepath.Join(root, FilesDir, "demo.exe")); err != nil {
		t.Errorf("payload not staged: %v", err)
	}

	cmds := rec.Commands()
	if len(cmds) != 1 || cmds[0].Name != "makensis" || cmds[0].Dir != root {
		t.Fatalf("commands = %+v", cmds)
	}
	wantArgs := "-V2 -INPUTCHARSET UTF8 -WX " + filepath.Join(root, "demo.nsi")
	if got := strings.Join(cmds[0].Args, " "); got != wantArgs {
		t.Errorf("args = %q, want %q", got, wantArgs)
	}
}

func TestBuild_ReservedName(t *testing.T) {
	t.Parallel()

	cfg := newDemoProject(t)
	cfg.Windows.Files = append(cfg.Windows.Files, project.FileSet{From: "LICENSE", To: "docs/aux.txt"})
	rec := fakeMakensis()
	_, err := NewBuilder(WithRunner(rec)).Build(context.Background(), cfg, types.ArchX8664)
	if !errors.Is(err, issue.ErrConfig) {
		t.Fatalf("error = %v, want ErrConfig", err)
	}
	if !strings.Contains(err.Error(), "aux.txt") {
		t.Errorf("error = %v, want the offending path", err)
	}
	if len(rec.Commands()) != 0 {
		t.Error("makensis ran despite the invalid payload")
	}
}

func TestBuild_MakensisWroteNothing(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder(WithRunner(&toolexec.Recorder{})).Build(context.Background(), newDemoProject(t), types.ArchX8664)
	if !errors.Is(err, issue.ErrProcess) {
		t.Errorf("error = %v, want ErrProcess", err)
	}
}

func TestBuild_NoFiles(t *testing.T) {
	t.Parallel()

	cfg := newDemoProject(t)
	cfg.Windows.Files = nil
	_, err := NewBuilder(WithRunner(&toolexec.Recorder{})).Build(context.Background(), cfg, types.ArchX8664)
	if !errors.Is(err, issue.ErrFilesNotSet) {
		t.Errorf("error = %v, want ErrFilesNotSet", err)
	}
}

func TestArgs(t *testing.T) {
	t.Parallel()

	off := false
	cfg := &project.NsisConfig{Unicode: &off, WarningsAsErrors: &off}
	if got := strings.Join(Args(cfg, "demo.nsi"), " "); got != "-V2 demo.nsi" {
		t.Errorf("Args() = %q", got)
	}
}

func renderScript(t *testing.T, m project.Metadata, cfg *project.NsisConfig, arch types.Arch) string {
	t.Helper()
	var buf bytes.Buffer
	if err := NewScript(m, cfg, arch, "/stage/files", "/out/Demo Setup.exe").Render(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestScript_Defaults(t *testing.T) {
	t.Parallel()

	m := newDemoProject(t).Metadata
	got := renderScript(t, m, &project.NsisConfig{}, types.ArchX8664)
	for _, line := range []string{
		"Unicode true\n",
		"SetCompressor /SOLID lzma\n",
		`Name "Demo"` + "\n",
		`OutFile "/out/Demo Setup.exe"` + "\n",
		`InstallDir "$LOCALAPPDATA\Programs\Demo"` + "\n",
		"RequestExecutionLevel highest\n",
		`!insertmacro MUI_PAGE_INSTFILES` + "\n",
		"SetShellVarContext current\n",
		`Exec '"$INSTDIR\demo.exe"'` + "\n",
		`File /r "` + filepath.Join("/stage/files", "*") + `"`,
		`Software\Microsoft\Windows\CurrentVersion\Uninstall\org.example.demo`,
		`CreateShortcut "$DESKTOP\Demo.lnk" "$INSTDIR\demo.exe"`,
		`CreateShortcut "$SMPROGRAMS\Demo\Demo.lnk" "$INSTDIR\demo.exe"`,
	} {
		if !strings.Contains(got, line) {
			t.Errorf("script missing %q:\n%s", line, got)
		}
	}
	// One-click installers have no wizard pages.
	for _, absent := range []string{"MUI_PAGE_WELCOME", "MUI_PAGE_DIRECTORY", "$SMSTARTUP", "$APPDATA"} {
		if strings.Contains(got, absent) {
			t.Errorf("script has %q:\n%s", absent, got)
		}
	}
}

func TestScript_Wizard(t *testing.T) {
	t.Parallel()

	off := false
	m := newDemoProject(t).Metadata
	m.Company = "Example Corp"
	cfg := &project.NsisConfig{
		OneClick:                 &off,
		PerMachine:               true,
		GUID:                     "{1234-ABCD}",
		UninstallDisplayName:     `Demo "Classic"`,
		CompressMethod:           project.NsisCompressZlib,
		RunOnStartup:             true,
		DeleteAppDataOnUninstall: true,
		CreateDesktopShortcut:    &off,
		Unicode:                  &off,
	}
	got := renderScript(t, m, cfg, types.ArchX86)
	for _, line := range []string{
		"SetCompressor /SOLID zlib\n",
		`InstallDir "$PROGRAMFILES\Demo"` + "\n",
		"RequestExecutionLevel admin\n",
		"SetShellVarContext all\n",
		"!insertmacro MUI_PAGE_WELCOME\n",
		`!insertmacro MUI_PAGE_LICENSE "` + filepath.Join(m.SrcDir, "LICENSE") + `"`,
		"!insertmacro MUI_PAGE_DIRECTORY\n",
		"!insertmacro MUI_PAGE_FINISH\n",
		`!define MUI_FINISHPAGE_RUN "$INSTDIR\demo.exe"`,
		`"DisplayName" "Demo $\"Classic$\""`,
		`"Publisher" "Example Corp"`,
		`Uninstall\{1234-ABCD}`,
		`CreateShortcut "$SMSTARTUP\Demo.lnk"`,
		`RMDir /r "$APPDATA\Demo"`,
	} {
		if !strings.Contains(got, line) {
			t.Errorf("script missing %q:\n%s", line, got)
		}
	}
	for _, absent := range []string{"Unicode true", "$DESKTOP", ".onInstSuccess"} {
		if strings.Contains(got, absent) {
			t.Errorf("script has %q:\n%s", absent, got)
		}
	}
}

func TestQuote(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"plain", `"plain"`},
		{`say "hi"`, `"say $\"hi$\""`},
		{"$HOME", `"$$HOME"`},
		{"a\nb", `"a$\nb"`},
	}
	for _, tt := range tests {
		if got := quote(tt.in); got != tt.want {
			t.Errorf("quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSafeName(t *testing.T) {
	t.Parallel()

	if got := safeName(`My: App? $1.`); got != "My App 1" {
		t.Errorf("safeName() = %q", got)
	}
}
