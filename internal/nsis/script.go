// SPDX-License-Identifier: MPL-2.0

package nsis

import (
	"io"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/project"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

const uninstallRegRoot = `Software\Microsoft\Windows\CurrentVersion\Uninstall\`

var scriptTemplate = template.Must(template.New("nsi").Funcs(template.FuncMap{
	"q": quote,
}).Parse(`; Generated by pkgsmith. Edits are overwritten on the next build.
{{- if .Unicode}}
Unicode true
{{- end}}
SetCompressor /SOLID {{.Compressor}}

!include "MUI2.nsh"
{{- if .Include}}
!include {{q .Include}}
{{- end}}

Name {{q .ProductName}}
OutFile {{q .OutFile}}
InstallDir "{{.InstallRoot}}\{{.ProductDir}}"
RequestExecutionLevel {{.ExecutionLevel}}
{{- if .InstallerIcon}}
!define MUI_ICON {{q .InstallerIcon}}
{{- end}}
{{- if .UninstallerIcon}}
!define MUI_UNICON {{q .UninstallerIcon}}
{{- end}}
{{- if .InstallerHeader}}
!define MUI_HEADERIMAGE
!define MUI_HEADERIMAGE_BITMAP {{q .InstallerHeader}}
{{- end}}
{{- if .InstallerSidebar}}
!define MUI_WELCOMEFINISHPAGE_BITMAP {{q .InstallerSidebar}}
{{- end}}
{{- if .UninstallerSidebar}}
!define MUI_UNWELCOMEFINISHPAGE_BITMAP {{q .UninstallerSidebar}}
{{- end}}
{{- if and .RunAfterFinish (not .OneClick)}}
!define MUI_FINISHPAGE_RUN "$INSTDIR\{{.MainExe}}"
{{- end}}
{{if not .OneClick}}
!insertmacro MUI_PAGE_WELCOME
{{- if .LicenseFile}}
!insertmacro MUI_PAGE_LICENSE {{q .LicenseFile}}
{{- end}}
{{- if .AllowChangeDir}}
!insertmacro MUI_PAGE_DIRECTORY
{{- end}}
{{- end}}
!insertmacro MUI_PAGE_INSTFILES
{{- if not .OneClick}}
!insertmacro MUI_PAGE_FINISH
{{- end}}
!insertmacro MUI_UNPAGE_CONFIRM
!insertmacro MUI_UNPAGE_INSTFILES
!insertmacro MUI_LANGUAGE "English"

Function .onInit
  SetShellVarContext {{if .PerMachine}}all{{else}}current{{end}}
FunctionEnd

Function un.onInit
  SetShellVarContext {{if .PerMachine}}all{{else}}current{{end}}
FunctionEnd
{{- if and .RunAfterFinish .OneClick}}

Function .onInstSuccess
  Exec '"$INSTDIR\{{.MainExe}}"'
FunctionEnd
{{- end}}

Section "Install"
  SetOutPath "$INSTDIR"
  File /r {{q .FilesGlob}}
  WriteUninstaller "$INSTDIR\Uninstall.exe"
  WriteRegStr SHCTX "{{.UninstallKey}}" "DisplayName" {{q .UninstallDisplayName}}
  WriteRegStr SHCTX "{{.UninstallKey}}" "DisplayVersion" {{q .Version}}
  WriteRegStr SHCTX "{{.UninstallKey}}" "Publisher" {{q .Publisher}}
  WriteRegStr SHCTX "{{.UninstallKey}}" "UninstallString" '"$INSTDIR\Uninstall.exe"'
{{- if .DesktopShortcut}}
  CreateShortcut "$DESKTOP\{{.ProductDir}}.lnk" "$INSTDIR\{{.MainExe}}"
{{- end}}
{{- if .StartMenuShortcut}}
  CreateDirectory "$SMPROGRAMS\{{.ProductDir}}"
  CreateShortcut "$SMPROGRAMS\{{.ProductDir}}\{{.ProductDir}}.lnk" "$INSTDIR\{{.MainExe}}"
{{- end}}
{{- if .RunOnStartup}}
  CreateShortcut "$SMSTARTUP\{{.ProductDir}}.lnk" "$INSTDIR\{{.MainExe}}"
{{- end}}
SectionEnd
{{- if .Script}}

!include {{q .Script}}
{{- end}}

Section "Uninstall"
  RMDir /r "$INSTDIR"
{{- if .DesktopShortcut}}
  Delete "$DESKTOP\{{.ProductDir}}.lnk"
{{- end}}
{{- if .StartMenuShortcut}}
  RMDir /r "$SMPROGRAMS\{{.ProductDir}}"
{{- end}}
{{- if .RunOnStartup}}
  Delete "$SMSTARTUP\{{.ProductDir}}.lnk"
{{- end}}
{{- if .DeleteAppData}}
  RMDir /r "$APPDATA\{{.ProductDir}}"
{{- end}}
  DeleteRegKey SHCTX "{{.UninstallKey}}"
SectionEnd
`))

// Script holds the values rendered into <name>.nsi. Paths are absolute host
// paths; makensis resolves them on the build machine.
type Script struct {
	ProductName string
	// ProductDir is ProductName made safe for a directory or shortcut name.
	ProductDir           string
	Version              string
	Publisher            string
	MainExe              string
	OutFile              string
	FilesGlob            string
	InstallRoot          string
	ExecutionLevel       string
	Compressor           string
	UninstallKey         string
	UninstallDisplayName string
	LicenseFile          string
	InstallerIcon        string
	UninstallerIcon      string
	InstallerHeader      string
	InstallerSidebar     string
	UninstallerSidebar   string
	Include              string
	Script               string

	Unicode           bool
	OneClick          bool
	PerMachine        bool
	AllowChangeDir    bool
	RunAfterFinish    bool
	RunOnStartup      bool
	DesktopShortcut   bool
	StartMenuShortcut bool
	DeleteAppData     bool
}

// NewScript derives the script values for one architecture. filesDir is the
// staged payload and outFile the installer makensis writes.
func NewScript(m project.Metadata, cfg *project.NsisConfig, arch types.Arch, filesDir, outFile string) Script {
	product := m.ProductName
	if product == "" {
		product = m.Name
	}
	publisher := m.Company
	if publisher == "" {
		publisher = m.Author
	}
	display := cfg.UninstallDisplayName
	if display == "" {
		display = product
	}
	key := cfg.GUID
	if key == "" {
		key = m.AppID
	}
	if key == "" {
		key = m.Name
	}

	installRoot := `$LOCALAPPDATA\Programs`
	level := "user"
	if cfg.PerMachine {
		level = "admin"
		installRoot = "$PROGRAMFILES64"
		if arch == types.ArchX86 {
			installRoot = "$PROGRAMFILES"
		}
	} else if cfg.IsAllowElevation() {
		level = "highest"
	}

	src := func(p string) string { return sourcePath(m.SrcDir, p) }
	return Script{
		ProductName:          product,
		ProductDir:           safeName(product),
		Version:              m.Version,
		Publisher:            publisher,
		MainExe:              m.Name + ".exe",
		OutFile:              outFile,
		FilesGlob:            filepath.Join(filesDir, "*"),
		InstallRoot:          installRoot,
		ExecutionLevel:       level,
		Compressor:           string(cfg.CompressMethodOrDefault()),
		UninstallKey:         uninstallRegRoot + key,
		UninstallDisplayName: display,
		LicenseFile:          src(m.LicenseFile),
		InstallerIcon:        src(cfg.InstallerIcon),
		UninstallerIcon:      src(cfg.UninstallerIcon),
		InstallerHeader:      src(cfg.InstallerHeader),
		InstallerSidebar:     src(cfg.InstallerSidebar),
		UninstallerSidebar:   src(cfg.UninstallerSidebar),
		Include:              src(cfg.Include),
		Script:               src(cfg.Script),
		Unicode:              cfg.IsUnicode(),
		OneClick:             cfg.IsOneClick(),
		PerMachine:           cfg.PerMachine,
		AllowChangeDir:       cfg.IsAllowChangeDir(),
		RunAfterFinish:       cfg.IsRunAfterFinish(),
		RunOnStartup:         cfg.RunOnStartup,
		DesktopShortcut:      cfg.IsCreateDesktopShortcut(),
		StartMenuShortcut:    cfg.IsCreateStartMenuShortcut(),
		DeleteAppData:        cfg.DeleteAppDataOnUninstall,
	}
}

// Render writes the script.
func (s Script) Render(w io.Writer) error {
	if err := scriptTemplate.Execute(w, s); err != nil {
		return issue.New(issue.KindEncode, s.ProductDir+".nsi", err)
	}
	return nil
}

// quote renders s as an NSIS double-quoted string.
func quote(s string) string {
	r := strings.NewReplacer(`$`, `$$`, `"`, `$\"`, "\n", `$\n`, "\r", `$\r`, "\t", `$\t`)
	return `"` + r.Replace(s) + `"`
}

// safeName drops the characters Windows rejects in file names, and '$' so
// the result can be embedded in NSIS strings as is.
func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*$`, r) || r < 0x20 {
			return -1
		}
		return r
	}, s)
	return strings.TrimRight(s, ". ")
}

func sourcePath(srcDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if abs, err := filepath.Abs(filepath.Join(srcDir, p)); err == nil {
		return abs
	}
	return filepath.Join(srcDir, p)
}
