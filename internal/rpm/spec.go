// SPDX-License-Identifier: MPL-2.0

package rpm

import (
	"io"
	"strings"
	"text/template"

	"golang.org/x/mod/semver"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/project"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

var specTemplate = template.Must(template.New("spec").Parse(`Name: {{.Name}}
Version: {{.Version}}
Release: {{.Release}}%{?dist}
Summary: {{.Summary}}
License: {{.License}}
{{- if .URL}}
URL: {{.URL}}
{{- end}}
Packager: {{.Packager}}
BuildArch: {{.BuildArch}}
Source0: {{.Source}}
{{- range .Requires}}
Requires: {{.}}
{{- end}}

%global debug_package %{nil}

%description
{{.Description}}

%prep
%setup -q

%build

%install
mkdir -p %{buildroot}
cp -rfa * %{buildroot}

%files
{{- range .Files}}
"/{{.}}"
{{- end}}
`))

// Spec holds the values rendered into <name>.spec.
type Spec struct {
	Name        string
	Version     string
	Release     string
	Summary     string
	License     string
	URL         string
	Packager    string
	BuildArch   string
	Source      string
	Requires    []string
	Description string
	// Files are staged paths relative to the buildroot.
	Files []string
}

// NewSpec derives the spec values for one architecture. files lists the
// staged payload relative to the source directory.
func NewSpec(m project.Metadata, cfg *project.RpmConfig, arch types.Arch, files []string) Spec {
	version, release := SplitVersion(m.Version, cfg.ReleaseOrDefault())
	desc := strings.TrimSpace(m.Description)
	summary, _, _ := strings.Cut(desc, "\n")
	return Spec{
		Name:        m.Name,
		Version:     version,
		Release:     release,
		Summary:     strings.TrimSpace(summary),
		License:     m.License,
		URL:         m.Homepage,
		Packager:    m.Author,
		BuildArch:   arch.RpmName(),
		Source:      SourceName(m),
		Requires:    cfg.RequiredPkgs,
		Description: desc,
		Files:       files,
	}
}

// SourceName is the Source0 tarball name.
func SourceName(m project.Metadata) string {
	return m.Name + ".tar.xz"
}

// SplitVersion maps a project version onto RPM Version and Release.
// RPM versions may not contain '-': a semver prerelease moves into the
// release as 0.<release>.<prerelease> so it sorts before the final build,
// and build metadata is dropped. Other versions have '-' replaced by '_'.
func SplitVersion(version, release string) (string, string) {
	v := "v" + strings.TrimPrefix(version, "v")
	if !semver.IsValid(v) {
		return strings.ReplaceAll(version, "-", "_"), release
	}
	pre := semver.Prerelease(v)
	core := strings.TrimSuffix(strings.TrimSuffix(v, semver.Build(v)), pre)
	core = strings.TrimPrefix(core, "v")
	if pre == "" {
		return core, release
	}
	pre = strings.ReplaceAll(strings.TrimPrefix(pre, "-"), "-", ".")
	return core, "0." + release + "." + pre
}

// Render writes the spec file.
func (s Spec) Render(w io.Writer) error {
	if err := specTemplate.Execute(w, s); err != nil {
		return issue.New(issue.KindEncode, s.Name+".spec", err)
	}
	return nil
}
