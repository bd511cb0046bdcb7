// SPDX-License-Identifier: MPL-2.0

package deb

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkgsmith/pkgsmith/pkg/project"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

// StandardsVersion is the Debian policy version the control record claims.
const StandardsVersion = "3.9.4"

// Control is the binary package control record written to control/control.
type Control struct {
	Package      string
	Version      string
	Architecture string
	Section      string
	Priority     string
	Maintainer   string
	// InstalledSize is in KiB.
	InstalledSize int64
	Depends       string
	Recommends    string
	Suggests      string
	Conflicts     string
	Breaks        string
	Replaces      string
	Provides      string
	Homepage      string
	Description   string
}

// field is one line of the record; optional empty fields are omitted.
type field struct {
	name     string
	value    string
	optional bool
}

// NewControl fills a record from the project metadata and deb section.
// dataBytes is the byte size of the staged data tree.
func NewControl(m project.Metadata, cfg *project.DebConfig, arch types.Arch, dataBytes int64) Control {
	if cfg == nil {
		cfg = &project.DebConfig{}
	}
	return Control{
		Package:       m.Name,
		Version:       m.Version,
		Architecture:  arch.DebName(),
		Section:       cfg.Section,
		Priority:      cfg.PriorityOrDefault(),
		Maintainer:    m.Author,
		InstalledSize: InstalledSizeKiB(dataBytes),
		Depends:       cfg.Depends,
		Recommends:    cfg.Recommends,
		Suggests:      cfg.Suggests,
		Conflicts:     cfg.Conflicts,
		Breaks:        cfg.Breaks,
		Replaces:      cfg.Replaces,
		Provides:      cfg.Provides,
		Homepage:      m.Homepage,
		Description:   m.Description,
	}
}

// InstalledSizeKiB converts a byte count to whole KiB, rounding up.
func InstalledSizeKiB(n int64) int64 {
	return (n + 1023) / 1024
}

func (c Control) fields() []field {
	return []field{
		{name: "Package", value: c.Package},
		{name: "Version", value: c.Version},
		{name: "Architecture", value: c.Architecture},
		{name: "Section", value: c.Section, optional: true},
		{name: "Priority", value: c.Priority},
		{name: "Standards-Version", value: StandardsVersion},
		{name: "Maintainer", value: c.Maintainer},
		{name: "Installed-Size", value: fmt.Sprint(c.InstalledSize)},
		{name: "Depends", value: c.Depends, optional: true},
		{name: "Recommends", value: c.Recommends, optional: true},
		{name: "Suggests", value: c.Suggests, optional: true},
		{name: "Conflicts", value: c.Conflicts, optional: true},
		{name: "Breaks", value: c.Breaks, optional: true},
		{name: "Replaces", value: c.Replaces, optional: true},
		{name: "Provides", value: c.Provides, optional: true},
		{name: "Homepage", value: c.Homepage, optional: true},
		{name: "Description", value: foldDescription(c.Description)},
	}
}

// String renders the record, one "Name: value" line per field.
func (c Control) String() string {
	var b strings.Builder
	for _, f := range c.fields() {
		if f.optional && f.value == "" {
			continue
		}
		b.WriteString(f.name)
		b.WriteString(": ")
		b.WriteString(f.value)
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteTo implements io.WriterTo.
func (c Control) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, c.String())
	return int64(n), err
}

// foldDescription keeps the first line as the synopsis and turns the rest
// into continuation lines: each starts with a space, blank lines become " .".
func foldDescription(desc string) string {
	lines := strings.Split(strings.TrimSpace(strings.ReplaceAll(desc, "\r\n", "\n")), "\n")
	out := make([]string, 0, len(lines))
	out = append(out, strings.TrimSpace(lines[0]))
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			out = append(out, " .")
			continue
		}
		out = append(out, " "+line)
	}
	return strings.Join(out, "\n")
}
