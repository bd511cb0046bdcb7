// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

type (
	// MarkdownMsg is help text rendered to the terminal with glamour.
	MarkdownMsg string

	// HttpLink is a documentation URL attached to an Issue.
	HttpLink string

	// Issue is the troubleshooting page shown for a failure Kind.
	Issue struct {
		kind     Kind
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

// Kind returns the failure kind this issue documents.
func (i *Issue) Kind() Kind {
	return i.kind
}

// MarkdownMsg returns the unrendered help text.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// DocLinks returns a copy of the documentation links.
func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the help text with the given glamour style ("dark", "light",
// "notty" or a path to a JSON style).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configIssue = &Issue{
		kind: KindConfig,
		mdMsg: `
# The project file could not be used

pkgsmith reads ` + "`pkg/pkgsmith.toml`" + ` (or ` + "`pkgsmith.toml`" + `) from the current directory.

## Things you can try
- Check for unknown keys: the file is decoded strictly
- Review the architecture and target names:
~~~toml
[linux]
arch = ["x86_64", "aarch64"]
targets = ["deb", "rpm"]
~~~
- Generate a starter file:
~~~
$ pkgsmith init
~~~`,
	}

	filesNotSetIssue = &Issue{
		kind: KindFilesNotSet,
		mdMsg: `
# No files to package

The target has neither its own ` + "`files`" + ` list nor a shared one in the OS section.

## Things you can try
~~~toml
[[linux.files]]
from = "target/release/demo"
to = "usr/bin/demo"
mode = 0o755
~~~`,
	}

	globIssue = &Issue{
		kind: KindGlob,
		mdMsg: `
# A file pattern matched nothing

Every ` + "`from`" + ` pattern is resolved against ` + "`metadata.src_dir`" + ` and must match at least one path.

## Things you can try
- Build your binaries before packaging
- Check that ` + "`src_dir`" + ` points at the directory the patterns are relative to
- Use ` + "`**`" + ` to match nested directories`,
	}

	ioIssue = &Issue{
		kind: KindIO,
		mdMsg: `
# A filesystem operation failed

## Things you can try
- Check permissions on ` + "`metadata.workdir`" + `
- Make sure staged files are regular files or directories (sockets and devices are rejected)`,
	}

	encodeIssue = &Issue{
		kind: KindEncode,
		mdMsg: `
# An archive could not be written

## Things you can try
- Check free disk space in the work directory
- Lower ` + "`compression.xz_level`" + ` in your settings if memory is constrained`,
	}

	processIssue = &Issue{
		kind: KindProcess,
		mdMsg: `
# An external packaging tool failed

RPM, AppImage and NSIS builds delegate to ` + "`rpmbuild`" + `, ` + "`appimagetool`" + ` and ` + "`makensis`" + `.

## Things you can try
- Run with ` + "`--verbose`" + ` to see the tool output
- Install the tool, or fetch it with:
~~~
$ pkgsmith download
~~~`,
	}

	gitHashIssue = &Issue{
		kind: KindGitHash,
		mdMsg: `
# The git revision could not be read

` + "`${git}`" + ` expands to the abbreviated HEAD commit of the repository containing the working directory.

## Things you can try
- Run pkgsmith from inside a git checkout with at least one commit
- Replace ` + "`${git}`" + ` with ` + "`${env.BUILD_ID}`" + ` in CI environments without history`,
	}

	envNotSetIssue = &Issue{
		kind: KindEnvNotSet,
		mdMsg: `
# An environment variable is not set

` + "`${env.NAME}`" + ` tokens require NAME to be exported.

## Things you can try
- Export the variable before running pkgsmith
- Add it to a ` + "`.env`" + ` file next to the project file`,
	}

	checksumMismatchIssue = &Issue{
		kind: KindChecksumMismatch,
		mdMsg: `
# A downloaded tool failed verification

The file's SHA-256 digest differs from the ` + "`sha256`" + ` in the ` + "`[[tools]]`" + ` entry.

## Things you can try
- Re-run ` + "`pkgsmith download`" + `; partial downloads are retried
- Update the digest if the upstream file was intentionally replaced`,
	}

	downloadIssue = &Issue{
		kind: KindDownload,
		mdMsg: `
# A tool download failed

## Things you can try
- Check the ` + "`url`" + ` of the ` + "`[[tools]]`" + ` entry
- Check network and proxy settings (HTTPS_PROXY is honored)`,
	}

	issues = map[Kind]*Issue{
		configIssue.Kind():           configIssue,
		filesNotSetIssue.Kind():      filesNotSetIssue,
		globIssue.Kind():             globIssue,
		ioIssue.Kind():               ioIssue,
		encodeIssue.Kind():           encodeIssue,
		processIssue.Kind():          processIssue,
		gitHashIssue.Kind():          gitHashIssue,
		envNotSetIssue.Kind():        envNotSetIssue,
		checksumMismatchIssue.Kind(): checksumMismatchIssue,
		downloadIssue.Kind():         downloadIssue,
	}
)

// Values returns every registered issue ordered by kind name.
func Values() []*Issue {
	all := slices.Collect(maps.Values(issues))
	slices.SortFunc(all, func(a, b *Issue) int {
		return strings.Compare(string(a.kind), string(b.kind))
	})
	return all
}

// Get returns the issue documenting kind, or nil.
func Get(kind Kind) *Issue {
	return issues[kind]
}
