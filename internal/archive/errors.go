// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/pkgsmith/pkgsmith/internal/issue"
)

var (
	// ErrUnsupportedEntry is returned when a tree being archived contains
	// something other than regular files and directories.
	ErrUnsupportedEntry = errors.New("unsupported archive entry")

	// ErrMemberName is returned for ar member names longer than 16 bytes.
	ErrMemberName = errors.New("ar member name too long")
)

type (
	// ChecksumError carries both digests of a failed verification.
	// It unwraps to issue.ErrChecksumMismatch.
	ChecksumError struct {
		Filename string
		Expected string
		Got      string
	}

	// UnsupportedEntryError names the offending tar entry.
	UnsupportedEntryError struct {
		Name string
		Mode fs.FileMode
	}

	// MemberNameError names the ar member that does not fit the header.
	MemberNameError struct {
		Name string
	}
)

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Filename, e.Expected, e.Got)
}

// Unwrap returns issue.ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return issue.ErrChecksumMismatch }

func (e *UnsupportedEntryError) Error() string {
	return fmt.Sprintf("%s has unsupported file type %s", e.Name, e.Mode.Type())
}

// Unwrap returns ErrUnsupportedEntry.
func (e *UnsupportedEntryError) Unwrap() error { return ErrUnsupportedEntry }

func (e *MemberNameError) Error() string {
	return fmt.Sprintf("member name %q exceeds %d bytes", e.Name, arMaxName)
}

// Unwrap returns ErrMemberName.
func (e *MemberNameError) Unwrap() error { return ErrMemberName }
