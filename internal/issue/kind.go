// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
)

const (
	// KindConfig marks an invalid or unreadable project or settings file.
	KindConfig Kind = "config"
	// KindFilesNotSet marks a target with no file manifest.
	KindFilesNotSet Kind = "files-not-set"
	// KindGlob marks an invalid pattern or one that matched nothing.
	KindGlob Kind = "glob"
	// KindIO marks a filesystem failure.
	KindIO Kind = "io"
	// KindEncode marks an archive or compression failure.
	KindEncode Kind = "encode"
	// KindProcess marks an external tool that could not start or exited non-zero.
	KindProcess Kind = "process"
	// KindGitHash marks a failure reading the repository HEAD.
	KindGitHash Kind = "git-hash"
	// KindEnvNotSet marks a ${env.NAME} token naming an unset variable.
	KindEnvNotSet Kind = "env-not-set"
	// KindChecksumMismatch marks a downloaded file whose digest is wrong.
	KindChecksumMismatch Kind = "checksum-mismatch"
	// KindDownload marks a failed HTTP transfer.
	KindDownload Kind = "download"
)

// Sentinels for errors.Is classification of *Error values.
var (
	ErrConfig           = errors.New("config error")
	ErrFilesNotSet      = errors.New("files not set")
	ErrGlob             = errors.New("glob error")
	ErrIO               = errors.New("io error")
	ErrEncode           = errors.New("encode error")
	ErrProcess          = errors.New("process error")
	ErrGitHash          = errors.New("git hash error")
	ErrEnvNotSet        = errors.New("env not set")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrDownload         = errors.New("download error")
)

type (
	// Kind classifies a build failure.
	Kind string

	// Error is a build failure tagged with its Kind and the stage, path or
	// token it happened at. Every component returns *Error for failures the
	// user can act on; the CLI looks up help by Kind.
	Error struct {
		Kind    Kind
		Context string
		Err     error
	}
)

var sentinels = map[Kind]error{
	KindConfig:           ErrConfig,
	KindFilesNotSet:      ErrFilesNotSet,
	KindGlob:             ErrGlob,
	KindIO:               ErrIO,
	KindEncode:           ErrEncode,
	KindProcess:          ErrProcess,
	KindGitHash:          ErrGitHash,
	KindEnvNotSet:        ErrEnvNotSet,
	KindChecksumMismatch: ErrChecksumMismatch,
	KindDownload:         ErrDownload,
}

// New tags err with kind and context.
func New(kind Kind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

// Errorf builds an *Error whose cause is a formatted message.
func Errorf(kind Kind, context, format string, args ...any) *Error {
	return &Error{Kind: kind, Context: context, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// String returns the kind name.
func (k Kind) String() string { return string(k) }

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Context != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Context != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Context)
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's Kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}
