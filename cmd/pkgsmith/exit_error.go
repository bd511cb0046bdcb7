// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/pkgsmith/pkgsmith/pkg/types"
)

// ExitError carries the process status of a failed command back to Execute,
// which is the only place that calls os.Exit.
type ExitError struct {
	Code types.ExitCode
	// Err is the build or usage failure; it may be nil.
	Err error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("pkgsmith exited with status %s", e.Code)
	}
	return e.Err.Error()
}

// Unwrap exposes the failure so callers can test its issue kind.
func (e *ExitError) Unwrap() error { return e.Err }
