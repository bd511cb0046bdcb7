// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers that fail the test on setup errors
// instead of returning them.
//
// Helpers cover environment variables (MustSetenv, MustUnsetenv, SetHomeDir),
// directories and files (MustChdir, MustMkdirAll, MustWriteFile), cleanup
// (MustClose, DeferClose) and a controllable clock (FakeClock).
package testutil
