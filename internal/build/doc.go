// SPDX-License-Identifier: MPL-2.0

// Package build selects the (target, architecture) cells a project asks for
// and runs the matching format pipeline for each, sequentially.
package build
