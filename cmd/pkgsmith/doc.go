// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the pkgsmith command tree.
package cmd
