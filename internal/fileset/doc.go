// SPDX-License-Identifier: MPL-2.0

// Package fileset stages manifest entries into a package staging tree.
//
// Each entry's from pattern is globbed below the source root with doublestar
// semantics. A literal file lands exactly at to, a literal directory is
// mirrored into to, and every match of a wildcard pattern lands at
// to/<basename>. An optional filter restricts which files are copied and an
// optional mode replaces their permission bits.
package fileset
