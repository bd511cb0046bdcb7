// SPDX-License-Identifier: MPL-2.0

// Package project holds the pkgsmith.toml data model.
//
// A document has a [metadata] table, optional [linux] and [windows] sections
// listing architectures, targets and file manifests, per-format sub-tables
// ([linux.deb], [linux.rpm], [linux.app_image], [windows.nsis]) and an
// optional [[tools]] download manifest. Decoding is strict: unknown keys are
// rejected so typos surface instead of being ignored.
package project
