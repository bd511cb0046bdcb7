// SPDX-License-Identifier: MPL-2.0

// Package toolexec runs the external packaging tools (rpmbuild, ldd,
// appimagetool, makensis) synchronously and turns their failures into
// KindProcess errors.
package toolexec
