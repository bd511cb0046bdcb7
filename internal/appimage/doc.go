// SPDX-License-Identifier: MPL-2.0

// Package appimage builds AppImages: it stages an AppDir, optionally bundles
// the shared libraries reported by ldd, and hands the tree to appimagetool.
package appimage
