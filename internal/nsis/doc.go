// SPDX-License-Identifier: MPL-2.0

// Package nsis builds Windows installers. It stages the payload, generates
// an NSIS script from the [windows.nsis] section and compiles it with makensis.
package nsis
