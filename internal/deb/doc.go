// SPDX-License-Identifier: MPL-2.0

// Package deb builds Debian binary packages without dpkg.
//
// The pipeline stages the manifest under <workdir>/deb/data, writes
// control/md5sums and control/control, compresses both trees and wraps them
// with debian-binary into <workdir>/<name>_<version>_<arch>.deb.
package deb
