// SPDX-License-Identifier: MPL-2.0

// Package download fetches the external tools listed under [[tools]] in the
// project file and verifies each against its SHA-256 digest.
package download
