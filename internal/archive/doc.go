// SPDX-License-Identifier: MPL-2.0

// Package archive encodes package payloads: deterministic tar trees, ar
// containers, gzip and xz streams, and the MD5/SHA-256 digests used by
// package manifests and the tool downloader.
//
// Tar entries are always owned by root (uid and gid 0) with whole-second
// modification times, so two builds of the same staging tree differ only
// where file metadata differs.
package archive
