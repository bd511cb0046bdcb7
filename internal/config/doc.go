// SPDX-License-Identifier: MPL-2.0

// Package config loads pkgsmith's user settings with Viper, using CUE as the
// file format.
//
// Settings live in config.cue under the platform settings directory
// ($XDG_CONFIG_HOME/pkgsmith on Linux, ~/Library/Application Support/pkgsmith
// on macOS, %APPDATA%\pkgsmith on Windows). Files are validated against the
// embedded config_schema.cue. Environment variables such as
// PKGSMITH_COMPRESSION_XZ_LEVEL override file values.
//
// These settings tune the tool itself. Project metadata is read by package
// project from pkgsmith.toml.
package config
