// SPDX-License-Identifier: MPL-2.0

// Package cueutil compiles user CUE files against embedded schemas.
//
//	//go:embed config_schema.cue
//	var schema []byte
//
//	value, err := cueutil.Unify(schema, data, "#Config",
//	    cueutil.WithFilename(path),
//	    cueutil.WithConcrete(false),
//	)
//
// Errors carry the file name and a JSON-style field path such as
// "compression.xz_level".
package cueutil
