// SPDX-License-Identifier: MPL-2.0

// Package macro expands ${...} tokens in build identifiers and artifact names.
//
// The simple pass handles ${git}, ${date}, ${date-time}, ${timestamp} and
// ${env.NAME}. The context pass, used only for artifact file names, adds
// ${ext}, ${arch} and every metadata field by name. Tokens that cannot be
// resolved by the context pass are kept as written.
package macro
