// SPDX-License-Identifier: MPL-2.0

// Package issue classifies build failures and turns them into user-facing messages.
//
// Components return *Error values tagged with a Kind (glob, io, process, ...).
// The CLI uses the Kind to look up a Markdown troubleshooting page rendered
// with glamour, and ActionableError to attach suggestions to configuration errors.
package issue
