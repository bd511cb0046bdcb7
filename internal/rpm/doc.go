// SPDX-License-Identifier: MPL-2.0

// Package rpm builds RPM packages with the host's rpmbuild.
package rpm
