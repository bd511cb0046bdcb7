// SPDX-License-Identifier: MPL-2.0

// Package platform provides OS name constants and host-environment checks:
// Windows reserved file names, which NSIS installers cannot ship, and
// Flatpak/Snap sandbox detection for routing packaging tools to the host.
package platform
