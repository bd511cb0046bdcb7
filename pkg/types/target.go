// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// TargetDeb is a Debian binary package.
	TargetDeb Target = "deb"
	// TargetRpm is an RPM package.
	TargetRpm Target = "rpm"
	// TargetAppImage is a self-mounting AppImage bundle.
	TargetAppImage Target = "app_image"
	// TargetNsis is a Windows NSIS installer.
	TargetNsis Target = "nsis"

	// OSLinux groups the Linux package formats.
	OSLinux OSFamily = "linux"
	// OSWindows groups the Windows installer formats.
	OSWindows OSFamily = "windows"
)

var (
	// ErrInvalidTarget is the sentinel error wrapped by InvalidTargetError.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrInvalidOSFamily is the sentinel error wrapped by InvalidOSFamilyError.
	ErrInvalidOSFamily = errors.New("invalid os family")
)

type (
	// Target is an output package format.
	Target string

	// InvalidTargetError is returned when a target name is not recognized.
	InvalidTargetError struct {
		Value string
	}

	// OSFamily is the operating system a group of targets installs onto.
	OSFamily string

	// InvalidOSFamilyError is returned when an OS family name is not recognized.
	InvalidOSFamilyError struct {
		Value string
	}
)

// ParseTarget resolves a target name. AppImage accepts the spellings its
// own tooling uses.
func ParseTarget(s string) (Target, error) {
	switch strings.TrimSpace(s) {
	case "deb":
		return TargetDeb, nil
	case "rpm":
		return TargetRpm, nil
	case "app_image", "appimage", "appImage", "AppImage":
		return TargetAppImage, nil
	case "nsis":
		return TargetNsis, nil
	default:
		return "", &InvalidTargetError{Value: s}
	}
}

// String returns the canonical target name.
func (t Target) String() string { return string(t) }

// Extension returns the artifact file extension without the dot.
func (t Target) Extension() string {
	switch t {
	case TargetDeb:
		return "deb"
	case TargetRpm:
		return "rpm"
	case TargetAppImage:
		return "AppImage"
	case TargetNsis:
		return "exe"
	default:
		return ""
	}
}

// Family returns the OS family the target belongs to.
func (t Target) Family() OSFamily {
	if t == TargetNsis {
		return OSWindows
	}
	return OSLinux
}

// IsValid returns whether the Target is one of the supported formats.
func (t Target) IsValid() (bool, []error) {
	switch t {
	case TargetDeb, TargetRpm, TargetAppImage, TargetNsis:
		return true, nil
	default:
		return false, []error{&InvalidTargetError{Value: string(t)}}
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Target) UnmarshalText(text []byte) error {
	parsed, err := ParseTarget(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t), nil
}

// Error implements the error interface for InvalidTargetError.
func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target %q (valid: deb, rpm, app_image, nsis)", e.Value)
}

// Unwrap returns ErrInvalidTarget for errors.Is() compatibility.
func (e *InvalidTargetError) Unwrap() error { return ErrInvalidTarget }

// ParseOSFamily resolves an OS family name.
func ParseOSFamily(s string) (OSFamily, error) {
	switch f := OSFamily(strings.ToLower(strings.TrimSpace(s))); f {
	case OSLinux, OSWindows:
		return f, nil
	default:
		return "", &InvalidOSFamilyError{Value: s}
	}
}

// String returns the family name.
func (f OSFamily) String() string { return string(f) }

// Error implements the error interface for InvalidOSFamilyError.
func (e *InvalidOSFamilyError) Error() string {
	return fmt.Sprintf("invalid os %q (valid: linux, windows)", e.Value)
}

// Unwrap returns ErrInvalidOSFamily for errors.Is() compatibility.
func (e *InvalidOSFamilyError) Unwrap() error { return ErrInvalidOSFamily }
