// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const (
	// ArchX86 is 32-bit Intel.
	ArchX86 Arch = "x86"
	// ArchX8664 is 64-bit Intel/AMD.
	ArchX8664 Arch = "x86_64"
	// ArchAArch64 is 64-bit ARM.
	ArchAArch64 Arch = "aarch64"
	// ArchMips64 is 64-bit little-endian MIPS.
	ArchMips64 Arch = "mips64"
)

// ErrInvalidArch is the sentinel error wrapped by InvalidArchError.
var ErrInvalidArch = errors.New("invalid architecture")

type (
	// Arch is a CPU architecture a package can be built for.
	// Each packaging format spells the same architecture differently,
	// so callers ask for the format-specific name instead of formatting it themselves.
	Arch string

	// InvalidArchError is returned when an architecture name or alias is not recognized.
	InvalidArchError struct {
		Value string
	}
)

// archAliases maps every accepted spelling to its canonical Arch.
var archAliases = map[string]Arch{
	"x86":      ArchX86,
	"i386":     ArchX86,
	"i686":     ArchX86,
	"x86_64":   ArchX8664,
	"amd64":    ArchX8664,
	"aarch64":  ArchAArch64,
	"arm64":    ArchAArch64,
	"mips64":   ArchMips64,
	"mips64el": ArchMips64,
}

// AllArches returns every supported architecture in canonical order.
func AllArches() []Arch {
	return []Arch{ArchX86, ArchX8664, ArchAArch64, ArchMips64}
}

// ParseArch resolves an architecture name or one of its aliases.
func ParseArch(s string) (Arch, error) {
	if a, ok := archAliases[strings.TrimSpace(s)]; ok {
		return a, nil
	}
	return "", &InvalidArchError{Value: s}
}

// HostArch returns the architecture of the running binary.
// The second value is false when GOARCH has no packaging equivalent.
func HostArch() (Arch, bool) {
	switch runtime.GOARCH {
	case "386":
		return ArchX86, true
	case "amd64":
		return ArchX8664, true
	case "arm64":
		return ArchAArch64, true
	case "mips64le":
		return ArchMips64, true
	default:
		return "", false
	}
}

// String returns the display name used in artifact names and logs.
func (a Arch) String() string { return string(a) }

// DebName returns the dpkg architecture name.
func (a Arch) DebName() string {
	switch a {
	case ArchX86:
		return "i386"
	case ArchX8664:
		return "amd64"
	case ArchAArch64:
		return "arm64"
	case ArchMips64:
		return "mips64el"
	default:
		return string(a)
	}
}

// RpmName returns the rpm target architecture name.
func (a Arch) RpmName() string {
	switch a {
	case ArchX86:
		return "i686"
	case ArchMips64:
		return "mips64el"
	default:
		return string(a)
	}
}

// AppImageName returns the value appimagetool expects in the ARCH variable.
func (a Arch) AppImageName() string {
	return a.RpmName()
}

// IsValid returns whether the Arch is one of the canonical architectures.
func (a Arch) IsValid() (bool, []error) {
	switch a {
	case ArchX86, ArchX8664, ArchAArch64, ArchMips64:
		return true, nil
	default:
		return false, []error{&InvalidArchError{Value: string(a)}}
	}
}

// UnmarshalText accepts any alias so configuration files can use the
// spelling of their target ecosystem.
func (a *Arch) UnmarshalText(text []byte) error {
	parsed, err := ParseArch(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalText writes the canonical name.
func (a Arch) MarshalText() ([]byte, error) {
	return []byte(a), nil
}

// Error implements the error interface for InvalidArchError.
func (e *InvalidArchError) Error() string {
	return fmt.Sprintf("invalid architecture %q (valid: x86, x86_64, aarch64, mips64)", e.Value)
}

// Unwrap returns ErrInvalidArch for errors.Is() compatibility.
func (e *InvalidArchError) Unwrap() error { return ErrInvalidArch }
