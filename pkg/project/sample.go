// SPDX-License-Identifier: MPL-2.0

package project

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/pkgsmith/pkgsmith/pkg/types"
)

// Sample returns a starter document for a project called name.
func Sample(name string) *Config {
	exec := FileMode(0o755)
	return &Config{
		Metadata: Metadata{
			Name:        name,
			ProductName: name,
			AppID:       "org.example." + name,
			Description: "A short description of " + name,
			Homepage:    "https://example.org/" + name,
			Author:      "Your Name <you@example.org>",
			Version:     "0.1.0",
			BuildID:     "${date}-${git}",
			License:     "MIT",
			Workdir:     "pkg/out",
			SrcDir:      ".",
		},
		Linux: &LinuxConfig{
			Arch:    []types.Arch{types.ArchX8664},
			Targets: []types.Target{types.TargetDeb},
			Files: []FileSet{
				{From: "target/release/" + name, To: "usr/bin/" + name, Mode: &exec},
			},
			Deb: &DebConfig{Section: "utils"},
		},
	}
}

// Marshal renders cfg as a TOML document with a leading comment.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# pkgsmith project file\n\n")
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding project: %w", err)
	}
	return buf.Bytes(), nil
}
