// SPDX-License-Identifier: MPL-2.0

package config

import "context"

type (
	// LoadOptions defines explicit settings loading inputs.
	LoadOptions struct {
		// ConfigFilePath forces a specific settings file. It must exist.
		ConfigFilePath string
		// ConfigDirPath overrides the settings directory lookup.
		ConfigDirPath string
	}

	// Loaded is a resolved settings value and the file it came from.
	Loaded struct {
		Config *Config
		// Path is empty when only defaults and environment were used.
		Path string
	}

	// Provider loads settings from explicit options.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Loaded, error)
	}

	fileProvider struct{}
)

// NewProvider creates a settings provider backed by the CUE file and
// PKGSMITH_* environment variables.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads settings from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Loaded, error) {
	cfg, path, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Loaded{Config: cfg, Path: path}, nil
}
