// SPDX-License-Identifier: MPL-2.0

package project

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

const (
	// FileName is the project document name.
	FileName = "pkgsmith.toml"
	// DefaultDir is searched before the current directory.
	DefaultDir = "pkg"

	// maxFileSize bounds the project document read into memory.
	maxFileSize = 4 << 20
)

// ResolvePath returns the project file to load. An explicit path is returned
// as-is; otherwise pkg/pkgsmith.toml is preferred over ./pkgsmith.toml.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	preferred := filepath.Join(DefaultDir, FileName)
	if _, err := os.Stat(preferred); err == nil {
		return preferred
	}
	return FileName
}

// Load reads, strictly decodes and validates the project document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		ctx := issue.NewErrorContext().
			WithOperation("load project").
			WithResource(path)
		if errors.Is(err, os.ErrNotExist) {
			ctx = ctx.WithSuggestion("Run 'pkgsmith init' to create " + FileName).
				WithSuggestion("Pass --config to point at another file")
		}
		return nil, ctx.Wrap(issue.New(issue.KindConfig, path, err)).BuildError()
	}
	if len(data) > maxFileSize {
		return nil, issue.Errorf(issue.KindConfig, path, "file size %d bytes exceeds maximum %d bytes", len(data), maxFileSize)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load project").
			WithResource(path).
			WithSuggestion("Check the TOML syntax and key names; unknown keys are rejected").
			Wrap(issue.New(issue.KindConfig, path, err)).
			BuildError()
	}
	return cfg, nil
}

// Parse decodes a project document and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, describeDecodeError(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the constraints the TOML types cannot express.
func (c *Config) Validate() error {
	var errs []error

	m := c.Metadata
	for _, f := range []struct{ key, value string }{
		{"metadata.name", m.Name},
		{"metadata.version", m.Version},
		{"metadata.workdir", m.Workdir},
		{"metadata.src_dir", m.SrcDir},
	} {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Errorf("%s must be set", f.key))
		}
	}

	if l := c.Linux; l != nil {
		for _, t := range l.Targets {
			if t.Family() != types.OSLinux {
				errs = append(errs, fmt.Errorf("linux.targets: %s is not a linux target", t))
			}
		}
		errs = append(errs, validateFileSets("linux.files", l.Files)...)
		if l.Deb != nil {
			switch l.Deb.Compression {
			case "", CompressionXZ, CompressionGzip:
			default:
				errs = append(errs, fmt.Errorf("linux.deb.compression: unsupported codec %q (valid: xz, gzip)", l.Deb.Compression))
			}
			errs = append(errs, validateFileSets("linux.deb.files", l.Deb.FileList)...)
		}
		if l.Rpm != nil {
			errs = append(errs, validateFileSets("linux.rpm.files", l.Rpm.FileList)...)
		}
		if l.AppImage != nil {
			errs = append(errs, validateFileSets("linux.app_image.files", l.AppImage.FileList)...)
		}
	}

	if w := c.Windows; w != nil {
		for _, t := range w.Targets {
			if t.Family() != types.OSWindows {
				errs = append(errs, fmt.Errorf("windows.targets: %s is not a windows target", t))
			}
		}
		errs = append(errs, validateFileSets("windows.files", w.Files)...)
		if w.Nsis != nil {
			switch w.Nsis.CompressMethod {
			case "", NsisCompressZlib, NsisCompressBZip2, NsisCompressLzma:
			default:
				errs = append(errs, fmt.Errorf("windows.nsis.compress_method: unsupported method %q (valid: zlib, bzip2, lzma)", w.Nsis.CompressMethod))
			}
			errs = append(errs, validateFileSets("windows.nsis.files", w.Nsis.FileList)...)
		}
	}

	for i, t := range c.Tools {
		if t.URL == "" || t.Filename == "" {
			errs = append(errs, fmt.Errorf("tools[%d]: url and filename must be set", i))
		}
		if !isHexDigest(t.SHA256) {
			errs = append(errs, fmt.Errorf("tools[%d].sha256: expected 64 hex characters", i))
		}
		if strings.ContainsAny(t.Filename, `/\`) {
			errs = append(errs, fmt.Errorf("tools[%d].filename: must not contain path separators", i))
		}
	}

	return errors.Join(errs...)
}

func validateFileSets(key string, files []FileSet) []error {
	var errs []error
	for i, fs := range files {
		if fs.From == "" {
			errs = append(errs, fmt.Errorf("%s[%d].from must be set", key, i))
		}
		if filepath.IsAbs(fs.To) {
			errs = append(errs, fmt.Errorf("%s[%d].to must be relative to the package root", key, i))
		}
		if fs.Mode != nil && *fs.Mode > 0o7777 {
			errs = append(errs, fmt.Errorf("%s[%d].mode %o is not a permission value", key, i, *fs.Mode))
		}
	}
	return errs
}

// describeDecodeError turns go-toml's positional errors into a single line
// that includes row and column.
func describeDecodeError(err error) error {
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		row, col := derr.Position()
		return fmt.Errorf("line %d, column %d: %s", row, col, derr.Error())
	}
	var serr *toml.StrictMissingError
	if errors.As(err, &serr) {
		keys := make([]string, 0, len(serr.Errors))
		for i := range serr.Errors {
			keys = append(keys, strings.Join(serr.Errors[i].Key(), "."))
		}
		return fmt.Errorf("unknown keys %s:\n%s", strings.Join(keys, ", "), serr.String())
	}
	return err
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
