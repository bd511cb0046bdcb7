// SPDX-License-Identifier: MPL-2.0

package fileset

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/project"
)

// globMeta lists the characters that make a from pattern a wildcard.
const globMeta = "*?[{"

type (
	// Resolver copies manifest entries from a source tree into a staging tree.
	Resolver struct {
		logger *log.Logger
	}

	// Option configures a Resolver.
	Option func(*Resolver)

	// entry is one manifest line with its compiled destination rules.
	entry struct {
		set      project.FileSet
		wildcard bool
	}
)

// WithLogger sets the logger used to report copied entries.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve is a convenience wrapper around a default Resolver.
func Resolve(sets []project.FileSet, srcRoot, destRoot string) ([]string, error) {
	return New().Resolve(sets, srcRoot, destRoot)
}

// Resolve copies every entry of sets, in order, from srcRoot into destRoot.
// It returns the staged files as slash-separated paths relative to
// destRoot. Later entries overwrite the outputs of earlier ones.
func (r *Resolver) Resolve(sets []project.FileSet, srcRoot, destRoot string) ([]string, error) {
	var staged []string
	for _, set := range sets {
		if err := validateFilter(set.Filter); err != nil {
			return staged, err
		}

		e := entry{set: set, wildcard: strings.ContainsAny(set.From, globMeta)}
		pattern := filepath.Join(srcRoot, filepath.FromSlash(set.From))

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return staged, issue.New(issue.KindGlob, pattern, err)
		}
		if len(matches) == 0 {
			return staged, issue.Errorf(issue.KindGlob, pattern, "pattern matched nothing")
		}
		sort.Strings(matches)

		for _, match := range matches {
			copied, err := r.copyMatch(e, match, destRoot)
			staged = append(staged, copied...)
			if err != nil {
				return staged, err
			}
		}
		r.logger.Debug("resolved file set", "from", set.From, "to", set.To, "matches", len(matches))
	}
	return staged, nil
}

// copyMatch stages a single glob match according to the entry's rules.
func (r *Resolver) copyMatch(e entry, match, destRoot string) ([]string, error) {
	info, err := os.Stat(match)
	if err != nil {
		return nil, issue.New(issue.KindIO, match, err)
	}

	dest := filepath.Join(destRoot, filepath.FromSlash(e.set.To))
	if e.wildcard || e.set.To == "" || strings.HasSuffix(e.set.To, "/") {
		dest = filepath.Join(dest, filepath.Base(match))
	}

	switch {
	case info.Mode().IsRegular():
		if !allowed(e.set.Filter, filepath.Base(match)) {
			return nil, nil
		}
		if err := CopyFile(match, dest, fileMode(e.set, info)); err != nil {
			return nil, err
		}
		return []string{relSlash(destRoot, dest)}, nil
	case info.IsDir():
		// A literal directory is mirrored into to; a wildcard one keeps its name.
		return r.copyTree(e, match, dest, destRoot)
	default:
		return nil, issue.Errorf(issue.KindIO, match, "unsupported file type %s", info.Mode().Type())
	}
}

func (r *Resolver) copyTree(e entry, srcDir, destDir, destRoot string) ([]string, error) {
	var staged []string
	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return issue.New(issue.KindIO, p, walkErr)
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return issue.New(issue.KindIO, p, err)
		}
		target := filepath.Join(destDir, rel)

		if d.IsDir() {
			if len(e.set.Filter) > 0 {
				// Directories are created on demand when a filtered file needs them.
				return nil
			}
			if err := os.MkdirAll(target, 0o755); err != nil {
				return issue.New(issue.KindIO, target, err)
			}
			return nil
		}

		info, err := os.Stat(p)
		if err != nil {
			return issue.New(issue.KindIO, p, err)
		}
		if !info.Mode().IsRegular() {
			if info.IsDir() {
				return issue.Errorf(issue.KindIO, p, "symlinked directories are not supported")
			}
			return issue.Errorf(issue.KindIO, p, "unsupported file type %s", info.Mode().Type())
		}
		if !allowed(e.set.Filter, filepath.ToSlash(rel)) {
			return nil
		}
		if err := CopyFile(p, target, fileMode(e.set, info)); err != nil {
			return err
		}
		staged = append(staged, relSlash(destRoot, target))
		return nil
	})
	return staged, err
}

// allowed reports whether rel (or its base name) passes the filter. An empty
// filter allows everything.
func allowed(filter []string, rel string) bool {
	if len(filter) == 0 {
		return true
	}
	base := path.Base(rel)
	for _, pat := range filter {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(pat, base); err == nil && matched {
			return true
		}
	}
	return false
}

func validateFilter(filter []string) error {
	for _, pat := range filter {
		if !doublestar.ValidatePattern(pat) {
			return issue.New(issue.KindGlob, pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}

// specialBits are the mode bits carried into the staging tree besides the
// permission bits.
const specialBits = fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky

func fileMode(set project.FileSet, info fs.FileInfo) fs.FileMode {
	if set.Mode != nil {
		return set.Mode.FSMode()
	}
	return info.Mode() & (fs.ModePerm | specialBits)
}

// ResetDir removes dir and everything below it, then recreates it empty.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return issue.New(issue.KindIO, dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return issue.New(issue.KindIO, dir, err)
	}
	return nil
}

// CopyFile writes src to dst with the given permission bits, replacing any
// existing file and creating missing parent directories.
func CopyFile(src, dst string, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return issue.New(issue.KindIO, filepath.Dir(dst), err)
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return issue.New(issue.KindIO, dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return issue.New(issue.KindIO, src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return issue.New(issue.KindIO, dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return issue.New(issue.KindIO, dst, fmt.Errorf("copying %s: %w", src, err))
	}
	if err := out.Close(); err != nil {
		return issue.New(issue.KindIO, dst, err)
	}
	// OpenFile is subject to the umask.
	if err := os.Chmod(dst, perm); err != nil {
		return issue.New(issue.KindIO, dst, err)
	}
	return nil
}

func relSlash(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
