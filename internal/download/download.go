// SPDX-License-Identifier: MPL-2.0

package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/pkgsmith/pkgsmith/internal/archive"
	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/project"
	"github.com/pkgsmith/pkgsmith/pkg/types"
)

const (
	// DefaultAttempts is how often a tool is fetched before giving up.
	DefaultAttempts = 3

	// maxToolBytes bounds a single download (1 GiB).
	maxToolBytes = 1 << 30
)

type (
	// Downloader fetches [[tools]] entries and verifies their SHA-256 digest.
	Downloader struct {
		httpClient *http.Client
		userAgent  string
		attempts   int
		logger     *log.Logger
	}

	// Option configures a Downloader.
	Option func(*Downloader)

	// Result describes one ensured tool.
	Result struct {
		Tool project.ToolEntry
		Path string
		// Cached is true when a verified copy was already present.
		Cached bool
	}
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.httpClient = c }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) { d.userAgent = ua }
}

// WithAttempts sets the number of tries per tool. Values below 1 are ignored.
func WithAttempts(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.attempts = n
		}
	}
}

// WithLogger sets the downloader's logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

// New creates a Downloader. Defaults: http.DefaultClient, three attempts,
// userAgent "pkgsmith/dev".
func New(opts ...Option) *Downloader {
	d := &Downloader{
		httpClient: http.DefaultClient,
		userAgent:  "pkgsmith/dev",
		attempts:   DefaultAttempts,
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Ensure makes every tool whose arch is in arches (all tools when arches is
// empty) present and verified in dir. Tools already present with a matching
// digest are not fetched again.
func (d *Downloader) Ensure(ctx context.Context, tools []project.ToolEntry, dir string, arches []types.Arch) ([]Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, issue.New(issue.KindIO, dir, err)
	}

	var results []Result
	for _, tool := range tools {
		if len(arches) > 0 && !slices.Contains(arches, tool.Arch) {
			continue
		}
		path := filepath.Join(dir, tool.Filename)
		logger := d.logger.With("tool", tool.Filename, "arch", tool.Arch)

		if cached(path, tool.SHA256) {
			logger.Debug("tool already present")
			results = append(results, Result{Tool: tool, Path: path, Cached: true})
			continue
		}

		if err := d.fetch(ctx, tool, path, logger); err != nil {
			return results, err
		}
		logger.Info("downloaded tool", "path", path)
		results = append(results, Result{Tool: tool, Path: path})
	}
	return results, nil
}

// fetch downloads tool into path, retrying on transfer errors and digest
// mismatches. The last failure is returned once attempts are exhausted.
func (d *Downloader) fetch(ctx context.Context, tool project.ToolEntry, path string, logger *log.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return issue.New(issue.KindDownload, redactURL(tool.URL), err)
		}
		tmp, err := d.downloadToTempFile(ctx, tool.URL, filepath.Dir(path))
		if err == nil {
			err = archive.VerifySHA256(tmp, tool.SHA256)
			if err == nil {
				return install(tmp, path)
			}
			_ = os.Remove(tmp)
		}
		lastErr = err
		logger.Warn("download attempt failed", "attempt", attempt, "of", d.attempts, "err", err)
	}
	return lastErr
}

// downloadToTempFile fetches rawURL into a temporary file in dir and returns
// its path. The caller removes or renames the file.
func (d *Downloader) downloadToTempFile(ctx context.Context, rawURL, dir string) (_ string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", issue.New(issue.KindDownload, redactURL(rawURL), err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", issue.New(issue.KindDownload, redactURL(rawURL), err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		return "", issue.Errorf(issue.KindDownload, redactURL(rawURL), "unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, ".pkgsmith-download-*")
	if err != nil {
		return "", issue.New(issue.KindIO, dir, err)
	}
	defer func() {
		if closeErr := tmp.Close(); closeErr != nil && err == nil {
			err = issue.New(issue.KindIO, tmp.Name(), closeErr)
		}
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxToolBytes+1))
	if err != nil {
		return "", issue.New(issue.KindDownload, redactURL(rawURL), err)
	}
	if n > maxToolBytes {
		return "", issue.Errorf(issue.KindDownload, redactURL(rawURL), "response exceeds %d bytes", maxToolBytes)
	}
	return tmp.Name(), nil
}

// install moves a verified download into place and marks it executable.
func install(tmp, path string) error {
	if err := os.Chmod(tmp, 0o755); err != nil {
		_ = os.Remove(tmp)
		return issue.New(issue.KindIO, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return issue.New(issue.KindIO, path, err)
	}
	return nil
}

func cached(path, sha string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return archive.VerifySHA256(path, sha) == nil
}

// redactURL strips query parameters and fragments so tokens embedded in a
// download URL do not end up in error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// Summary formats results for display, one line per tool.
func Summary(results []Result) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		state := "downloaded"
		if r.Cached {
			state = "up to date"
		}
		lines = append(lines, fmt.Sprintf("%s (%s): %s", r.Tool.Filename, r.Tool.Arch, state))
	}
	return lines
}
