// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/project"
)

const (
	// DefaultXZLevel matches the xz command line default preset.
	DefaultXZLevel = 6
	maxXZLevel     = 9
)

// xzDictCaps maps xz presets 0-9 to their dictionary size.
var xzDictCaps = [maxXZLevel + 1]int{
	256 << 10, 1 << 20, 2 << 20, 4 << 20, 4 << 20,
	8 << 20, 8 << 20, 16 << 20, 32 << 20, 64 << 20,
}

// lookPath finds the system xz binary; replaced in tests.
var lookPath = exec.LookPath

// XZOptions tunes the xz encoder.
type XZOptions struct {
	// Level is the preset, 0 to 9. Out of range values use DefaultXZLevel.
	Level int
	// Threads above 1 select the system xz binary when one is installed.
	// Zero means one thread per CPU.
	Threads int
}

// DefaultXZOptions returns preset 6 with one thread per CPU.
func DefaultXZOptions() XZOptions {
	return XZOptions{Level: DefaultXZLevel, Threads: runtime.NumCPU()}
}

func (o XZOptions) normalized() XZOptions {
	if o.Level < 0 || o.Level > maxXZLevel {
		o.Level = DefaultXZLevel
	}
	if o.Threads <= 0 {
		o.Threads = runtime.NumCPU()
	}
	return o
}

// CompressFile encodes src into dst with the given deb member codec.
func CompressFile(ctx context.Context, codec project.Compression, src, dst string, opts XZOptions) error {
	if codec == project.CompressionGzip {
		return GzipFile(src, dst)
	}
	return XZFile(ctx, src, dst, opts)
}

// GzipFile encodes src into dst at the default gzip level.
func GzipFile(src, dst string) error {
	return encodeFile(src, dst, func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	})
}

// XZFile encodes src into dst. With more than one thread and an xz binary on
// PATH the multi-threaded system encoder is used; otherwise the stream is
// produced in-process.
func XZFile(ctx context.Context, src, dst string, opts XZOptions) error {
	opts = opts.normalized()
	if opts.Threads > 1 {
		if bin, err := lookPath("xz"); err == nil {
			return systemXZ(ctx, bin, src, dst, opts)
		}
	}
	cfg := xz.WriterConfig{DictCap: xzDictCaps[opts.Level], CheckSum: xz.CRC64}
	return encodeFile(src, dst, func(w io.Writer) (io.WriteCloser, error) {
		return cfg.NewWriter(w)
	})
}

func encodeFile(src, dst string, newEncoder func(io.Writer) (io.WriteCloser, error)) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return issue.New(issue.KindIO, src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return issue.New(issue.KindIO, dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = issue.New(issue.KindIO, dst, closeErr)
		}
	}()

	enc, err := newEncoder(out)
	if err != nil {
		return issue.New(issue.KindEncode, dst, err)
	}
	if _, err := io.Copy(enc, in); err != nil {
		_ = enc.Close()
		return issue.New(issue.KindEncode, dst, fmt.Errorf("compressing %s: %w", src, err))
	}
	// Close flushes the final block and the stream footer.
	if err := enc.Close(); err != nil {
		return issue.New(issue.KindEncode, dst, err)
	}
	return nil
}

func systemXZ(ctx context.Context, bin, src, dst string, opts XZOptions) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return issue.New(issue.KindIO, src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return issue.New(issue.KindIO, dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = issue.New(issue.KindIO, dst, closeErr)
		}
	}()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-T"+strconv.Itoa(opts.Threads), "-"+strconv.Itoa(opts.Level), "-c")
	cmd.Stdin = in
	cmd.Stdout = out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return issue.New(issue.KindEncode, dst,
			fmt.Errorf("xz: %w: %s", err, strings.TrimSpace(stderr.String())))
	}
	return nil
}
