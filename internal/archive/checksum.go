// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bufio"
	"crypto/md5" //nolint:gosec // dpkg md5sums format
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkgsmith/pkgsmith/internal/issue"
)

// hashChunkSize bounds each read while hashing.
const hashChunkSize = 64 * 1024

// FileSHA256 returns the lowercase hex SHA-256 digest of the file at path.
func FileSHA256(path string) (string, error) {
	return fileDigest(path, sha256.New())
}

// FileMD5 returns the lowercase hex MD5 digest of the file at path.
func FileMD5(path string) (string, error) {
	return fileDigest(path, md5.New()) //nolint:gosec // dpkg md5sums format
}

func fileDigest(path string, h hash.Hash) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", issue.New(issue.KindIO, path, err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", issue.New(issue.KindIO, path, fmt.Errorf("hashing file: %w", err))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifySHA256 compares the digest of path against expected, ignoring case.
// A mismatch is a KindChecksumMismatch error wrapping *ChecksumError.
func VerifySHA256(path, expected string) error {
	got, err := FileSHA256(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, expected) {
		return issue.New(issue.KindChecksumMismatch, path, &ChecksumError{
			Filename: path,
			Expected: strings.ToLower(expected),
			Got:      got,
		})
	}
	return nil
}

// MD5Manifest writes one "<md5>  <rel/path>" line per regular file below
// dir, in walk order, and returns the number of lines written.
func MD5Manifest(dir string, w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return issue.New(issue.KindIO, p, walkErr)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		sum, err := FileMD5(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return issue.New(issue.KindIO, p, err)
		}
		if _, err := fmt.Fprintf(bw, "%s  %s\n", sum, filepath.ToSlash(rel)); err != nil {
			return issue.New(issue.KindIO, p, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	if err := bw.Flush(); err != nil {
		return count, issue.New(issue.KindIO, dir, err)
	}
	return count, nil
}

// WriteMD5Manifest writes the manifest of dataDir to the file dst.
func WriteMD5Manifest(dataDir, dst string) (int, error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, issue.New(issue.KindIO, dst, err)
	}
	n, err := MD5Manifest(dataDir, f)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = issue.New(issue.KindIO, dst, closeErr)
	}
	return n, err
}

// TreeSize returns the total size in bytes of the regular files below dir.
func TreeSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return issue.New(issue.KindIO, p, walkErr)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return issue.New(issue.KindIO, p, err)
		}
		total += info.Size()
		return nil
	})
	return total, err
}
