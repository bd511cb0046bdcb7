// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/blakesmith/ar"

	"github.com/pkgsmith/pkgsmith/internal/issue"
)

const (
	arMagic      = ar.GLOBAL_HEADER
	arHeaderSize = ar.HEADER_BYTE_SIZE
	arMaxName    = 16
	// arMemberMode is the permission part; the writer prefixes the
	// regular-file type bits.
	arMemberMode = 0o644

	// arChunkSize must be even: ar.Writer pads every odd-sized write.
	arChunkSize = 32 << 10
)

// Member is one file appended to an ar archive.
type Member struct {
	// Name is the member name; it defaults to the base name of Path.
	Name string
	// Path is the file providing the member body and mtime.
	Path string
}

// WriteAr writes members, in order, to a common-format ar archive at dst.
// Every member is owned by uid/gid 0 with mode 100644.
func WriteAr(dst string, members []Member) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return issue.New(issue.KindIO, dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = issue.New(issue.KindIO, dst, closeErr)
		}
	}()

	bw := bufio.NewWriter(out)
	aw := ar.NewWriter(bw)
	if err := aw.WriteGlobalHeader(); err != nil {
		return issue.New(issue.KindEncode, dst, err)
	}
	for _, m := range members {
		if err := writeMember(aw, m); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return issue.New(issue.KindEncode, dst, err)
	}
	return nil
}

func writeMember(aw *ar.Writer, m Member) error {
	name := m.Name
	if name == "" {
		name = filepath.Base(m.Path)
	}
	if len(name) > arMaxName {
		return issue.New(issue.KindEncode, m.Path, &MemberNameError{Name: name})
	}

	f, err := os.Open(m.Path)
	if err != nil {
		return issue.New(issue.KindIO, m.Path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return issue.New(issue.KindIO, m.Path, err)
	}

	err = aw.WriteHeader(&ar.Header{
		Name:    name,
		ModTime: info.ModTime(),
		Mode:    arMemberMode,
		Size:    info.Size(),
	})
	if err != nil {
		return issue.New(issue.KindEncode, m.Path, err)
	}

	n, err := copyBody(aw, f)
	if errors.Is(err, ar.ErrWriteTooLong) || (err == nil && n != info.Size()) {
		return issue.Errorf(issue.KindIO, m.Path, "file changed while archiving: %d bytes expected", info.Size())
	}
	if err != nil {
		return issue.New(issue.KindEncode, m.Path, err)
	}
	return nil
}

// copyBody streams r into the current member in full even-sized chunks, so
// only the final chunk can trigger the writer's alignment padding. It
// returns the number of body bytes read.
func copyBody(aw *ar.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, arChunkSize)
	var total int64
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			total += int64(n)
			if _, werr := aw.Write(buf[:n]); werr != nil {
				return total, werr
			}
		}
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return total, nil
		case err != nil:
			return total, err
		}
	}
}
