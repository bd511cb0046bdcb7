// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pkgsmith/pkgsmith/internal/issue"
	"github.com/pkgsmith/pkgsmith/pkg/platform"
)

const (
	// rootOwner is the user and group name recorded on every entry.
	rootOwner = "root"

	windowsDirMode  = 0o755
	windowsFileMode = 0o644

	// Mode bits of the tar header beyond the permission bits.
	cISUID = 0o4000
	cISGID = 0o2000
	cISVTX = 0o1000
)

// TarWithoutRoot writes the contents of dir to dst, naming entries ./<rel>.
// This is the layout dpkg expects for control.tar and data.tar.
func TarWithoutRoot(dir, dst string) error {
	return writeTar(dir, dst, func(rel string) string { return "./" + rel })
}

// TarWithRoot writes dir to dst with every entry below <base(dir)>/, the
// source tarball layout rpmbuild %setup expects.
func TarWithRoot(dir, dst string) error {
	base := filepath.Base(filepath.Clean(dir))
	return writeTar(dir, dst, func(rel string) string { return path.Join(base, rel) })
}

func writeTar(dir, dst string, name func(rel string) string) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return issue.New(issue.KindIO, dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = issue.New(issue.KindIO, dst, closeErr)
		}
	}()

	tw := tar.NewWriter(out)
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return issue.New(issue.KindIO, p, walkErr)
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return issue.New(issue.KindIO, p, err)
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return issue.New(issue.KindIO, p, err)
		}
		hdr, err := header(info, name(filepath.ToSlash(rel)))
		if err != nil {
			return issue.New(issue.KindEncode, p, err)
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return issue.New(issue.KindEncode, p, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			return appendFile(tw, p)
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}
	if err := tw.Close(); err != nil {
		return issue.New(issue.KindEncode, dst, err)
	}
	return nil
}

// header builds a deterministic GNU header: root ownership, whole-second
// mtime and explicit type flags.
func header(info fs.FileInfo, name string) (*tar.Header, error) {
	hdr := &tar.Header{
		Name:    name,
		ModTime: info.ModTime().Truncate(time.Second),
		Uid:     0,
		Gid:     0,
		Uname:   rootOwner,
		Gname:   rootOwner,
		Format:  tar.FormatGNU,
	}

	perm := int64(info.Mode().Perm()) | specialModeBits(info.Mode())
	switch {
	case info.IsDir():
		hdr.Typeflag = tar.TypeDir
		hdr.Name += "/"
		if runtime.GOOS == platform.Windows {
			perm = windowsDirMode
		}
	case info.Mode().IsRegular():
		hdr.Typeflag = tar.TypeReg
		hdr.Size = info.Size()
		if runtime.GOOS == platform.Windows {
			perm = windowsFileMode
		}
	default:
		return nil, &UnsupportedEntryError{Name: name, Mode: info.Mode()}
	}
	hdr.Mode = perm
	return hdr, nil
}

// specialModeBits returns the setuid, setgid and sticky bits of mode in
// tar's octal encoding.
func specialModeBits(mode fs.FileMode) int64 {
	var bits int64
	if mode&fs.ModeSetuid != 0 {
		bits |= cISUID
	}
	if mode&fs.ModeSetgid != 0 {
		bits |= cISGID
	}
	if mode&fs.ModeSticky != 0 {
		bits |= cISVTX
	}
	return bits
}

func appendFile(tw *tar.Writer, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return issue.New(issue.KindIO, p, err)
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return issue.New(issue.KindEncode, p, err)
	}
	return nil
}
