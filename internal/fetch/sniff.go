package fetch

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Magic bytes for tarball compression detection
var (
	gzipMagic  = []byte{0x1F, 0x8B}
	xzMagic    = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}
	bzip2Magic = []byte("BZh")
	zstdMagic  = []byte{0x28, 0xB5, 0x2F, 0xFD}
)

// SniffExt infers an orig tarball's extension from its content, never from
// the URL. The magic match is confirmed by opening the matching
// decompressor on the file header.
func SniffExt(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return "", err
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return "tar.gz", confirm(f, func(r io.Reader) (io.Reader, error) {
			zr, err := gzip.NewReader(r)
			if err != nil {
				return nil, err
			}
			return zr, nil
		})
	case bytes.HasPrefix(header, xzMagic):
		return "tar.xz", confirm(f, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		})
	case bytes.HasPrefix(header, zstdMagic):
		return "tar.zst", confirm(f, func(r io.Reader) (io.Reader, error) {
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return zr.IOReadCloser(), nil
		})
	case bytes.HasPrefix(header, bzip2Magic):
		return "tar.bz2", confirm(f, func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		})
	case isTar(header):
		return "tar", nil
	}
	return "", fmt.Errorf("unrecognized archive format in %s", path)
}

// confirm rewinds the file and reads one decompressed block through the
// candidate decoder, so a corrupt download fails here rather than inside
// the build container.
func confirm(f *os.File, open func(io.Reader) (io.Reader, error)) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r, err := open(f)
	if err != nil {
		return err
	}
	block := make([]byte, 512)
	if _, err := r.Read(block); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// isTar checks the ustar magic at offset 257.
func isTar(header []byte) bool {
	return len(header) > 262 && bytes.Equal(header[257:262], []byte("ustar"))
}
