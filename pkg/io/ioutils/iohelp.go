package ioutils

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
)

// OpenMaybeCompressed opens path and returns a reader over its contents.
// Files ending in .gz, or starting with the gzip magic bytes, are
// decompressed transparently.
func OpenMaybeCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	gz := filepath.Ext(path) == ".gz"
	if !gz {
		if b, err := br.Peek(2); err == nil && b[0] == 0x1f && b[1] == 0x8b {
			gz = true
		}
	}
	if !gz {
		return readCloser{Reader: br, closeFn: f.Close}, nil
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return readCloser{Reader: zr, closeFn: func() error {
		_ = zr.Close()
		return f.Close()
	}}, nil
}

type readCloser struct {
	io.Reader
	closeFn func() error
}

func (r readCloser) Close() error { return r.closeFn() }
