package series

import (
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Compression is the closed set of patch file encodings. Gzip is the
// only kind written on export; bzip2 is read-only support for series
// that already carry it.
type Compression string

const (
	CompressNone  Compression = "none"
	CompressGzip  Compression = "gzip"
	CompressBzip2 Compression = "bzip2"
)

// ErrUnsupportedCompression marks a compression kind this tool cannot
// read back.
var ErrUnsupportedCompression = errors.New("unsupported patch compression")

// Valid returns true if the compression kind is recognized.
func (c Compression) Valid() bool {
	switch c {
	case CompressNone, CompressGzip, CompressBzip2:
		return true
	default:
		return false
	}
}

// Ext returns the filename suffix carried by the kind.
func (c Compression) Ext() string {
	switch c {
	case CompressGzip:
		return ".gz"
	case CompressBzip2:
		return ".bz2"
	default:
		return ""
	}
}

// CompressionForName resolves the compression kind from a filename.
// This is the single place the kind is inferred from a name; callers
// carry the result on the Patch from then on. Archive suffixes we know
// of but cannot read are an explicit error rather than a pass-through.
func CompressionForName(name string) (Compression, error) {
	switch filepath.Ext(name) {
	case ".gz":
		return CompressGzip, nil
	case ".bz2":
		return CompressBzip2, nil
	case ".xz", ".lzma", ".zst", ".Z":
		return "", fmt.Errorf(
			"%w %q", ErrUnsupportedCompression, filepath.Ext(name),
		)
	default:
		return CompressNone, nil
	}
}

// Compress gzips the file at path in place when it exceeds threshold
// bytes, appending the .gz suffix and removing the original. The gzip
// header carries no name or timestamp so repeated exports of the same
// content stay byte-identical. Threshold 0 disables compression.
func Compress(path string, threshold int64) (string, Compression, error) {
	if threshold <= 0 {
		return path, CompressNone, nil
	}

	fi, err := os.Stat(path)
	if err != nil {
		return "", CompressNone, fmt.Errorf("stat patch: %w", err)
	}
	if fi.Size() <= threshold {
		return path, CompressNone, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", CompressNone, fmt.Errorf("read patch: %w", err)
	}

	out := path + CompressGzip.Ext()
	f, err := os.Create(out)
	if err != nil {
		return "", CompressNone, fmt.Errorf("create %s: %w", out, err)
	}

	zw := gzip.NewWriter(f)
	if _, err := zw.Write(data); err != nil {
		f.Close()
		return "", CompressNone, fmt.Errorf("compress %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return "", CompressNone, fmt.Errorf("compress %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", CompressNone, fmt.Errorf("compress %s: %w", path, err)
	}

	if err := os.Remove(path); err != nil {
		return "", CompressNone, fmt.Errorf(
			"remove uncompressed %s: %w", path, err,
		)
	}

	return out, CompressGzip, nil
}

// Open returns a reader over the patch's plain-text content,
// decompressing according to the recorded kind.
func (p *Patch) Open() (io.ReadCloser, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("open patch: %w", err)
	}

	switch p.Compression {
	case CompressNone, "":
		return f, nil

	case CompressGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gunzip %s: %w", p.Path, err)
		}

		return &decompressReader{
			Reader:  zr,
			closers: []io.Closer{zr, f},
		}, nil

	case CompressBzip2:
		return &decompressReader{
			Reader:  bzip2.NewReader(f),
			closers: []io.Closer{f},
		}, nil

	default:
		f.Close()
		return nil, fmt.Errorf(
			"%w %q", ErrUnsupportedCompression, p.Compression,
		)
	}
}

// decompressReader closes the decompressor and the underlying file in
// order.
type decompressReader struct {
	io.Reader
	closers []io.Closer
}

func (r *decompressReader) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
