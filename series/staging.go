package series

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Staging is a private materialization of a series: every patch copied
// into a scratch directory as plain text, so application tooling never
// sees compression. Close removes the directory again.
type Staging struct {
	// Dir is the scratch directory holding the staged files.
	Dir string

	// Series mirrors the source series with paths pointing into Dir
	// and compression stripped.
	Series PatchSeries
}

// Stage materializes the series under baseDir, or the system temp
// directory when baseDir is empty. On error the partially populated
// directory is removed before returning.
func Stage(s PatchSeries, baseDir string) (*Staging, error) {
	dir, err := os.MkdirTemp(baseDir, "patchimport-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	st := &Staging{Dir: dir}
	for _, p := range s {
		staged, err := stageOne(p, dir)
		if err != nil {
			st.Close()
			return nil, err
		}

		st.Series = append(st.Series, staged)
	}

	return st, nil
}

// Close removes the staging directory and everything in it.
func (st *Staging) Close() error {
	return os.RemoveAll(st.Dir)
}

// stageOne copies one patch into dir, decompressing along the way.
func stageOne(p *Patch, dir string) (*Patch, error) {
	src, err := p.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := filepath.Join(dir, p.PlainBase())
	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", p.Base(), err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return nil, fmt.Errorf("stage %s: %w", p.Base(), err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("stage %s: %w", p.Base(), err)
	}

	return &Patch{
		Path:        dst,
		Compression: CompressNone,
		Directives:  p.Directives,
	}, nil
}
