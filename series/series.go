// Package series models an ordered patch series: the file-based form of
// a patch queue. A series knows each patch's on-disk location, its
// compression, and the handling directives parsed from the originating
// commit message.
package series

import (
	"path/filepath"
	"strings"
)

// Patch is one ordered diff unit of a series. While unapplied, the file
// at Path is the source of truth for its content.
type Patch struct {
	// Path locates the patch file. It may carry a compression suffix
	// matching Compression.
	Path string

	// Compression is how the file at Path is encoded. It is resolved
	// once when the patch is discovered and never re-derived from the
	// filename afterwards.
	Compression Compression

	// Directives are the handling instructions from the originating
	// commit, in the order they appeared.
	Directives []Directive
}

// Base returns the patch's basename, compression suffix included.
func (p *Patch) Base() string {
	return filepath.Base(p.Path)
}

// PlainBase returns the basename with any compression suffix removed:
// the name application tooling sees after staging.
func (p *Patch) PlainBase() string {
	return strings.TrimSuffix(p.Base(), p.Compression.Ext())
}

// PatchSeries is an ordered sequence of patches. Insertion order is
// application order is commit order.
type PatchSeries []*Patch

// Names returns the basenames of all patches in series order.
func (s PatchSeries) Names() []string {
	names := make([]string, 0, len(s))
	for _, p := range s {
		names = append(names, p.Base())
	}

	return names
}

// Find returns the patch with the given basename, or nil.
func (s PatchSeries) Find(base string) *Patch {
	for _, p := range s {
		if p.Base() == base {
			return p
		}
	}

	return nil
}
