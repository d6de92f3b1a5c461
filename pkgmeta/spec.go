// Package pkgmeta reads and rewrites package metadata: an RPM-style
// spec file that names the package version, the packager identity, and
// the ordered patch list that records the on-disk series.
package pkgmeta

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/roasbeef/patchq/git"
	"github.com/roasbeef/patchq/series"
)

// Spec is one parsed spec file. The raw lines are retained so that
// rewrites only touch the patch machinery and leave everything else
// byte-for-byte alone.
type Spec struct {
	// Path is where the spec was read from and where Save writes.
	Path string

	// Dir is the directory patches are resolved against. It usually
	// equals the spec's own directory but may be redirected when the
	// packaging files were dumped somewhere else.
	Dir string

	// Name, Version, Release, and Packager are the core header tags.
	// Version is mandatory; the others may be empty.
	Name     string
	Version  string
	Release  string
	Packager string

	lines []string
	tags  []patchTag
}

// patchTag is one PatchN: line.
type patchTag struct {
	num  int
	name string
	line int
}

var (
	headerRx   = regexp.MustCompile(`(?i)^(Name|Version|Release|Packager)\s*:\s*(.*?)\s*$`)
	patchTagRx = regexp.MustCompile(`(?i)^Patch(\d*)\s*:\s*(\S+)\s*$`)
	sourceRx   = regexp.MustCompile(`(?i)^Source\d*\s*:`)
)

// Load reads and parses a spec file from the working copy.
func Load(specPath string) (*Spec, error) {
	data, err := os.ReadFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}

	return Parse(string(data), specPath)
}

// FromTree reads and parses a spec file out of a treeish, for actions
// that run while the working copy has no packaging directory.
func FromTree(
	ctx context.Context, exec git.Executor, treeish, specPath string,
) (*Spec, error) {

	content, err := exec.ShowFile(ctx, treeish, specPath)
	if err != nil {
		return nil, fmt.Errorf("read spec from %s: %w", treeish, err)
	}

	return Parse(content, specPath)
}

// Parse parses spec content. specPath only locates the spec for Dir
// derivation and error reporting.
func Parse(content, specPath string) (*Spec, error) {
	s := &Spec{
		Path:  specPath,
		Dir:   filepath.Dir(specPath),
		lines: strings.Split(content, "\n"),
	}

	for i, line := range s.lines {
		if m := patchTagRx.FindStringSubmatch(line); m != nil {
			num := 0
			if m[1] != "" {
				num, _ = strconv.Atoi(m[1])
			}
			s.tags = append(s.tags, patchTag{
				num:  num,
				name: m[2],
				line: i,
			})

			continue
		}

		m := headerRx.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		switch strings.ToLower(m[1]) {
		case "name":
			s.Name = m[2]
		case "version":
			s.Version = m[2]
		case "release":
			s.Release = m[2]
		case "packager":
			s.Packager = m[2]
		}
	}

	if s.Version == "" {
		return nil, fmt.Errorf("spec %s: missing Version tag", specPath)
	}

	// Series order is tag-number order, not file order.
	sort.SliceStable(s.tags, func(i, j int) bool {
		return s.tags[i].num < s.tags[j].num
	})

	return s, nil
}

// Save writes the spec back to Path.
func (s *Spec) Save() error {
	content := strings.Join(s.lines, "\n")
	if err := os.WriteFile(s.Path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write spec: %w", err)
	}

	return nil
}

// PackageVersion returns the Version tag value.
func (s *Spec) PackageVersion() string {
	return s.Version
}

// PackagingDir returns the directory patch names resolve against.
func (s *Spec) PackagingDir() string {
	return s.Dir
}

// RedirectDir points patch resolution at a different directory, used
// when the packaging files were dumped out of a treeish.
func (s *Spec) RedirectDir(dir string) {
	s.Dir = dir
}

// SpecPath returns the spec file location.
func (s *Spec) SpecPath() string {
	return s.Path
}

// packagerRx splits a "Name <email>" identity.
var packagerRx = regexp.MustCompile(`^(.*[^ ])\s*<(\S*)>$`)

// PackagerID parses the Packager tag into a commit signature. A
// missing or unparseable tag yields a zero signature, deferring to
// other identity sources.
func (s *Spec) PackagerID() git.Signature {
	m := packagerRx.FindStringSubmatch(strings.TrimSpace(s.Packager))
	if m == nil {
		return git.Signature{}
	}

	return git.Signature{Name: m[1], Email: m[2]}
}

// PatchSeries materializes the recorded patch list as a series, in tag
// order, with each file's compression resolved from its name.
func (s *Spec) PatchSeries() (series.PatchSeries, error) {
	var ps series.PatchSeries
	for _, tag := range s.tags {
		kind, err := series.CompressionForName(tag.name)
		if err != nil {
			return nil, fmt.Errorf("patch %s: %w", tag.name, err)
		}

		ps = append(ps, &series.Patch{
			Path:        filepath.Join(s.Dir, tag.name),
			Compression: kind,
		})
	}

	return ps, nil
}

// PatchNames returns the recorded patch basenames in series order.
func (s *Spec) PatchNames() []string {
	names := make([]string, 0, len(s.tags))
	for _, tag := range s.tags {
		names = append(names, tag.name)
	}

	return names
}

// DumpTree writes the direct children of dir as of treeish into dst,
// so that spec and patches read out of a treeish become plain files.
// Subdirectories are skipped.
func DumpTree(
	ctx context.Context, exec git.Executor, treeish, dir, dst string,
) error {

	entries, err := exec.ListTree(ctx, treeish, dir)
	if err != nil {
		return fmt.Errorf("list %s:%s: %w", treeish, dir, err)
	}

	for _, entry := range entries {
		content, err := exec.ShowFile(ctx, treeish, path.Join(dir, entry))
		if err != nil {
			// Directories have no blob content.
			continue
		}

		target := filepath.Join(dst, entry)
		if err := os.WriteFile(target, []byte(content), 0644); err != nil {
			return fmt.Errorf("dump %s: %w", entry, err)
		}
	}

	return nil
}
