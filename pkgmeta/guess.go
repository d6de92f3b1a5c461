package pkgmeta

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/roasbeef/patchq/git"
)

// Guess finds the spec file in a working-copy directory: the preferred
// name when it exists, otherwise exactly one *.spec file.
func Guess(dir, preferred string) (*Spec, error) {
	if preferred != "" {
		p := filepath.Join(dir, preferred)
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.spec"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no spec file found in %q", dir)
	case 1:
		return Load(matches[0])
	default:
		return nil, fmt.Errorf(
			"multiple spec files in %q, set one explicitly", dir,
		)
	}
}

// GuessTree finds the spec file in a directory as of a treeish, with
// the same preference rules as Guess.
func GuessTree(
	ctx context.Context, exec git.Executor, treeish, dir, preferred string,
) (*Spec, error) {

	entries, err := exec.ListTree(ctx, treeish, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s:%s: %w", treeish, dir, err)
	}

	var specs []string
	for _, entry := range entries {
		if entry == preferred && preferred != "" {
			return FromTree(ctx, exec, treeish, path.Join(dir, entry))
		}
		if strings.HasSuffix(entry, ".spec") {
			specs = append(specs, entry)
		}
	}

	switch len(specs) {
	case 0:
		return nil, fmt.Errorf("no spec file found in %s:%q", treeish, dir)
	case 1:
		return FromTree(ctx, exec, treeish, path.Join(dir, specs[0]))
	default:
		return nil, fmt.Errorf(
			"multiple spec files in %s:%q, set one explicitly", treeish, dir,
		)
	}
}
