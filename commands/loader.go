package commands

import (
	"context"

	"github.com/roasbeef/patchq/git"
	"github.com/roasbeef/patchq/pkgmeta"
	"github.com/roasbeef/patchq/queue"
)

// specLoader adapts the pkgmeta package to the metadata loader the
// engine consumes.
type specLoader struct {
	exec git.Executor
}

func (l specLoader) Load(dir, preferred string) (queue.Metadata, error) {
	spec, err := pkgmeta.Guess(dir, preferred)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

func (l specLoader) LoadTree(
	ctx context.Context, treeish, dir, preferred string,
) (queue.Metadata, error) {

	spec, err := pkgmeta.GuessTree(ctx, l.exec, treeish, dir, preferred)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

func (l specLoader) DumpTree(
	ctx context.Context, treeish, dir, dst string,
) error {

	return pkgmeta.DumpTree(ctx, l.exec, treeish, dir, dst)
}

// newController builds the patch queue engine for the current run.
// The executor is anchored at the repository root; git apply silently
// skips paths outside the current directory, so running from a
// subdirectory would otherwise lose patch content.
func newController(ctx context.Context) (*queue.Controller, error) {
	rt := getRuntime(ctx)

	root, err := git.NewShellExecutor(rt.WorkDir).Root(ctx)
	if err != nil {
		return nil, err
	}
	exec := git.NewShellExecutor(root)

	return queue.NewController(exec, rt.Cfg, specLoader{exec: exec}, rt.Log)
}
