package queue

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/roasbeef/patchq/git"
	"github.com/roasbeef/patchq/series"
)

// ImportRequest describes one run of the importer.
type ImportRequest struct {
	// Series is the ordered patch series to replay.
	Series series.PatchSeries

	// Baseline is the commit the queue branch is rooted at.
	Baseline string

	// Branch is the queue branch name to create.
	Branch string

	// Packager attributes commits whose patch carries no author of
	// its own. A zero value defers to the repository identity.
	Packager git.Signature

	// Force recreates the branch when it already exists.
	Force bool

	// TmpDir is the base directory for the private staging area.
	// Empty means the system temp directory.
	TmpDir string
}

// Importer replays a patch series as commits on a fresh patch queue
// branch, rolling back on failure.
type Importer struct {
	git git.Executor
	log *log.Logger
}

// NewImporter creates an importer over the given repository.
func NewImporter(g git.Executor, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Importer{git: g, log: logger}
}

// Import creates the queue branch at the baseline and applies the
// series in order, one commit per patch. On failure the compensation
// list runs in reverse: the prior branch is checked out again and the
// partially built queue branch is deleted. On success the repository
// is left on the new branch.
func (im *Importer) Import(
	ctx context.Context, req ImportRequest,
) (string, error) {

	if im.git.HasBranch(ctx, req.Branch) && !req.Force {
		return "", fmt.Errorf("%w: %q", ErrBranchExists, req.Branch)
	}

	prior, err := im.git.CurrentBranch(ctx)
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}

	// Decompress up front so application always sees plain text.
	staged, err := series.Stage(req.Series, req.TmpDir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrImportFailed, err)
	}
	defer staged.Close()

	var undo []func()
	fail := func(cause error) (string, error) {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}

		return "", fmt.Errorf("%w: %w", ErrImportFailed, cause)
	}

	// Compensation actions must run even when the context is already
	// gone.
	bg := context.WithoutCancel(ctx)

	if prior == req.Branch {
		// Recreating in place: force turns the branch head back to
		// the baseline.
		if err := im.git.ForceHead(ctx, req.Baseline); err != nil {
			return fail(err)
		}
	} else {
		err := im.git.CreateBranch(ctx, req.Branch, req.Baseline, req.Force)
		if err != nil {
			return fail(err)
		}

		undo = append(undo, func() {
			_ = im.git.DeleteBranch(bg, req.Branch)
		})

		if err := im.git.Checkout(ctx, req.Branch); err != nil {
			return fail(err)
		}
		undo = append(undo, func() {
			_ = im.git.Checkout(bg, prior)
		})
	}

	for _, p := range staged.Series {
		if err := im.applyOne(ctx, p, req.Packager); err != nil {
			return fail(err)
		}
	}

	return req.Branch, nil
}

// applyOne applies a single staged patch and commits it. The commit
// message comes from the patch header, falling back to the file name;
// the author is the patch's own identity, then the packager, then the
// repository default.
func (im *Importer) applyOne(
	ctx context.Context, p *series.Patch, packager git.Signature,
) error {

	f, err := os.Open(p.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", p.Base(), err)
	}
	defer f.Close()

	header, err := series.ParseHeader(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", p.Base(), err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind %s: %w", p.Base(), err)
	}

	im.log.Debug("applying patch", "patch", p.Base())

	if err := im.git.Apply(ctx, f); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrApplyFailed, p.Base(), err)
	}

	author := header.Author
	if author.Name == "" || author.Email == "" {
		author = packager
	}

	msg := header.Message(p.Base())
	if err := im.git.Commit(ctx, msg, author); err != nil {
		return fmt.Errorf("commit %s: %w", p.Base(), err)
	}

	return nil
}
