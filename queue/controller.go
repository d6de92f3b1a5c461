// Package queue implements the patch queue synchronization engine:
// exporting commit ranges as ordered patch series, importing series
// back as commits on a derived branch, and the actions tying the two
// together.
package queue

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/roasbeef/patchq/config"
	"github.com/roasbeef/patchq/git"
	"github.com/roasbeef/patchq/series"
)

// Metadata exposes the package metadata the engine consumes: the
// version that names branches and tags, the packager identity, and
// the recorded patch series.
type Metadata interface {
	// PackageVersion returns the package version string.
	PackageVersion() string

	// PackagerID returns the packager identity, zero when the
	// metadata carries none.
	PackagerID() git.Signature

	// PackagingDir returns the directory the metadata was read from.
	PackagingDir() string

	// SpecPath returns the path of the metadata file itself.
	SpecPath() string

	// RedirectDir points the recorded patch series at another
	// directory, used when patches were dumped from a treeish.
	RedirectDir(dir string)

	// PatchNames lists the recorded patch basenames in order.
	PatchNames() []string

	// PatchSeries resolves the recorded patches into a series.
	PatchSeries() (series.PatchSeries, error)

	// UpdatePatches replaces the recorded series and its directives.
	UpdatePatches(names []string, directives map[string][]series.Directive) error

	// Save persists any UpdatePatches rewrite.
	Save() error
}

// MetadataLoader locates and reads package metadata from the working
// copy or from a treeish.
type MetadataLoader interface {
	// Load reads metadata from a working-copy directory.
	Load(dir, preferred string) (Metadata, error)

	// LoadTree reads metadata from a directory as of a treeish.
	LoadTree(ctx context.Context, treeish, dir, preferred string) (Metadata, error)

	// DumpTree materializes a treeish directory into dst.
	DumpTree(ctx context.Context, treeish, dir, dst string) error
}

// ExportOptions carries the per-invocation export overrides.
type ExportOptions struct {
	// ExportRev overrides the treeish the series is exported from.
	// Empty means the patch queue branch.
	ExportRev string
}

// ImportOptions carries the per-invocation import overrides.
type ImportOptions struct {
	// Force recreates an existing queue branch, and permits running
	// the import from the queue branch itself.
	Force bool
}

// ExportOutcome reports what an export changed.
type ExportOutcome struct {
	// Base is the base branch the export ran against.
	Base string

	// Queue is the patch queue branch the series came from.
	Queue string

	// Spec is the path of the rewritten metadata file.
	Spec string

	// Series lists the exported patches, in order, at their final
	// locations.
	Series series.PatchSeries

	// Directives maps patch basenames to their directive lists.
	Directives map[string][]series.Directive

	// Status is the short git status of the packaging dir.
	Status string
}

// ImportOutcome reports what an import created.
type ImportOutcome struct {
	Branch string
	Base   string
	Count  int
	Spec   string
}

// RebaseOutcome reports the branch and baseline of a rebase.
type RebaseOutcome struct {
	Branch   string
	Baseline string
}

// DropOutcome reports whether the queue branch existed to drop.
type DropOutcome struct {
	Branch  string
	Dropped bool
}

// SwitchOutcome reports the branch switched to.
type SwitchOutcome struct {
	Branch  string
	Created bool
}

// ApplyOutcome reports a single applied patch.
type ApplyOutcome struct {
	Branch string
	Patch  string
}

// StatusOutcome reports the current branch pair and recorded series.
type StatusOutcome struct {
	Branch      string
	Base        string
	Queue       string
	OnQueue     bool
	QueueExists bool
	Baseline    string
	Patches     []string
}

// Controller orchestrates the patch queue actions against a single
// repository checkout. The base/queue relation is recomputed from the
// current branch on every action; nothing is cached between actions.
type Controller struct {
	git      git.Executor
	cfg      *config.Config
	namer    *BranchNamer
	meta     MetadataLoader
	exporter *Exporter
	importer *Importer
	ignoreRx *regexp.Regexp
	log      *log.Logger
}

// NewController wires a controller from its collaborators. The
// configured templates and the ignore pattern are compiled here, so
// bad ones fail at startup instead of mid-action.
func NewController(
	g git.Executor, cfg *config.Config, meta MetadataLoader,
	logger *log.Logger,
) (*Controller, error) {

	if logger == nil {
		logger = log.New(io.Discard)
	}

	namer, err := NewBranchNamer(cfg.PqBranch)
	if err != nil {
		return nil, err
	}

	if _, err := UpstreamTag(cfg.UpstreamTag, "0", cfg.Vendor); err != nil {
		return nil, err
	}

	ignoreRx, err := cfg.IgnoreRegexp()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	return &Controller{
		git:      g,
		cfg:      cfg,
		namer:    namer,
		meta:     meta,
		exporter: NewExporter(g, logger),
		importer: NewImporter(g, logger),
		ignoreRx: ignoreRx,
		log:      logger,
	}, nil
}

// Export regenerates the patch series from the queue branch (or an
// explicit treeish) and rewrites the metadata to match. Stale patch
// files recorded in the metadata are removed; afterwards the
// packaging dir mirrors exactly the just-computed series.
func (c *Controller) Export(
	ctx context.Context, opts ExportOptions,
) (*ExportOutcome, error) {

	current, err := c.git.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	base := current
	pq := ""
	if c.namer.IsQueueBranch(current) {
		base, err = c.namer.Base(current)
		if err != nil {
			return nil, err
		}

		c.log.Info("switching to base branch", "from", current, "to", base)
		if err := c.git.Checkout(ctx, base); err != nil {
			return nil, err
		}
		pq = current
	}

	meta, err := c.loadMeta(ctx)
	if err != nil {
		return nil, err
	}

	version := meta.PackageVersion()
	if pq == "" {
		pq, err = c.namer.Name(base, version)
		if err != nil {
			return nil, err
		}
	}

	baseline, err := c.upstreamCommit(ctx, version)
	if err != nil {
		return nil, err
	}

	end := pq
	if opts.ExportRev != "" {
		end = opts.ExportRev
	}

	// Patches are generated into a private staging dir; nothing
	// lands in the packaging dir until the whole series computed.
	staging, err := os.MkdirTemp(c.cfg.TmpDir, "patchexport-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	res, err := c.exporter.Export(ctx, ExportRequest{
		Baseline:          baseline,
		End:               end,
		Squash:            c.cfg.PatchExportSquashUntil,
		IgnoreRx:          c.ignoreRx,
		CompressThreshold: c.cfg.PatchExportCompress,
		OutDir:            staging,
		Numbered:          c.cfg.NumberedPatches(),
		CommandTag:        c.cfg.CommandTag,
	})
	if err != nil {
		return nil, err
	}

	packDir := meta.PackagingDir()
	for _, name := range meta.PatchNames() {
		c.log.Debug("removing stale patch", "patch", name)

		err := os.Remove(filepath.Join(packDir, name))
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale patch %s: %w", name, err)
		}
	}

	final := make(series.PatchSeries, 0, len(res.Series))
	for _, p := range res.Series {
		dst := filepath.Join(packDir, p.Base())
		if err := moveFile(p.Path, dst); err != nil {
			return nil, err
		}

		final = append(final, &series.Patch{
			Path:        dst,
			Compression: p.Compression,
			Directives:  p.Directives,
		})
	}

	if err := meta.UpdatePatches(final.Names(), res.Directives); err != nil {
		return nil, fmt.Errorf("update spec: %w", err)
	}
	if err := meta.Save(); err != nil {
		return nil, fmt.Errorf("write spec: %w", err)
	}

	status, err := c.git.Status(ctx, packDir)
	if err != nil {
		return nil, err
	}

	return &ExportOutcome{
		Base:       base,
		Queue:      pq,
		Spec:       meta.SpecPath(),
		Series:     final,
		Directives: res.Directives,
		Status:     status,
	}, nil
}

// Import replays the recorded patch series onto a freshly created
// queue branch rooted at the upstream baseline.
func (c *Controller) Import(
	ctx context.Context, opts ImportOptions,
) (*ImportOutcome, error) {

	current, err := c.git.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	base := current
	var meta Metadata

	if c.namer.IsQueueBranch(current) {
		if !opts.Force {
			return nil, fmt.Errorf(
				"already on patch queue branch %q, use force to re-import",
				current,
			)
		}

		base, err = c.namer.Base(current)
		if err != nil {
			return nil, err
		}

		// The queue branch tree has no packaging dir; the spec and
		// the patches both come from the base branch tree.
		meta, err = c.loadTreeMeta(ctx, base)
		if err != nil {
			return nil, err
		}

		dump, err := os.MkdirTemp(c.cfg.TmpDir, "patchdump-*")
		if err != nil {
			return nil, fmt.Errorf("create dump dir: %w", err)
		}
		defer os.RemoveAll(dump)

		err = c.meta.DumpTree(ctx, base, c.cfg.PackagingDir, dump)
		if err != nil {
			return nil, err
		}
		meta.RedirectDir(dump)
	} else {
		meta, err = c.loadMeta(ctx)
		if err != nil {
			return nil, err
		}
	}

	version := meta.PackageVersion()
	pq, err := c.namer.Name(base, version)
	if err != nil {
		return nil, err
	}

	if c.git.HasBranch(ctx, pq) && !opts.Force {
		return nil, fmt.Errorf(
			"%w: %q, try rebase instead", ErrBranchExists, pq,
		)
	}

	baseline, err := c.upstreamCommit(ctx, version)
	if err != nil {
		return nil, err
	}

	patches, err := meta.PatchSeries()
	if err != nil {
		return nil, err
	}

	branch, err := c.importer.Import(ctx, ImportRequest{
		Series:   patches,
		Baseline: baseline,
		Branch:   pq,
		Packager: meta.PackagerID(),
		Force:    opts.Force,
		TmpDir:   c.cfg.TmpDir,
	})
	if err != nil {
		return nil, err
	}

	c.log.Info(
		"patches imported", "spec", meta.SpecPath(), "branch", branch,
	)

	return &ImportOutcome{
		Branch: branch,
		Base:   base,
		Count:  len(patches),
		Spec:   meta.SpecPath(),
	}, nil
}

// Rebase switches to the queue branch (creating it at the baseline on
// demand) and replays it onto the freshly resolved baseline.
func (c *Controller) Rebase(ctx context.Context) (*RebaseOutcome, error) {
	current, err := c.git.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	base := current
	pq := ""
	var meta Metadata

	if c.namer.IsQueueBranch(current) {
		base, err = c.namer.Base(current)
		if err != nil {
			return nil, err
		}
		pq = current

		meta, err = c.loadTreeMeta(ctx, base)
		if err != nil {
			return nil, err
		}
	} else {
		meta, err = c.loadMeta(ctx)
		if err != nil {
			return nil, err
		}
	}

	version := meta.PackageVersion()
	if pq == "" {
		pq, err = c.namer.Name(base, version)
		if err != nil {
			return nil, err
		}
	}

	baseline, err := c.upstreamCommit(ctx, version)
	if err != nil {
		return nil, err
	}

	if !c.git.HasBranch(ctx, pq) {
		c.log.Info("creating patch queue branch", "branch", pq)
		if err := c.git.CreateBranch(ctx, pq, baseline, false); err != nil {
			return nil, err
		}
	}
	if current != pq {
		if err := c.git.Checkout(ctx, pq); err != nil {
			return nil, err
		}
	}

	if err := c.git.Rebase(ctx, baseline); err != nil {
		return nil, fmt.Errorf("rebase onto %s: %w", baseline, err)
	}

	return &RebaseOutcome{Branch: pq, Baseline: baseline}, nil
}

// Drop deletes the queue branch of the current branch pair. Running
// from the queue branch first switches back to the base.
func (c *Controller) Drop(ctx context.Context) (*DropOutcome, error) {
	current, err := c.git.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	base := current
	pq := ""

	if c.namer.IsQueueBranch(current) {
		base, err = c.namer.Base(current)
		if err != nil {
			return nil, err
		}
		pq = current

		c.log.Info("switching to base branch", "from", current, "to", base)
		if err := c.git.Checkout(ctx, base); err != nil {
			return nil, err
		}
	} else {
		meta, err := c.loadMeta(ctx)
		if err != nil {
			return nil, err
		}

		pq, err = c.namer.Name(base, meta.PackageVersion())
		if err != nil {
			return nil, err
		}
	}

	if !c.git.HasBranch(ctx, pq) {
		c.log.Info("no patch queue branch found, nothing to drop")

		return &DropOutcome{Branch: pq, Dropped: false}, nil
	}

	if err := c.git.DeleteBranch(ctx, pq); err != nil {
		return nil, err
	}
	c.log.Info("dropped branch", "branch", pq)

	return &DropOutcome{Branch: pq, Dropped: true}, nil
}

// Switch toggles between the base branch and the queue branch,
// creating the queue branch at the baseline on demand.
func (c *Controller) Switch(ctx context.Context) (*SwitchOutcome, error) {
	current, err := c.git.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	if c.namer.IsQueueBranch(current) {
		base, err := c.namer.Base(current)
		if err != nil {
			return nil, err
		}

		c.log.Info("switching to base branch", "branch", base)
		if err := c.git.Checkout(ctx, base); err != nil {
			return nil, err
		}

		return &SwitchOutcome{Branch: base}, nil
	}

	pq, created, err := c.ensureQueueBranch(ctx, current)
	if err != nil {
		return nil, err
	}
	c.log.Info("switching to patch queue branch", "branch", pq)

	return &SwitchOutcome{Branch: pq, Created: created}, nil
}

// Apply ensures the queue branch is checked out, then applies and
// commits one externally supplied patch file. External patches carry
// no packager attribution; the patch header or the repository
// identity wins.
func (c *Controller) Apply(
	ctx context.Context, patchPath string,
) (*ApplyOutcome, error) {

	if _, err := os.Stat(patchPath); err != nil {
		return nil, fmt.Errorf("patch file: %w", err)
	}

	current, err := c.git.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	pq := current
	if !c.namer.IsQueueBranch(current) {
		pq, _, err = c.ensureQueueBranch(ctx, current)
		if err != nil {
			return nil, err
		}
	}

	kind, err := series.CompressionForName(patchPath)
	if err != nil {
		return nil, err
	}

	p := &series.Patch{Path: patchPath, Compression: kind}
	if kind != series.CompressNone {
		staged, err := series.Stage(series.PatchSeries{p}, c.cfg.TmpDir)
		if err != nil {
			return nil, err
		}
		defer staged.Close()

		p = staged.Series[0]
	}

	if err := c.importer.applyOne(ctx, p, git.Signature{}); err != nil {
		return nil, err
	}
	c.log.Info("applied patch", "patch", p.Base())

	return &ApplyOutcome{Branch: pq, Patch: p.Base()}, nil
}

// Status reports the branch pair, the resolved baseline, and the
// recorded patch series without mutating anything.
func (c *Controller) Status(ctx context.Context) (*StatusOutcome, error) {
	current, err := c.git.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	base := current
	pq := ""
	onQueue := c.namer.IsQueueBranch(current)
	var meta Metadata

	if onQueue {
		base, err = c.namer.Base(current)
		if err != nil {
			return nil, err
		}
		pq = current

		meta, err = c.loadTreeMeta(ctx, base)
		if err != nil {
			return nil, err
		}
	} else {
		meta, err = c.loadMeta(ctx)
		if err != nil {
			return nil, err
		}
	}

	version := meta.PackageVersion()
	if pq == "" {
		pq, err = c.namer.Name(base, version)
		if err != nil {
			return nil, err
		}
	}

	out := &StatusOutcome{
		Branch:      current,
		Base:        base,
		Queue:       pq,
		OnQueue:     onQueue,
		QueueExists: onQueue || c.git.HasBranch(ctx, pq),
		Patches:     meta.PatchNames(),
	}

	// The baseline here is informational; a missing upstream tag is
	// not an error.
	if sha, err := c.upstreamCommit(ctx, version); err == nil {
		if short, err := c.git.ShortSHA(ctx, sha); err == nil {
			out.Baseline = short
		}
	}

	return out, nil
}

// ensureQueueBranch derives the queue branch for a base branch,
// creates it at the baseline when missing, and checks it out.
func (c *Controller) ensureQueueBranch(
	ctx context.Context, base string,
) (string, bool, error) {

	meta, err := c.loadMeta(ctx)
	if err != nil {
		return "", false, err
	}

	version := meta.PackageVersion()
	pq, err := c.namer.Name(base, version)
	if err != nil {
		return "", false, err
	}

	created := false
	if !c.git.HasBranch(ctx, pq) {
		baseline, err := c.upstreamCommit(ctx, version)
		if err != nil {
			return "", false, err
		}

		c.log.Info("creating patch queue branch", "branch", pq)
		if err := c.git.CreateBranch(ctx, pq, baseline, false); err != nil {
			return "", false, err
		}
		created = true
	}

	if err := c.git.Checkout(ctx, pq); err != nil {
		return "", false, err
	}

	return pq, created, nil
}

// loadMeta reads metadata from the working copy's packaging dir.
func (c *Controller) loadMeta(ctx context.Context) (Metadata, error) {
	root, err := c.git.Root(ctx)
	if err != nil {
		return nil, err
	}

	return c.meta.Load(
		filepath.Join(root, c.cfg.PackagingDir), c.specPreference(root),
	)
}

// loadTreeMeta reads metadata from the packaging dir as of a treeish,
// for actions that run while the working copy has no packaging dir.
func (c *Controller) loadTreeMeta(
	ctx context.Context, treeish string,
) (Metadata, error) {

	root, err := c.git.Root(ctx)
	if err != nil {
		return nil, err
	}

	return c.meta.LoadTree(
		ctx, treeish, c.cfg.PackagingDir, c.specPreference(root),
	)
}

// specPreference names the spec file the loader should try first: the
// configured name when set, else <repo-basename>.spec.
func (c *Controller) specPreference(root string) string {
	if name := c.cfg.SpecName(); name != "" {
		return name
	}

	return filepath.Base(root) + ".spec"
}

// upstreamCommit resolves the upstream tag for a version to a commit.
func (c *Controller) upstreamCommit(
	ctx context.Context, version string,
) (string, error) {

	tag, err := UpstreamTag(c.cfg.UpstreamTag, version, c.cfg.Vendor)
	if err != nil {
		return "", err
	}

	sha, err := c.git.ResolveCommit(ctx, tag)
	if err != nil {
		return "", fmt.Errorf(
			"couldn't find upstream version %s (tag %q)", version, tag,
		)
	}

	return sha, nil
}

// moveFile renames src to dst, copying when the rename crosses
// filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(src), err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(src), err)
	}

	return os.Remove(src)
}
