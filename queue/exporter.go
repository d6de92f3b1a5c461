package queue

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/roasbeef/patchq/git"
	"github.com/roasbeef/patchq/series"
)

// ExportRequest describes one run of the exporter.
type ExportRequest struct {
	// Baseline is the treeish the series starts after, usually the
	// upstream tag. It must be an ancestor of the end commit.
	Baseline string

	// End is the treeish the series runs to, usually the patch queue
	// branch. When it does not resolve to a commit the branch tip
	// stands in and a trailing diff down to End is appended.
	End string

	// Squash collapses (Baseline, commit-ish] into one monolithic
	// diff first. Syntax: commit-ish[:basename]. The commit-ish
	// "HEAD" aliases the effective end commit.
	Squash string

	// IgnoreRx excludes matching paths from every diff. Nil keeps
	// everything.
	IgnoreRx *regexp.Regexp

	// CompressThreshold is the size in bytes above which emitted
	// patches are gzip-compressed. Zero disables compression.
	CompressThreshold int64

	// OutDir is the directory patch files are written into.
	OutDir string

	// Numbered adds NNNN- ordering prefixes to per-commit patch
	// names.
	Numbered bool

	// CommandTag is the trailer tag carrying patch directives.
	CommandTag string
}

// ExportResult is the ordered series an export produced, plus the
// directive lists keyed by final patch basename. Only per-commit
// patches have directive entries; monolithic diffs never do.
type ExportResult struct {
	Series     series.PatchSeries
	Directives map[string][]series.Directive
}

// Exporter converts a commit range into an ordered series of patch
// files.
type Exporter struct {
	git git.Executor
	log *log.Logger
}

// NewExporter creates an exporter over the given repository.
func NewExporter(g git.Executor, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Exporter{git: g, log: logger}
}

// Export walks (Baseline, End], applying squash and merge-collapse
// rules, and writes one patch file per remaining commit into OutDir.
// Commits whose directives contain ignore are skipped. Patch files
// over the compression threshold are gzipped in place.
func (e *Exporter) Export(
	ctx context.Context, req ExportRequest,
) (*ExportResult, error) {

	if !e.git.HasTreeish(ctx, req.Baseline) {
		return nil, fmt.Errorf(
			"%w: %q does not resolve", ErrInvalidRange, req.Baseline,
		)
	}
	if !e.git.HasTreeish(ctx, req.End) {
		return nil, fmt.Errorf(
			"%w: %q does not resolve", ErrInvalidRange, req.End,
		)
	}

	start, err := e.git.ResolveCommit(ctx, req.Baseline)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: baseline %q is not a commit", ErrInvalidRange, req.Baseline,
		)
	}

	// A non-commit treeish as the end means the branch tip is the
	// effective end commit; the remainder down to the requested tree
	// is covered by a trailing diff after the per-commit patches.
	endCommit := req.End
	if _, err := e.git.ResolveCommit(ctx, endCommit); err != nil {
		endCommit = "HEAD"
	}

	mergeBase, err := e.git.MergeBase(ctx, start, endCommit)
	if err != nil || mergeBase != start {
		return nil, fmt.Errorf(
			"%w: %q is not an ancestor of %q",
			ErrNotAncestor, req.Baseline, req.End,
		)
	}

	res := &ExportResult{}
	taken := make(map[string]bool)
	var perCommit series.PatchSeries

	if req.Squash != "" {
		start, err = e.squash(ctx, req, res, start, endCommit, taken)
		if err != nil {
			return nil, err
		}
	}

	start, err = e.collapseMerges(ctx, req, res, start, endCommit, taken)
	if err != nil {
		return nil, err
	}

	commits, err := e.git.Commits(ctx, start, endCommit)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}

	// Oldest first.
	for i := len(commits) - 1; i >= 0; i-- {
		info, err := e.git.CommitInfo(ctx, commits[i])
		if err != nil {
			return nil, fmt.Errorf("commit %s: %w", commits[i], err)
		}

		directives, body, err := series.ParseMessage(
			info.Body, req.CommandTag,
		)
		if err != nil {
			return nil, fmt.Errorf("commit %s: %w", info.SHA, err)
		}

		if series.HasIgnore(directives) {
			e.log.Info("ignoring commit", "sha", info.SHA)

			continue
		}

		p, err := e.emitCommit(
			ctx, req, info, body, len(res.Series)+1, taken,
		)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}

		p.Directives = directives
		res.Series = append(res.Series, p)
		perCommit = append(perCommit, p)
	}

	if endCommit != req.End {
		e.log.Info(
			"generating trailing diff",
			"range", endCommit+".."+req.End,
		)

		p, err := e.emitDiff(ctx, req, endCommit, req.End, "", taken)
		if err != nil {
			return nil, err
		}
		if p != nil {
			res.Series = append(res.Series, p)
		}
	}

	if err := e.compress(req, res.Series); err != nil {
		return nil, err
	}

	// The directive map is keyed by the final basenames, compression
	// suffix included.
	res.Directives = make(map[string][]series.Directive)
	for _, p := range perCommit {
		res.Directives[p.Base()] = p.Directives
	}

	return res, nil
}

// squash emits the monolithic (start, squash-point] diff and returns
// the advanced start.
func (e *Exporter) squash(
	ctx context.Context, req ExportRequest, res *ExportResult,
	start, endCommit string, taken map[string]bool,
) (string, error) {

	rev, basename, _ := strings.Cut(req.Squash, ":")
	if rev == "HEAD" {
		rev = endCommit
	}

	sha, err := e.git.ResolveCommit(ctx, rev)
	if err != nil {
		return "", fmt.Errorf(
			"%w: %q does not resolve to a commit",
			ErrInvalidSquashPoint, rev,
		)
	}
	if sha == start {
		return start, nil
	}

	commits, err := e.git.Commits(ctx, start, endCommit)
	if err != nil {
		return "", fmt.Errorf("list commits: %w", err)
	}
	if !slices.Contains(commits, sha) {
		return "", fmt.Errorf(
			"%w: %q not in the history of %q",
			ErrInvalidSquashPoint, rev, endCommit,
		)
	}

	shortStart, err := e.git.ShortSHA(ctx, start)
	if err != nil {
		return "", err
	}
	shortSquash, err := e.git.ShortSHA(ctx, sha)
	if err != nil {
		return "", err
	}

	e.log.Info(
		"squashing commits into one monolithic diff",
		"range", shortStart+".."+shortSquash,
	)

	name := ""
	if basename != "" {
		name = basename + ".diff"
	}

	p, err := e.emitDiff(ctx, req, shortStart, shortSquash, name, taken)
	if err != nil {
		return "", err
	}
	if p != nil {
		res.Series = append(res.Series, p)
	}

	return sha, nil
}

// collapseMerges folds everything up to the most recent merge commit
// into one monolithic diff and returns the advanced start. Ranges
// without merges pass through untouched.
func (e *Exporter) collapseMerges(
	ctx context.Context, req ExportRequest, res *ExportResult,
	start, endCommit string, taken map[string]bool,
) (string, error) {

	merges, err := e.git.MergeCommits(ctx, start, endCommit)
	if err != nil {
		return "", fmt.Errorf("list merges: %w", err)
	}
	if len(merges) == 0 {
		return start, nil
	}

	shortStart, err := e.git.ShortSHA(ctx, start)
	if err != nil {
		return "", err
	}
	shortMerge, err := e.git.ShortSHA(ctx, merges[0])
	if err != nil {
		return "", err
	}

	e.log.Info(
		"merge commits found, writing range into one monolithic diff",
		"range", shortStart+".."+shortMerge,
	)

	p, err := e.emitDiff(ctx, req, shortStart, shortMerge, "", taken)
	if err != nil {
		return "", err
	}
	if p != nil {
		res.Series = append(res.Series, p)
	}

	return merges[0], nil
}

// emitCommit writes one commit as an mbox-style patch file. Returns
// nil without error when the filtered diff is empty.
func (e *Exporter) emitCommit(
	ctx context.Context, req ExportRequest, info git.CommitInfo,
	body string, position int, taken map[string]bool,
) (*series.Patch, error) {

	var paths []string
	if req.IgnoreRx != nil {
		all, err := e.git.CommitPaths(ctx, info.SHA)
		if err != nil {
			return nil, fmt.Errorf("commit %s: %w", info.SHA, err)
		}

		paths = keepPaths(all, req.IgnoreRx)
		if len(paths) == 0 {
			return nil, nil
		}
	}

	diff, err := e.git.CommitDiff(ctx, info.SHA, paths...)
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", info.SHA, err)
	}
	if strings.TrimSpace(diff) == "" {
		return nil, nil
	}

	base := info.SanitizedSubject
	if base == "" {
		base, err = e.git.ShortSHA(ctx, info.SHA)
		if err != nil {
			return nil, err
		}
	}

	name := series.UniqueName(
		series.PatchFileName(base, position, req.Numbered), taken,
	)

	path := filepath.Join(req.OutDir, name)
	content := series.FormatPatch(info, body, diff)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	taken[name] = true

	return &series.Patch{Path: path}, nil
}

// emitDiff writes the diff between two treeishes as a bare .diff file.
// Returns nil without error when the filtered diff is empty.
func (e *Exporter) emitDiff(
	ctx context.Context, req ExportRequest, a, b, name string,
	taken map[string]bool,
) (*series.Patch, error) {

	var paths []string
	if req.IgnoreRx != nil {
		all, err := e.git.ChangedPaths(ctx, a, b)
		if err != nil {
			return nil, fmt.Errorf("diff %s..%s: %w", a, b, err)
		}

		paths = keepPaths(all, req.IgnoreRx)
		if len(paths) == 0 {
			return nil, nil
		}
	}

	diff, err := e.git.DiffRange(ctx, a, b, paths...)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", a, b, err)
	}
	if strings.TrimSpace(diff) == "" {
		return nil, nil
	}

	if name == "" {
		name = series.DiffFileName(a, b)
	}
	name = series.UniqueName(name, taken)

	path := filepath.Join(req.OutDir, name)
	if err := os.WriteFile(path, []byte(diff), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	taken[name] = true

	return &series.Patch{Path: path}, nil
}

// compress gzips every emitted patch over the threshold, updating the
// series entries in place.
func (e *Exporter) compress(req ExportRequest, s series.PatchSeries) error {
	if req.CompressThreshold <= 0 {
		return nil
	}

	for _, p := range s {
		path, kind, err := series.Compress(p.Path, req.CompressThreshold)
		if err != nil {
			return fmt.Errorf("compress %s: %w", p.Base(), err)
		}

		if kind != series.CompressNone {
			e.log.Debug("compressed patch", "patch", filepath.Base(path))
		}

		p.Path = path
		p.Compression = kind
	}

	return nil
}

// keepPaths filters out the paths matching the exclusion regexp.
func keepPaths(paths []string, rx *regexp.Regexp) []string {
	var kept []string
	for _, p := range paths {
		if !rx.MatchString(p) {
			kept = append(kept, p)
		}
	}

	return kept
}
