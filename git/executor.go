package git

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ShellExecutor implements Executor by shelling out to git.
type ShellExecutor struct {
	// WorkDir is the working directory for git commands.
	// If empty, uses current directory.
	WorkDir string
}

// NewShellExecutor creates a new ShellExecutor.
func NewShellExecutor(workDir string) *ShellExecutor {
	return &ShellExecutor{WorkDir: workDir}
}

// run executes a git command and returns stdout.
func (e *ShellExecutor) run(
	ctx context.Context, stdin io.Reader, args ...string,
) (string, error) {

	return e.runEnv(ctx, stdin, nil, args...)
}

// runEnv executes a git command with extra environment variables
// appended to the inherited environment.
func (e *ShellExecutor) runEnv(
	ctx context.Context, stdin io.Reader, env []string, args ...string,
) (string, error) {

	cmd := exec.CommandContext(ctx, "git", args...)
	if e.WorkDir != "" {
		cmd.Dir = e.WorkDir
	}
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = stdin

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf(
			"git %s failed: %w: %s",
			strings.Join(args, " "), err, stderr.String(),
		)
	}

	return stdout.String(), nil
}

// splitLines splits command output into lines, dropping the trailing
// newline. Empty output yields nil.
func splitLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	return strings.Split(s, "\n")
}

// Root returns the repository root directory.
func (e *ShellExecutor) Root(ctx context.Context) (string, error) {
	output, err := e.run(ctx, nil, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(output), nil
}

// HasTreeish reports whether rev resolves to an object with a tree.
func (e *ShellExecutor) HasTreeish(ctx context.Context, rev string) bool {
	_, err := e.run(
		ctx, nil, "rev-parse", "--verify", "--quiet", rev+"^{tree}",
	)

	return err == nil
}

// RevParse resolves a revision to a full object SHA.
func (e *ShellExecutor) RevParse(
	ctx context.Context, rev string,
) (string, error) {

	output, err := e.run(ctx, nil, "rev-parse", "--verify", rev)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(output), nil
}

// ResolveCommit resolves a revision to a commit SHA. The ^0 suffix
// makes git dereference tags and reject non-commit objects.
func (e *ShellExecutor) ResolveCommit(
	ctx context.Context, rev string,
) (string, error) {

	output, err := e.run(ctx, nil, "rev-parse", "--verify", rev+"^0")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(output), nil
}

// ShortSHA abbreviates a revision to git's short hash form.
func (e *ShellExecutor) ShortSHA(
	ctx context.Context, rev string,
) (string, error) {

	output, err := e.run(ctx, nil, "rev-parse", "--short", rev)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(output), nil
}

// MergeBase returns the best common ancestor of two commits.
func (e *ShellExecutor) MergeBase(
	ctx context.Context, a, b string,
) (string, error) {

	output, err := e.run(ctx, nil, "merge-base", a, b)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(output), nil
}

// Commits lists the commit SHAs in (start, end], newest first.
func (e *ShellExecutor) Commits(
	ctx context.Context, start, end string,
) ([]string, error) {

	output, err := e.run(ctx, nil, "rev-list", start+".."+end)
	if err != nil {
		return nil, err
	}

	return splitLines(output), nil
}

// MergeCommits lists only the merge commits in (start, end],
// newest first.
func (e *ShellExecutor) MergeCommits(
	ctx context.Context, start, end string,
) ([]string, error) {

	output, err := e.run(ctx, nil, "rev-list", "--merges", start+".."+end)
	if err != nil {
		return nil, err
	}

	return splitLines(output), nil
}

// commitFormat extracts hash, author, and message fields separated by
// the ASCII unit separator, which cannot appear in any of them. The
// body comes last since it is the only multi-line field.
const commitFormat = "%H%x1f%an%x1f%ae%x1f%aD%x1f%s%x1f%f%x1f%b"

// CommitInfo returns author and message metadata for a commit.
func (e *ShellExecutor) CommitInfo(
	ctx context.Context, rev string,
) (CommitInfo, error) {

	output, err := e.run(
		ctx, nil, "show", "-s", "--format="+commitFormat, rev,
	)
	if err != nil {
		return CommitInfo{}, err
	}

	parts := strings.SplitN(output, "\x1f", 7)
	if len(parts) != 7 {
		return CommitInfo{}, fmt.Errorf(
			"unexpected commit metadata for %q: %q", rev, output,
		)
	}

	return CommitInfo{
		SHA: parts[0],
		Author: Signature{
			Name:  parts[1],
			Email: parts[2],
			Date:  parts[3],
		},
		Subject:          parts[4],
		SanitizedSubject: parts[5],
		Body:             strings.TrimRight(parts[6], "\n"),
	}, nil
}

// CommitPaths lists the paths touched by a single commit.
func (e *ShellExecutor) CommitPaths(
	ctx context.Context, rev string,
) ([]string, error) {

	output, err := e.run(
		ctx, nil, "diff-tree", "--no-commit-id", "--name-only",
		"--root", "-r", rev,
	)
	if err != nil {
		return nil, err
	}

	return splitLines(output), nil
}

// ChangedPaths lists the paths that differ between two treeishes.
func (e *ShellExecutor) ChangedPaths(
	ctx context.Context, a, b string,
) ([]string, error) {

	output, err := e.run(ctx, nil, "diff", "--name-only", a, b)
	if err != nil {
		return nil, err
	}

	return splitLines(output), nil
}

// diffArgs are the flags shared by patch-producing diffs: a diffstat
// ahead of the patch body, binary-safe text handling, and rename
// detection off so every hunk applies as a plain add or delete.
var diffArgs = []string{
	"-c", "diff.renames=false", "diff", "-p", "--stat=80",
	"--summary", "--text", "--no-color", "--no-ext-diff",
}

// CommitDiff renders the unified diff introduced by a single commit.
// The ^! range selects the commit against its parents.
func (e *ShellExecutor) CommitDiff(
	ctx context.Context, rev string, paths ...string,
) (string, error) {

	args := append([]string{}, diffArgs...)
	args = append(args, rev+"^!")
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	return e.run(ctx, nil, args...)
}

// DiffRange renders the unified diff between two treeishes.
func (e *ShellExecutor) DiffRange(
	ctx context.Context, a, b string, paths ...string,
) (string, error) {

	args := append([]string{}, diffArgs...)
	args = append(args, a, b)
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	return e.run(ctx, nil, args...)
}

// ShowFile returns the content of path as of the given treeish.
func (e *ShellExecutor) ShowFile(
	ctx context.Context, treeish, path string,
) (string, error) {

	return e.run(ctx, nil, "show", treeish+":"+path)
}

// ListTree lists the entries of dir as of the given treeish. An empty
// dir lists the tree root.
func (e *ShellExecutor) ListTree(
	ctx context.Context, treeish, dir string,
) ([]string, error) {

	output, err := e.run(
		ctx, nil, "ls-tree", "--name-only", treeish+":"+dir,
	)
	if err != nil {
		return nil, err
	}

	return splitLines(output), nil
}

// CurrentBranch returns the name of the checked-out branch, or "HEAD"
// when detached.
func (e *ShellExecutor) CurrentBranch(ctx context.Context) (string, error) {
	output, err := e.run(ctx, nil, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(output), nil
}

// HasBranch reports whether a local branch exists.
func (e *ShellExecutor) HasBranch(ctx context.Context, name string) bool {
	_, err := e.run(
		ctx, nil, "show-ref", "--verify", "--quiet",
		"refs/heads/"+name,
	)

	return err == nil
}

// CreateBranch creates a local branch at the given revision without
// checking it out.
func (e *ShellExecutor) CreateBranch(
	ctx context.Context, name, at string, force bool,
) error {

	args := []string{"branch"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, name, at)

	_, err := e.run(ctx, nil, args...)

	return err
}

// DeleteBranch removes a local branch regardless of merge state.
func (e *ShellExecutor) DeleteBranch(ctx context.Context, name string) error {
	_, err := e.run(ctx, nil, "branch", "-D", name)

	return err
}

// Checkout switches the working tree to the named branch.
func (e *ShellExecutor) Checkout(ctx context.Context, name string) error {
	_, err := e.run(ctx, nil, "checkout", name)

	return err
}

// ForceHead hard-resets the current branch to the given revision.
func (e *ShellExecutor) ForceHead(ctx context.Context, rev string) error {
	_, err := e.run(ctx, nil, "reset", "--hard", rev)

	return err
}

// Rebase replays the current branch onto the given upstream.
func (e *ShellExecutor) Rebase(ctx context.Context, upstream string) error {
	_, err := e.run(ctx, nil, "rebase", upstream)

	return err
}

// Apply applies a unified diff to the working tree and the index.
func (e *ShellExecutor) Apply(ctx context.Context, patch io.Reader) error {
	_, err := e.run(ctx, patch, "apply", "--index", "-")

	return err
}

// Commit records the staged changes as a commit attributed to author.
// Identity fields are passed through the author environment variables
// so that unset fields fall back to the repository's configuration.
func (e *ShellExecutor) Commit(
	ctx context.Context, message string, author Signature,
) error {

	var env []string
	if author.Name != "" {
		env = append(env, "GIT_AUTHOR_NAME="+author.Name)
	}
	if author.Email != "" {
		env = append(env, "GIT_AUTHOR_EMAIL="+author.Email)
	}
	if author.Date != "" {
		env = append(env, "GIT_AUTHOR_DATE="+author.Date)
	}

	_, err := e.runEnv(ctx, nil, env, "commit", "-m", message)

	return err
}

// Status returns short-format status output.
func (e *ShellExecutor) Status(
	ctx context.Context, paths ...string,
) (string, error) {

	args := []string{"status", "--short"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	return e.run(ctx, nil, args...)
}

// Compile-time check that ShellExecutor implements Executor.
var _ Executor = (*ShellExecutor)(nil)
