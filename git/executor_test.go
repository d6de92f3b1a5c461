package git_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roasbeef/patchq/git"
	"github.com/stretchr/testify/require"
)

// setupTestRepo creates a temporary git repository for testing.
func setupTestRepo(t *testing.T) (string, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "git-executor-test-*")
	require.NoError(t, err)

	cleanup := func() {
		os.RemoveAll(dir)
	}

	// Initialize git repo.
	gitCmd(t, dir, "init")
	gitCmd(t, dir, "config", "user.email", "test@test.com")
	gitCmd(t, dir, "config", "user.name", "Test User")

	return dir, cleanup
}

// headSHA returns the full SHA of HEAD.
func headSHA(t *testing.T, dir string) string {
	t.Helper()

	return strings.TrimSpace(gitCmd(t, dir, "rev-parse", "HEAD"))
}

func TestNewShellExecutor(t *testing.T) {
	executor := git.NewShellExecutor("/tmp")
	require.NotNil(t, executor)
	require.Equal(t, "/tmp", executor.WorkDir)

	executor = git.NewShellExecutor("")
	require.NotNil(t, executor)
	require.Empty(t, executor.WorkDir)
}

func TestShellExecutorRevisions(t *testing.T) {
	dir, cleanup := setupTestRepo(t)
	defer cleanup()

	writeFile(t, dir, "main.go", "package main\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "initial")
	head := headSHA(t, dir)

	executor := git.NewShellExecutor(dir)
	ctx := context.Background()

	// Plain rev-parse.
	sha, err := executor.RevParse(ctx, "HEAD")
	require.NoError(t, err)
	require.Equal(t, head, sha)

	// Unknown revisions fail.
	_, err = executor.RevParse(ctx, "no-such-rev")
	require.Error(t, err)

	// An annotated tag resolves to the tag object, but ResolveCommit
	// dereferences it down to the tagged commit.
	gitCmd(t, dir, "tag", "-a", "v1", "-m", "v1")
	tagSHA, err := executor.RevParse(ctx, "v1")
	require.NoError(t, err)
	require.NotEqual(t, head, tagSHA)

	commitSHA, err := executor.ResolveCommit(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, head, commitSHA)

	// A raw tree has no commit to resolve to.
	treeSHA := strings.TrimSpace(gitCmd(t, dir, "rev-parse", "HEAD^{tree}"))
	_, err = executor.ResolveCommit(ctx, treeSHA)
	require.Error(t, err)

	// But it still counts as a treeish.
	require.True(t, executor.HasTreeish(ctx, treeSHA))
	require.True(t, executor.HasTreeish(ctx, "HEAD"))
	require.False(t, executor.HasTreeish(ctx, "no-such-rev"))

	// Short SHAs are prefixes of the full SHA.
	short, err := executor.ShortSHA(ctx, "HEAD")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(head, short))
	require.Less(t, len(short), len(head))
}

func TestShellExecutorMergeBase(t *testing.T) {
	dir, cleanup := setupTestRepo(t)
	defer cleanup()

	writeFile(t, dir, "a.txt", "a\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "base")
	base := headSHA(t, dir)

	gitCmd(t, dir, "checkout", "-b", "feature")
	writeFile(t, dir, "b.txt", "b\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "feature work")

	gitCmd(t, dir, "checkout", "main")
	writeFile(t, dir, "c.txt", "c\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "main work")

	executor := git.NewShellExecutor(dir)
	ctx := context.Background()

	mb, err := executor.MergeBase(ctx, "main", "feature")
	require.NoError(t, err)
	require.Equal(t, base, mb)
}

func TestShellExecutorCommitListing(t *testing.T) {
	dir, cleanup := setupTestRepo(t)
	defer cleanup()

	writeFile(t, dir, "a.txt", "a\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "base")
	base := headSHA(t, dir)

	writeFile(t, dir, "a.txt", "a2\n")
	gitCmd(t, dir, "commit", "-am", "second")
	second := headSHA(t, dir)

	writeFile(t, dir, "a.txt", "a3\n")
	gitCmd(t, dir, "commit", "-am", "third")
	third := headSHA(t, dir)

	executor := git.NewShellExecutor(dir)
	ctx := context.Background()

	// Listing follows rev-list order: newest first, base excluded.
	commits, err := executor.Commits(ctx, base, "HEAD")
	require.NoError(t, err)
	require.Equal(t, []string{third, second}, commits)

	// Empty range yields no commits.
	commits, err = executor.Commits(ctx, "HEAD", "HEAD")
	require.NoError(t, err)
	require.Empty(t, commits)

	// Only merge commits survive the merge filter.
	gitCmd(t, dir, "checkout", "-b", "topic", base)
	writeFile(t, dir, "b.txt", "b\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "topic work")
	gitCmd(t, dir, "checkout", "main")
	gitCmd(t, dir, "merge", "--no-ff", "-m", "merge topic", "topic")
	merge := headSHA(t, dir)

	merges, err := executor.MergeCommits(ctx, base, "HEAD")
	require.NoError(t, err)
	require.Equal(t, []string{merge}, merges)
}

func TestShellExecutorCommitInfo(t *testing.T) {
	dir, cleanup := setupTestRepo(t)
	defer cleanup()

	writeFile(t, dir, "a.txt", "a\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(
		t, dir, "commit", "-m", "Add widget support",
		"-m", "Long description here.\n\nSecond paragraph.",
	)

	executor := git.NewShellExecutor(dir)
	ctx := context.Background()

	info, err := executor.CommitInfo(ctx, "HEAD")
	require.NoError(t, err)
	require.Equal(t, headSHA(t, dir), info.SHA)
	require.Equal(t, "Test User", info.Author.Name)
	require.Equal(t, "test@test.com", info.Author.Email)
	require.NotEmpty(t, info.Author.Date)
	require.Equal(t, "Add widget support", info.Subject)
	require.Equal(t, "Add-widget-support", info.SanitizedSubject)
	require.Equal(
		t, "Long description here.\n\nSecond paragraph.", info.Body,
	)
	require.Contains(t, info.Message(), "Add widget support\n\n")

	// Subject-only commits have an empty body.
	writeFile(t, dir, "a.txt", "a2\n")
	gitCmd(t, dir, "commit", "-am", "terse")

	info, err = executor.CommitInfo(ctx, "HEAD")
	require.NoError(t, err)
	require.Equal(t, "terse", info.Subject)
	require.Empty(t, info.Body)
	require.Equal(t, "terse", info.Message())
}

func TestShellExecutorPathsAndDiffs(t *testing.T) {
	dir, cleanup := setupTestRepo(t)
	defer cleanup()

	writeFile(t, dir, "src.go", "package main\n")
	writeFile(t, dir, "doc.md", "docs\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "initial")
	base := headSHA(t, dir)

	writeFile(t, dir, "src.go", "package main\n\nfunc main() {}\n")
	writeFile(t, dir, "doc.md", "docs\nmore docs\n")
	gitCmd(t, dir, "commit", "-am", "touch both")

	executor := git.NewShellExecutor(dir)
	ctx := context.Background()

	paths, err := executor.CommitPaths(ctx, "HEAD")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"src.go", "doc.md"}, paths)

	changed, err := executor.ChangedPaths(ctx, base, "HEAD")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"src.go", "doc.md"}, changed)

	// Unrestricted commit diff mentions both files and carries a
	// diffstat ahead of the patch body.
	diffText, err := executor.CommitDiff(ctx, "HEAD")
	require.NoError(t, err)
	require.Contains(t, diffText, "diff --git a/src.go b/src.go")
	require.Contains(t, diffText, "diff --git a/doc.md b/doc.md")
	require.Contains(t, diffText, "2 files changed")

	// Path-limited commit diff drops the other file.
	diffText, err = executor.CommitDiff(ctx, "HEAD", "src.go")
	require.NoError(t, err)
	require.Contains(t, diffText, "src.go")
	require.NotContains(t, diffText, "doc.md")

	// Range diffs behave the same way.
	diffText, err = executor.DiffRange(ctx, base, "HEAD", "doc.md")
	require.NoError(t, err)
	require.Contains(t, diffText, "+more docs")
	require.NotContains(t, diffText, "src.go")
}

func TestShellExecutorShowFileAndListTree(t *testing.T) {
	dir, cleanup := setupTestRepo(t)
	defer cleanup()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0755))
	writeFile(t, dir, "pkg/one.txt", "one\n")
	writeFile(t, dir, "pkg/two.txt", "two\n")
	writeFile(t, dir, "top.txt", "top\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "initial")

	// File content changes after the commit should not leak into
	// tree reads.
	writeFile(t, dir, "top.txt", "modified\n")

	executor := git.NewShellExecutor(dir)
	ctx := context.Background()

	content, err := executor.ShowFile(ctx, "HEAD", "top.txt")
	require.NoError(t, err)
	require.Equal(t, "top\n", content)

	_, err = executor.ShowFile(ctx, "HEAD", "missing.txt")
	require.Error(t, err)

	entries, err := executor.ListTree(ctx, "HEAD", "pkg")
	require.NoError(t, err)
	require.Equal(t, []string{"one.txt", "two.txt"}, entries)

	entries, err = executor.ListTree(ctx, "HEAD", "")
	require.NoError(t, err)
	require.Contains(t, entries, "top.txt")
	require.Contains(t, entries, "pkg")
}

func TestShellExecutorBranches(t *testing.T) {
	dir, cleanup := setupTestRepo(t)
	defer cleanup()

	writeFile(t, dir, "a.txt", "a\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "base")
	base := headSHA(t, dir)

	writeFile(t, dir, "a.txt", "a2\n")
	gitCmd(t, dir, "commit", "-am", "second")

	executor := git.NewShellExecutor(dir)
	ctx := context.Background()

	branch, err := executor.CurrentBranch(ctx)
	require.NoError(t, err)
	require.Equal(t, "main", branch)

	require.True(t, executor.HasBranch(ctx, "main"))
	require.False(t, executor.HasBranch(ctx, "development/main"))

	// Creating a branch does not switch to it.
	err = executor.CreateBranch(ctx, "development/main", base, false)
	require.NoError(t, err)
	require.True(t, executor.HasBranch(ctx, "development/main"))

	branch, err = executor.CurrentBranch(ctx)
	require.NoError(t, err)
	require.Equal(t, "main", branch)

	// Without force, re-creating fails; with force, the branch moves.
	err = executor.CreateBranch(ctx, "development/main", "HEAD", false)
	require.Error(t, err)

	err = executor.CreateBranch(ctx, "development/main", "HEAD", true)
	require.NoError(t, err)

	moved, err := executor.RevParse(ctx, "development/main")
	require.NoError(t, err)
	require.Equal(t, headSHA(t, dir), moved)

	err = executor.Checkout(ctx, "development/main")
	require.NoError(t, err)

	branch, err = executor.CurrentBranch(ctx)
	require.NoError(t, err)
	require.Equal(t, "development/main", branch)

	// Deleting the checked-out branch is git's own error.
	err = executor.DeleteBranch(ctx, "development/main")
	require.Error(t, err)

	err = executor.Checkout(ctx, "main")
	require.NoError(t, err)

	err = executor.DeleteBranch(ctx, "development/main")
	require.NoError(t, err)
	require.False(t, executor.HasBranch(ctx, "development/main"))
}

func TestShellExecutorForceHead(t *testing.T) {
	dir, cleanup := setupTestRepo(t)
	defer cleanup()

	writeFile(t, dir, "a.txt", "a\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "base")
	base := headSHA(t, dir)

	writeFile(t, dir, "a.txt", "a2\n")
	gitCmd(t, dir, "commit", "-am", "second")

	executor := git.NewShellExecutor(dir)
	ctx := context.Background()

	err := executor.ForceHead(ctx, base)
	require.NoError(t, err)
	require.Equal(t, base, headSHA(t, dir))

	// The working tree is reset along with the ref.
	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "a\n", string(content))
}

func TestShellExecutorRebase(t *testing.T) {
	dir, cleanup := setupTestRepo(t)
	defer cleanup()

	writeFile(t, dir, "a.txt", "a\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "base")
	base := headSHA(t, dir)

	gitCmd(t, dir, "checkout", "-b", "queue", base)
	writeFile(t, dir, "b.txt", "b\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "queued work")

	gitCmd(t, dir, "checkout", "main")
	writeFile(t, dir, "c.txt", "c\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "new base work")
	newBase := headSHA(t, dir)

	gitCmd(t, dir, "checkout", "queue")

	executor := git.NewShellExecutor(dir)
	ctx := context.Background()

	err := executor.Rebase(ctx, "main")
	require.NoError(t, err)

	// The rebased branch now sits directly on top of main.
	mb, err := executor.MergeBase(ctx, "main", "queue")
	require.NoError(t, err)
	require.Equal(t, newBase, mb)

	log := gitCmd(t, dir, "log", "--oneline")
	require.Contains(t, log, "queued work")
	require.Contains(t, log, "new base work")
}

func TestShellExecutorApplyAndCommit(t *testing.T) {
	dir, cleanup := setupTestRepo(t)
	defer cleanup()

	writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "initial")

	executor := git.NewShellExecutor(dir)
	ctx := context.Background()

	patch := `--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
 package main

+// Added via patch.
 func main() {}
`

	err := executor.Apply(ctx, strings.NewReader(patch))
	require.NoError(t, err)

	// The patch lands in both the working tree and the index.
	staged := gitCmd(t, dir, "diff", "--cached")
	require.Contains(t, staged, "+// Added via patch.")

	author := git.Signature{
		Name:  "Patch Author",
		Email: "author@example.com",
		Date:  "Thu, 15 Jan 2026 10:00:00 +0000",
	}
	err = executor.Commit(ctx, "apply widget patch", author)
	require.NoError(t, err)

	log := gitCmd(t, dir, "log", "-1", "--format=%an|%ae|%s")
	require.Equal(
		t, "Patch Author|author@example.com|apply widget patch",
		strings.TrimSpace(log),
	)

	// A zero signature falls back to the repository identity.
	writeFile(t, dir, "main.go", "package main\n\n// edited\nfunc main() {}\n")
	gitCmd(t, dir, "add", "-A")
	err = executor.Commit(ctx, "repo identity", git.Signature{})
	require.NoError(t, err)

	log = gitCmd(t, dir, "log", "-1", "--format=%an")
	require.Equal(t, "Test User", strings.TrimSpace(log))

	// Malformed patches are rejected.
	err = executor.Apply(ctx, strings.NewReader("not a patch\n"))
	require.Error(t, err)
}

func TestShellExecutorStatus(t *testing.T) {
	dir, cleanup := setupTestRepo(t)
	defer cleanup()

	writeFile(t, dir, "tracked.txt", "a\n")
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "-m", "initial")

	executor := git.NewShellExecutor(dir)
	ctx := context.Background()

	status, err := executor.Status(ctx)
	require.NoError(t, err)
	require.Empty(t, status)

	writeFile(t, dir, "tracked.txt", "a2\n")
	writeFile(t, dir, "untracked.txt", "new\n")

	status, err = executor.Status(ctx)
	require.NoError(t, err)
	require.Contains(t, status, " M tracked.txt")
	require.Contains(t, status, "?? untracked.txt")

	// Path limiting drops everything else.
	status, err = executor.Status(ctx, "tracked.txt")
	require.NoError(t, err)
	require.NotContains(t, status, "untracked.txt")
}

func TestShellExecutorRoot(t *testing.T) {
	dir, cleanup := setupTestRepo(t)
	defer cleanup()

	// Create subdirectory.
	subdir := filepath.Join(dir, "subdir")
	require.NoError(t, os.MkdirAll(subdir, 0755))

	executor := git.NewShellExecutor(subdir)
	ctx := context.Background()

	root, err := executor.Root(ctx)
	require.NoError(t, err)

	// Resolve symlinks for comparison (macOS /var -> /private/var).
	expectedDir, _ := filepath.EvalSymlinks(dir)
	actualRoot, _ := filepath.EvalSymlinks(root)
	require.Equal(t, expectedDir, actualRoot)
}

func TestShellExecutorErrorHandling(t *testing.T) {
	// Non-existent directory.
	executor := git.NewShellExecutor("/nonexistent/path/that/does/not/exist")
	ctx := context.Background()

	_, err := executor.Status(ctx)
	require.Error(t, err)
}

// Helper functions.

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()

	// Handle init specially to set default branch.
	if args[0] == "init" {
		args = append([]string{"-c", "init.defaultBranch=main"}, args...)
	}

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Logf("git %v failed: %v\n%s", args, err, out)
	}

	return string(out)
}
