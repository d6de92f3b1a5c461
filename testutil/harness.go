// Package testutil provides real-git repository fixtures for tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// GitTestRepo creates a temporary git repository for testing.
type GitTestRepo struct {
	t   *testing.T
	Dir string
}

// NewGitTestRepo creates a new test repo with git initialized. The
// initial branch is always named main.
func NewGitTestRepo(t *testing.T) *GitTestRepo {
	t.Helper()

	dir, err := os.MkdirTemp("", "patchq-test-*")
	require.NoError(t, err)

	repo := &GitTestRepo{t: t, Dir: dir}
	t.Cleanup(repo.cleanup)

	repo.Git("-c", "init.defaultBranch=main", "init")
	repo.Git("config", "user.email", "test@test.com")
	repo.Git("config", "user.name", "Test User")

	return repo
}

func (r *GitTestRepo) cleanup() {
	os.RemoveAll(r.Dir)
}

// Git runs a git command in the test repo.
func (r *GitTestRepo) Git(args ...string) string {
	r.t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}

	return string(out)
}

// GitMayFail runs a git command that may fail, returning the error.
func (r *GitTestRepo) GitMayFail(args ...string) (string, error) {
	r.t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	out, err := cmd.CombinedOutput()

	return string(out), err
}

// WriteFile creates or overwrites a file in the repo.
func (r *GitTestRepo) WriteFile(path, content string) {
	r.t.Helper()

	fullPath := filepath.Join(r.Dir, path)
	dir := filepath.Dir(fullPath)

	err := os.MkdirAll(dir, 0755)
	require.NoError(r.t, err)

	err = os.WriteFile(fullPath, []byte(content), 0644)
	require.NoError(r.t, err)
}

// ReadFile reads a file from the repo.
func (r *GitTestRepo) ReadFile(path string) string {
	r.t.Helper()

	data, err := os.ReadFile(filepath.Join(r.Dir, path))
	require.NoError(r.t, err)

	return string(data)
}

// FileExists checks if a file exists in the repo.
func (r *GitTestRepo) FileExists(path string) bool {
	r.t.Helper()

	_, err := os.Stat(filepath.Join(r.Dir, path))

	return err == nil
}

// CommitAll stages and commits all changes.
func (r *GitTestRepo) CommitAll(msg string) {
	r.t.Helper()

	r.Git("add", "-A")
	r.Git("commit", "-m", msg)
}

// CommitAllBy stages and commits all changes attributed to an author
// given as "Name <email>".
func (r *GitTestRepo) CommitAllBy(msg, author string) {
	r.t.Helper()

	r.Git("add", "-A")
	r.Git("commit", "-m", msg, "--author", author)
}

// Head returns the full SHA of HEAD.
func (r *GitTestRepo) Head() string {
	r.t.Helper()

	return strings.TrimSpace(r.Git("rev-parse", "HEAD"))
}

// ShortSHA returns the abbreviated SHA of a revision.
func (r *GitTestRepo) ShortSHA(rev string) string {
	r.t.Helper()

	return strings.TrimSpace(r.Git("rev-parse", "--short", rev))
}

// TreeHash returns the tree object SHA of a revision. Two revisions
// with equal tree hashes hold identical content, whatever their
// commit metadata.
func (r *GitTestRepo) TreeHash(rev string) string {
	r.t.Helper()

	return strings.TrimSpace(r.Git("rev-parse", rev+"^{tree}"))
}

// Tag creates a lightweight tag at HEAD.
func (r *GitTestRepo) Tag(name string) {
	r.t.Helper()

	r.Git("tag", name)
}

// Branch creates a branch at the given start point without switching
// to it.
func (r *GitTestRepo) Branch(name, start string) {
	r.t.Helper()

	r.Git("branch", name, start)
}

// Checkout switches the working tree to a revision.
func (r *GitTestRepo) Checkout(rev string) {
	r.t.Helper()

	r.Git("checkout", "--quiet", rev)
}

// CurrentBranch returns the checked-out branch name.
func (r *GitTestRepo) CurrentBranch() string {
	r.t.Helper()

	return strings.TrimSpace(r.Git("rev-parse", "--abbrev-ref", "HEAD"))
}

// HasBranch checks whether a local branch exists.
func (r *GitTestRepo) HasBranch(name string) bool {
	r.t.Helper()

	_, err := r.GitMayFail(
		"show-ref", "--verify", "--quiet", "refs/heads/"+name,
	)

	return err == nil
}

// History returns one "author|email|subject" line per commit reachable
// from rev, oldest first.
func (r *GitTestRepo) History(rev string) []string {
	r.t.Helper()

	out := r.Git("log", "--reverse", "--format=%an|%ae|%s", rev)
	out = strings.TrimSpace(out)
	if out == "" {
		return nil
	}

	return strings.Split(out, "\n")
}

// ComparisonTest holds two repos driven through the same setup, so a
// tool operation in one can be checked against manual git commands in
// the other.
type ComparisonTest struct {
	t        *testing.T
	Expected *GitTestRepo
	Actual   *GitTestRepo
}

// NewComparisonTest creates two identical repos for comparison
// testing. The setup function is called on both repos to establish
// identical state.
func NewComparisonTest(
	t *testing.T, setup func(r *GitTestRepo),
) *ComparisonTest {

	t.Helper()

	expected := NewGitTestRepo(t)
	actual := NewGitTestRepo(t)

	setup(expected)
	setup(actual)

	return &ComparisonTest{
		t:        t,
		Expected: expected,
		Actual:   actual,
	}
}

// AssertSameContent verifies both repos have identical file contents.
func (c *ComparisonTest) AssertSameContent(paths ...string) {
	c.t.Helper()

	for _, path := range paths {
		exp := c.Expected.ReadFile(path)
		act := c.Actual.ReadFile(path)

		require.Equal(c.t, exp, act,
			"file %s differs between expected and actual", path)
	}
}

// AssertSameHistory verifies both repos reached the same commit
// history at rev: same authors and subjects, and the same tree.
// Commit SHAs are deliberately not compared; committer timestamps
// make them unstable.
func (c *ComparisonTest) AssertSameHistory(rev string) {
	c.t.Helper()

	require.Equal(c.t, c.Expected.History(rev), c.Actual.History(rev),
		"histories differ between expected and actual")
	require.Equal(c.t, c.Expected.TreeHash(rev), c.Actual.TreeHash(rev),
		"trees differ between expected and actual at %s", rev)
}
