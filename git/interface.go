// Package git wraps the git command line behind the Executor
// interface, keeping the patch queue engine independent of how
// repository operations actually run.
package git

import (
	"context"
	"io"
)

// Signature identifies the author of a commit. A zero Name and Email
// defers to the repository's configured identity.
type Signature struct {
	// Name is the author's full name.
	Name string

	// Email is the author's email address.
	Email string

	// Date is the author date in any format git accepts
	// (RFC 2822, ISO 8601, raw). Empty means "now".
	Date string
}

// IsZero reports whether the signature carries no identity at all.
func (s Signature) IsZero() bool {
	return s.Name == "" && s.Email == "" && s.Date == ""
}

// CommitInfo holds the metadata of a single commit.
type CommitInfo struct {
	// SHA is the full 40-character commit hash.
	SHA string

	// Author is the commit's author identity.
	Author Signature

	// Subject is the first line of the commit message.
	Subject string

	// SanitizedSubject is git's filename-safe mangling of the subject
	// (the %f format placeholder).
	SanitizedSubject string

	// Body is the message after the subject, trailers included.
	Body string
}

// Message reassembles the full commit message.
func (c CommitInfo) Message() string {
	if c.Body == "" {
		return c.Subject
	}

	return c.Subject + "\n\n" + c.Body
}

// Executor abstracts the git operations the patch queue engine
// consumes. Implementations treat every call as a single blocking
// operation; the engine provides no atomicity across calls.
type Executor interface {
	// Root returns the repository root directory.
	Root(ctx context.Context) (string, error)

	// HasTreeish reports whether the given revision resolves to any
	// object with a tree (commit, tag, or raw tree).
	HasTreeish(ctx context.Context, rev string) bool

	// RevParse resolves a revision to a full object SHA.
	RevParse(ctx context.Context, rev string) (string, error)

	// ResolveCommit resolves a revision to the SHA of a commit,
	// dereferencing tags. Fails if the revision does not point at a
	// commit (e.g. a raw tree).
	ResolveCommit(ctx context.Context, rev string) (string, error)

	// ShortSHA abbreviates a revision to git's short hash form.
	ShortSHA(ctx context.Context, rev string) (string, error)

	// MergeBase returns the best common ancestor of two commits.
	MergeBase(ctx context.Context, a, b string) (string, error)

	// Commits lists the commit SHAs in (start, end], newest first,
	// mirroring rev-list's default order.
	Commits(ctx context.Context, start, end string) ([]string, error)

	// MergeCommits lists only the merge commits in (start, end],
	// newest first.
	MergeCommits(ctx context.Context, start, end string) ([]string, error)

	// CommitInfo returns author and message metadata for a commit.
	CommitInfo(ctx context.Context, rev string) (CommitInfo, error)

	// CommitPaths lists the paths touched by a single commit.
	CommitPaths(ctx context.Context, rev string) ([]string, error)

	// ChangedPaths lists the paths that differ between two treeishes.
	ChangedPaths(ctx context.Context, a, b string) ([]string, error)

	// CommitDiff renders the unified diff introduced by a single
	// commit, limited to paths when non-empty.
	CommitDiff(ctx context.Context, rev string, paths ...string) (string, error)

	// DiffRange renders the unified diff between two treeishes,
	// limited to paths when non-empty.
	DiffRange(ctx context.Context, a, b string, paths ...string) (string, error)

	// ShowFile returns the content of path as of the given treeish.
	ShowFile(ctx context.Context, treeish, path string) (string, error)

	// ListTree lists the entries of a directory as of the given
	// treeish, names only, non-recursive.
	ListTree(ctx context.Context, treeish, dir string) ([]string, error)

	// CurrentBranch returns the name of the checked-out branch.
	CurrentBranch(ctx context.Context) (string, error)

	// HasBranch reports whether a local branch exists.
	HasBranch(ctx context.Context, name string) bool

	// CreateBranch creates a local branch at the given revision
	// without checking it out. With force, an existing branch is
	// moved instead of rejected.
	CreateBranch(ctx context.Context, name, at string, force bool) error

	// DeleteBranch removes a local branch regardless of merge state.
	DeleteBranch(ctx context.Context, name string) error

	// Checkout switches the working tree to the named branch.
	Checkout(ctx context.Context, name string) error

	// ForceHead hard-resets the current branch to the given revision.
	ForceHead(ctx context.Context, rev string) error

	// Rebase replays the current branch onto the given upstream.
	Rebase(ctx context.Context, upstream string) error

	// Apply applies a unified diff to the working tree and the index.
	Apply(ctx context.Context, patch io.Reader) error

	// Commit records the staged changes as a commit attributed to
	// author. A zero author uses the repository's configured identity.
	Commit(ctx context.Context, message string, author Signature) error

	// Status returns short-format status output, limited to paths
	// when non-empty.
	Status(ctx context.Context, paths ...string) (string, error)
}
