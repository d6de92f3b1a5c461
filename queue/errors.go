package queue

import (
	"errors"

	"github.com/roasbeef/patchq/series"
)

var (
	// ErrConfig reports an invalid option, template or placeholder.
	ErrConfig = errors.New("invalid configuration")

	// ErrInvalidRange reports an export range whose endpoints do not
	// resolve.
	ErrInvalidRange = errors.New("invalid commit range")

	// ErrNotAncestor reports an export whose baseline is not an
	// ancestor of the end commit.
	ErrNotAncestor = errors.New("not an ancestor")

	// ErrInvalidSquashPoint reports a squash point outside the export
	// range.
	ErrInvalidSquashPoint = errors.New("invalid squash point")

	// ErrBranchExists reports an import targeting an existing patch
	// queue branch without force.
	ErrBranchExists = errors.New("branch already exists")

	// ErrApplyFailed reports a patch that did not apply cleanly.
	ErrApplyFailed = errors.New("patch failed to apply")

	// ErrImportFailed wraps the cause of an aborted import after the
	// rollback has run.
	ErrImportFailed = errors.New("import failed")

	// ErrCompression reports a patch compression kind that cannot be
	// read.
	ErrCompression = series.ErrUnsupportedCompression
)
