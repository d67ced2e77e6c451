package gitrepo

import "errors"

var (
	// ErrMergeConflict is returned by Merge when the merge stopped because
	// of conflicts. The working tree contains the conflict state.
	ErrMergeConflict = errors.New("merge conflict")
	// ErrNoCommonAncestor is returned when 2 commits do not share history.
	ErrNoCommonAncestor = errors.New("no common ancestor")
	// ErrNotFastForwardable is returned when the current branch diverged
	// from the branch it should be fast-forwarded to.
	ErrNotFastForwardable = errors.New("not fast-forwardable")
	ErrNotFound           = errors.New("not found")
)
