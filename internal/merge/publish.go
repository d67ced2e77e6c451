package merge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/simplesurance/prmerger/internal/gitrepo"
	"github.com/simplesurance/prmerger/internal/logfields"
	"github.com/simplesurance/prmerger/internal/mergeerr"
)

// CheckTag returns a StopError if name is not a valid tag name or the tag
// already exists.
func CheckTag(ctx context.Context, repo Repository, name string) error {
	if err := repo.CheckRefFormat(ctx, "refs/tags/"+name); err != nil {
		return mergeerr.NewStopError(mergeerr.ExitInvalidTag, "invalid tag name: %q", name)
	}

	exists, err := repo.TagExists(name)
	if err != nil {
		return err
	}

	if exists {
		return mergeerr.NewStopError(mergeerr.ExitTagExists, "tag %q already exists in %s", name, repo.Dir())
	}

	return nil
}

// CheckPushBranch returns a StopError if the result can not be pushed to
// branch.
// Pushing to the base branch is refused, as is pushing a branch that
// exists locally and points to a different commit than HEAD.
func CheckPushBranch(ctx context.Context, repo Repository, base, branch string) error {
	if branch == base {
		return mergeerr.NewStopError(mergeerr.ExitBranchIsBase, "push branch %q is the base branch", branch)
	}

	sha, err := repo.BranchCommit(branch)
	if err != nil {
		if errors.Is(err, gitrepo.ErrNotFound) {
			return nil
		}
		return err
	}

	head, err := repo.Head(ctx)
	if err != nil {
		return err
	}

	if sha != head {
		return mergeerr.NewStopError(
			mergeerr.ExitBranchExists,
			"branch %q already exists in %s and points to %s", branch, repo.Dir(), sha,
		)
	}

	return nil
}

// RPush pushes HEAD of the repository and of all submodules in report to
// branch. Submodules are pushed first.
func (w *Walker) RPush(ctx context.Context, repo Repository, report *Report, branch string) error {
	for _, sub := range report.Submodules {
		subRepo, err := w.openRepo(filepath.Join(repo.Dir(), sub.Path))
		if err != nil {
			return err
		}

		if err := w.RPush(ctx, subRepo, sub, branch); err != nil {
			return err
		}
	}

	refspec := "HEAD:refs/heads/" + branch
	if err := repo.Push(ctx, w.opts.Remote, refspec, true); err != nil {
		return fmt.Errorf("pushing %s to %s failed: %w", repo.Dir(), w.opts.Remote, err)
	}

	w.logger.Info(
		"pushed",
		logfields.Event("pushed"),
		logfields.Path(repo.Dir()),
		logfields.Remote(w.opts.Remote),
		logfields.Branch(branch),
	)

	return nil
}

// RTag creates the annotated tag name in the repository and all
// submodules in report.
func (w *Walker) RTag(ctx context.Context, repo Repository, report *Report, name string) error {
	for _, sub := range report.Submodules {
		subRepo, err := w.openRepo(filepath.Join(repo.Dir(), sub.Path))
		if err != nil {
			return err
		}

		if err := w.RTag(ctx, subRepo, sub, name); err != nil {
			return err
		}
	}

	if err := CheckTag(ctx, repo, name); err != nil {
		return err
	}

	return repo.Tag(ctx, name, fmt.Sprintf("%s: tag %s", w.build.CommitID(), name))
}
