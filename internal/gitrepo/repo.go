// Package gitrepo provides access to local git repositories.
//
// Operations that modify the repository or its working tree are executed
// via the git command line client. Read-only operations on the commit graph
// use go-git.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/logfields"
)

// Repo is a local git repository with a working tree.
type Repo struct {
	dir    string
	git    *Runner
	logger *zap.Logger
}

// Open returns a Repo for the working tree in dir.
func Open(dir string) (*Repo, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	if _, err := git.PlainOpen(absDir); err != nil {
		return nil, fmt.Errorf("opening git repository %s failed: %w", absDir, err)
	}

	runner, err := NewRunner(absDir)
	if err != nil {
		return nil, err
	}

	return &Repo{
		dir:    absDir,
		git:    runner,
		logger: zap.L().Named(loggerName).With(logfields.Path(absDir)),
	}, nil
}

// Dir returns the absolute path of the working tree.
func (r *Repo) Dir() string {
	return r.dir
}

// gogit opens the repository with go-git. The repository is opened on
// every call, objects written by git commands since a previous open are
// not always visible to an existing go-git repository instance.
func (r *Repo) gogit() (*git.Repository, error) {
	return git.PlainOpen(r.dir)
}

// Head returns the commit id HEAD points to.
func (r *Repo) Head(ctx context.Context) (string, error) {
	return r.RevParse(ctx, "HEAD")
}

// RevParse returns the commit id of rev.
func (r *Repo) RevParse(ctx context.Context, rev string) (string, error) {
	return r.git.Output(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
}

// Merge merges rev into the current branch, always creating a merge commit.
// If the merge fails because of conflicts, an error wrapping
// ErrMergeConflict is returned and the working tree is left in the
// conflicting state.
func (r *Repo) Merge(ctx context.Context, rev, msg string) error {
	_, err := r.git.Run(ctx, "merge", "--no-ff", "--no-edit", "-m", msg, rev)
	if err == nil {
		return nil
	}

	var execErr *ExecError
	if errors.As(err, &execErr) && isConflictOutput(execErr.Stdout+execErr.Stderr) {
		return fmt.Errorf("merging %s failed: %w", rev, ErrMergeConflict)
	}

	return err
}

func isConflictOutput(out string) bool {
	return strings.Contains(out, "CONFLICT") ||
		strings.Contains(out, "Automatic merge failed")
}

// ConflictingFiles returns the paths of unmerged files in the working tree.
func (r *Repo) ConflictingFiles(ctx context.Context) ([]string, error) {
	out, err := r.git.Output(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}

	return splitLines(out), nil
}

// ResetHard resets the current branch, the index and the working tree to
// rev.
func (r *Repo) ResetHard(ctx context.Context, rev string) error {
	_, err := r.git.Run(ctx, "reset", "--hard", "--quiet", rev)
	return err
}

// ResetSoft moves the current branch to rev without modifying the index or
// the working tree.
func (r *Repo) ResetSoft(ctx context.Context, rev string) error {
	_, err := r.git.Run(ctx, "reset", "--soft", "--quiet", rev)
	return err
}

// ChangedFiles returns the files that were changed on to since it forked
// from from.
func (r *Repo) ChangedFiles(ctx context.Context, from, to string) ([]string, error) {
	out, err := r.git.Output(ctx, "diff", "--name-only", from+"..."+to)
	if err != nil {
		return nil, err
	}

	return splitLines(out), nil
}

func (r *Repo) commit(repo *git.Repository, rev string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolving %q failed: %w", rev, err)
	}

	return repo.CommitObject(*hash)
}

// MergeBase returns the best common ancestor of the commits a and b.
// If they have no common history ErrNoCommonAncestor is returned.
func (r *Repo) MergeBase(a, b string) (string, error) {
	repo, err := r.gogit()
	if err != nil {
		return "", err
	}

	commitA, err := r.commit(repo, a)
	if err != nil {
		return "", err
	}

	commitB, err := r.commit(repo, b)
	if err != nil {
		return "", err
	}

	bases, err := commitA.MergeBase(commitB)
	if err != nil {
		return "", err
	}

	if len(bases) == 0 {
		return "", fmt.Errorf("%s and %s: %w", a, b, ErrNoCommonAncestor)
	}

	return bases[0].Hash.String(), nil
}

// Commit is a commit in the history of a branch.
type Commit struct {
	Hash    string
	Subject string
	Message string
}

// FirstParentLog returns the commits reachable from from by following only
// the first parents, newest first, like git log --first-parent until..from.
// The walk stops at the first commit that is reachable from until.
// If until is empty the whole first-parent history is returned.
func (r *Repo) FirstParentLog(from, until string) ([]*Commit, error) {
	repo, err := r.gogit()
	if err != nil {
		return nil, err
	}

	c, err := r.commit(repo, from)
	if err != nil {
		return nil, err
	}

	excluded := map[plumbing.Hash]struct{}{}
	if until != "" {
		untilCommit, err := r.commit(repo, until)
		if err != nil {
			return nil, err
		}

		err = object.NewCommitPreorderIter(untilCommit, nil, nil).ForEach(func(ec *object.Commit) error {
			excluded[ec.Hash] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking history of %s failed: %w", until, err)
		}
	}

	var result []*Commit
	for {
		if _, exists := excluded[c.Hash]; exists {
			return result, nil
		}

		result = append(result, &Commit{
			Hash:    c.Hash.String(),
			Subject: strings.SplitN(c.Message, "\n", 2)[0],
			Message: c.Message,
		})

		if c.NumParents() == 0 {
			return result, nil
		}

		c, err = c.Parent(0)
		if err != nil {
			return nil, err
		}
	}
}

// FastForward fast-forwards the current branch to rev.
// The commits that were added to the branch are returned, newest first.
// If the current branch diverged from rev, an error wrapping
// ErrNotFastForwardable is returned.
func (r *Repo) FastForward(ctx context.Context, rev string) ([]*Commit, error) {
	oldHead, err := r.Head(ctx)
	if err != nil {
		return nil, err
	}

	_, err = r.git.Run(ctx, "merge", "--ff-only", "--quiet", rev)
	if err != nil {
		var execErr *ExecError
		if errors.As(err, &execErr) && strings.Contains(execErr.Stderr, "Not possible to fast-forward") {
			return nil, fmt.Errorf("fast-forwarding to %s failed: %w", rev, ErrNotFastForwardable)
		}
		return nil, err
	}

	newHead, err := r.Head(ctx)
	if err != nil {
		return nil, err
	}

	if newHead == oldHead {
		return nil, nil
	}

	return r.FirstParentLog(newHead, oldHead)
}

// Fetch fetches refspecs from remote.
func (r *Repo) Fetch(ctx context.Context, remote string, refspecs ...string) error {
	args := append([]string{"fetch", "--quiet", remote}, refspecs...)
	_, err := r.git.Run(ctx, args...)
	return err
}

// Push pushes refspec to remote.
func (r *Repo) Push(ctx context.Context, remote, refspec string, force bool) error {
	args := []string{"push", "--quiet"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, remote, refspec)

	_, err := r.git.Run(ctx, args...)
	return err
}

// AddRemote adds a remote with the given name and fetch URL.
func (r *Repo) AddRemote(ctx context.Context, name, url string) error {
	_, err := r.git.Run(ctx, "remote", "add", name, url)
	return err
}

// RemoveRemote removes the remote and its remote-tracking branches.
func (r *Repo) RemoveRemote(ctx context.Context, name string) error {
	_, err := r.git.Run(ctx, "remote", "remove", name)
	return err
}

// Remotes returns the names of all configured remotes.
func (r *Repo) Remotes() ([]string, error) {
	repo, err := r.gogit()
	if err != nil {
		return nil, err
	}

	remotes, err := repo.Remotes()
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(remotes))
	for _, remote := range remotes {
		result = append(result, remote.Config().Name)
	}

	return result, nil
}

// RemoteURL returns the first URL of remote.
// If the remote does not exist an error wrapping ErrNotFound is returned.
func (r *Repo) RemoteURL(name string) (string, error) {
	repo, err := r.gogit()
	if err != nil {
		return "", err
	}

	remote, err := repo.Remote(name)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", fmt.Errorf("remote %q: %w", name, ErrNotFound)
		}
		return "", err
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %q has no url: %w", name, ErrNotFound)
	}

	return urls[0], nil
}

// Submodule describes a submodule registered in .gitmodules.
type Submodule struct {
	Name   string
	Path   string
	URL    string
	Branch string
}

// Submodules returns the submodules of the repository, sorted by path.
func (r *Repo) Submodules() ([]*Submodule, error) {
	repo, err := r.gogit()
	if err != nil {
		return nil, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}

	submodules, err := wt.Submodules()
	if err != nil {
		return nil, err
	}

	result := make([]*Submodule, 0, len(submodules))
	for _, sm := range submodules {
		cfg := sm.Config()
		result = append(result, &Submodule{
			Name:   cfg.Name,
			Path:   cfg.Path,
			URL:    cfg.URL,
			Branch: cfg.Branch,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})

	return result, nil
}

// AddTracked stages the modifications of all tracked files, including
// updated submodule pointers.
func (r *Repo) AddTracked(ctx context.Context) error {
	_, err := r.git.Run(ctx, "add", "--update")
	return err
}

// Add stages the given paths.
func (r *Repo) Add(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	_, err := r.git.Run(ctx, args...)
	return err
}

// WriteTree creates a tree object from the index and returns its id.
func (r *Repo) WriteTree(ctx context.Context) (string, error) {
	return r.git.Output(ctx, "write-tree")
}

// TreeOf returns the id of the tree of the commit rev.
func (r *Repo) TreeOf(ctx context.Context, rev string) (string, error) {
	return r.git.Output(ctx, "rev-parse", rev+"^{tree}")
}

// CommitTree creates a commit object for tree with the given parents and
// returns its id. No branch is updated.
func (r *Repo) CommitTree(ctx context.Context, tree, msg string, parents ...string) (string, error) {
	args := []string{"commit-tree", tree}
	for _, p := range parents {
		args = append(args, "-p", p)
	}
	args = append(args, "-m", msg)

	return r.git.Output(ctx, args...)
}

// CheckRefFormat returns an error if ref is not a valid git reference
// name.
func (r *Repo) CheckRefFormat(ctx context.Context, ref string) error {
	_, err := r.git.Run(ctx, "check-ref-format", ref)
	return err
}

// TagExists returns true if a tag with the given name exists.
func (r *Repo) TagExists(name string) (bool, error) {
	repo, err := r.gogit()
	if err != nil {
		return false, err
	}

	_, err = repo.Tag(name)
	if err != nil {
		if errors.Is(err, git.ErrTagNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// Tag creates an annotated tag pointing to HEAD.
func (r *Repo) Tag(ctx context.Context, name, msg string) error {
	_, err := r.git.Run(ctx, "tag", "--annotate", "--message", msg, name)
	return err
}

// BranchCommit returns the commit id the local branch points to.
// If the branch does not exist an error wrapping ErrNotFound is returned.
func (r *Repo) BranchCommit(name string) (string, error) {
	repo, err := r.gogit()
	if err != nil {
		return "", err
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", fmt.Errorf("branch %q: %w", name, ErrNotFound)
		}
		return "", err
	}

	return ref.Hash().String(), nil
}
