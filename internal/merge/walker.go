package merge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/filter"
	"github.com/simplesurance/prmerger/internal/githubclt"
	"github.com/simplesurance/prmerger/internal/gitrepo"
	"github.com/simplesurance/prmerger/internal/logfields"
	"github.com/simplesurance/prmerger/internal/mergeerr"
	"github.com/simplesurance/prmerger/internal/retry"
)

const loggerName = "merge"

const DefaultStatusContext = "prmerger"

// RepositoryConfig contains settings for a single GitHub repository.
type RepositoryConfig struct {
	// BaseBranch replaces the base branch of the FilterSet when the
	// repository is processed.
	BaseBranch string
	// FilterQuery excludes pull requests for that it evaluates to false.
	FilterQuery *Query
}

// Options control the behavior of a Walker.
type Options struct {
	// Remote is the name of the remote of the base repository.
	Remote string
	// Info only searches for candidates, the repositories are not
	// modified.
	Info bool
	// Comment enables creating comments on conflicting pull requests.
	Comment bool
	// SetCommitStatus enables reporting the merge result as commit
	// status for the head commits of all processed pull requests.
	SetCommitStatus bool
	StatusContext   string
	// UpdateGitmodules records the base branch of every submodule in
	// .gitmodules.
	UpdateGitmodules bool
	// AllowEmpty creates a commit in the top-level repository even if
	// nothing changed.
	AllowEmpty bool
	// Strict aborts when an explicitly requested branch has no common
	// history with the base branch.
	Strict bool
}

// Walker merges candidates into a repository and then recursively into
// all of its submodules.
// For every repository a single commit is created, that contains all
// merges and the updated submodule commits.
type Walker struct {
	clt      GithubClient
	retryer  *retry.Retryer
	openRepo RepositoryOpener

	org       string
	whitelist []string
	members   *membership
	repoCfg   map[string]*RepositoryConfig

	build    *BuildContext
	opts     Options
	botLogin string

	activeRemotesLock sync.Mutex
	activeRemotes     map[*remoteSet]struct{}

	logger *zap.Logger
}

// NewWalker returns a new Walker.
// If org is empty, the owner of the top-level repository is used as
// organization for membership checks.
// repoCfg contains optional settings per "org/repo" name.
func NewWalker(
	clt GithubClient,
	retryer *retry.Retryer,
	openRepo RepositoryOpener,
	org string,
	whitelist []string,
	repoCfg map[string]*RepositoryConfig,
	build *BuildContext,
	opts Options,
) *Walker {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}

	if opts.StatusContext == "" {
		opts.StatusContext = DefaultStatusContext
	}

	if repoCfg == nil {
		repoCfg = map[string]*RepositoryConfig{}
	}

	return &Walker{
		clt:           clt,
		retryer:       retryer,
		openRepo:      openRepo,
		org:           org,
		whitelist:     whitelist,
		repoCfg:       repoCfg,
		build:         build,
		opts:          opts,
		activeRemotes: map[*remoteSet]struct{}{},
		logger:        zap.L().Named(loggerName),
	}
}

// RMerge merges the candidates matching fs into repo and its submodules.
func (w *Walker) RMerge(ctx context.Context, repo Repository, fs *filter.FilterSet) (*Report, error) {
	owner, _, _, err := w.repositoryName(repo)
	if err != nil {
		return nil, err
	}

	if w.members == nil {
		org := w.org
		if org == "" {
			org = owner
		}

		w.members, err = newMembership(w.clt, w.retryer, org, w.whitelist)
		if err != nil {
			return nil, err
		}
	}

	if w.opts.Comment && !w.opts.Info && w.botLogin == "" {
		w.botLogin, err = retry.WithRetries(ctx, w.retryer, w.clt.AuthenticatedUser)
		if err != nil {
			return nil, fmt.Errorf("retrieving the GitHub user of the api token failed: %w", err)
		}
	}

	return w.mergeLevel(ctx, repo, fs, "", true)
}

// Cleanup removes the temporary remotes of all repositories that are
// currently processed.
func (w *Walker) Cleanup(ctx context.Context) {
	w.activeRemotesLock.Lock()
	defer w.activeRemotesLock.Unlock()

	for rs := range w.activeRemotes {
		rs.Release(ctx)
	}
}

func (w *Walker) trackRemotes(rs *remoteSet) {
	w.activeRemotesLock.Lock()
	defer w.activeRemotesLock.Unlock()

	w.activeRemotes[rs] = struct{}{}
}

func (w *Walker) releaseRemotes(ctx context.Context, rs *remoteSet) {
	rs.Release(ctx)

	w.activeRemotesLock.Lock()
	defer w.activeRemotesLock.Unlock()

	delete(w.activeRemotes, rs)
}

// repositoryName returns the GitHub owner, name and the URL of the
// configured remote of repo.
func (w *Walker) repositoryName(repo Repository) (owner, name, url string, err error) {
	url, err = repo.RemoteURL(w.opts.Remote)
	if err != nil {
		if errors.Is(err, gitrepo.ErrNotFound) {
			return "", "", "", mergeerr.NewStopError(
				mergeerr.ExitRemoteMissing,
				"remote %q does not exist in %s", w.opts.Remote, repo.Dir(),
			)
		}

		return "", "", "", err
	}

	owner, name, err = githubclt.ParseRepositoryURL(url)
	if err != nil {
		return "", "", "", err
	}

	return owner, name, url, nil
}

func (w *Walker) mergeLevel(ctx context.Context, repo Repository, fs *filter.FilterSet, path string, top bool) (*Report, error) {
	owner, name, originURL, err := w.repositoryName(repo)
	if err != nil {
		return nil, err
	}

	fullName := githubclt.FullName(owner, name)
	logger := w.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(name),
		logfields.Path(repo.Dir()),
	)

	repoCfg := w.repoCfg[fullName]
	if repoCfg == nil {
		repoCfg = &RepositoryConfig{}
	}

	if repoCfg.BaseBranch != "" && repoCfg.BaseBranch != fs.Base() {
		logger.Info(
			"base branch overridden by repository configuration",
			logEventBaseOverridden,
			logfields.BaseBranch(repoCfg.BaseBranch),
			zap.String("git.base_branch_default", fs.Base()),
		)

		fs = fs.WithBase(repoCfg.BaseBranch)
	}

	logger = logger.With(logfields.BaseBranch(fs.Base()))

	report := Report{
		Repository: fullName,
		Path:       path,
		Base:       fs.Base(),
		Info:       w.opts.Info,
	}

	selector := newSelector(w.clt, w.retryer, w.members, owner, name, repoCfg.FilterQuery)

	selection, err := selector.Select(ctx, fs)
	if err != nil {
		return nil, err
	}
	report.Excluded = selection.Excluded

	if w.opts.Info {
		report.Selected = selection.Candidates()

		if err := w.mergeSubmodules(ctx, repo, fs, &report, logger); err != nil {
			return &report, err
		}

		return &report, nil
	}

	remotes := newRemoteSet(repo, originURL, fullName)
	w.trackRemotes(remotes)
	defer w.releaseRemotes(context.WithoutCancel(ctx), remotes)

	start, err := w.fastForward(ctx, repo, fs.Base(), &report)
	if err != nil {
		return nil, err
	}

	orchestrator := Orchestrator{
		repo:     repo,
		clt:      w.clt,
		retryer:  w.retryer,
		remotes:  remotes,
		owner:    owner,
		name:     name,
		remote:   w.opts.Remote,
		base:     fs.Base(),
		build:    w.build,
		comment:  w.opts.Comment,
		strict:   w.opts.Strict,
		botLogin: w.botLogin,
		logger:   logger,
	}

	report.Outcomes, err = orchestrator.Merge(ctx, start, selection.Candidates())
	if err != nil {
		return &report, err
	}

	for _, o := range report.Merged() {
		report.TestHints = appendUniqSorted(report.TestHints, testHints(o.Candidate.Body)...)
	}

	if err := w.mergeSubmodules(ctx, repo, fs, &report, logger); err != nil {
		return &report, err
	}

	if err := w.bumpCommit(ctx, repo, start, top, &report, logger); err != nil {
		return &report, err
	}

	w.setCommitStatuses(ctx, owner, name, &report, logger)

	return &report, nil
}

var mergedPRRe = regexp.MustCompile(`^Merge pull request #([0-9]+) from`)

// fastForward updates the current branch to the tip of the remote base
// branch and returns the new HEAD commit. Pull requests whose GitHub merge
// commits were fast-forwarded are recorded as previously merged.
func (w *Walker) fastForward(ctx context.Context, repo Repository, base string, report *Report) (string, error) {
	trackingRef := fmt.Sprintf("%s/%s", w.opts.Remote, base)

	err := repo.Fetch(ctx, w.opts.Remote, fmt.Sprintf("+refs/heads/%s:refs/remotes/%s", base, trackingRef))
	if err != nil {
		return "", fmt.Errorf("fetching base branch %s failed: %w", base, err)
	}

	commits, err := repo.FastForward(ctx, trackingRef)
	if err != nil {
		if errors.Is(err, gitrepo.ErrNotFastForwardable) {
			return "", mergeerr.NewStopError(
				mergeerr.ExitNotFastForwardable,
				"%s: current branch can not be fast-forwarded to %s", repo.Dir(), trackingRef,
			)
		}

		return "", err
	}

	for _, c := range commits {
		m := mergedPRRe.FindStringSubmatch(c.Subject)
		if m == nil {
			continue
		}

		nr, _ := strconv.Atoi(m[1])
		report.PreviouslyMerged = append(report.PreviouslyMerged, nr)
	}

	return repo.Head(ctx)
}

// mergeSubmodules processes all submodules of repo.
// Errors of a submodule are logged and recorded in the report, the
// remaining submodules are processed. Only precondition failures and
// cancellation abort the processing.
func (w *Walker) mergeSubmodules(ctx context.Context, repo Repository, fs *filter.FilterSet, report *Report, logger *zap.Logger) error {
	submodules, err := repo.Submodules()
	if err != nil {
		return fmt.Errorf("listing submodules failed: %w", err)
	}

	for _, sm := range submodules {
		subLogger := logger.With(logfields.Submodule(sm.Path))

		subReport, err := w.mergeSubmodule(ctx, repo, fs, sm)
		if err != nil {
			var stopErr *mergeerr.StopError
			if errors.As(err, &stopErr) || ctx.Err() != nil {
				return err
			}

			subLogger.Error("processing submodule failed", logEventSubmoduleFailed, zap.Error(err))
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", sm.Path, err))

			continue
		}

		report.Submodules = append(report.Submodules, subReport)

		if w.opts.UpdateGitmodules && !w.opts.Info {
			err := repo.SetConfig(ctx, gitrepo.ConfigScopeGitmodules, "submodule."+sm.Name+".branch", subReport.Base)
			if err != nil {
				return fmt.Errorf("updating .gitmodules failed: %w", err)
			}

			if err := repo.Add(ctx, ".gitmodules"); err != nil {
				return err
			}
		}
	}

	return nil
}

func (w *Walker) mergeSubmodule(ctx context.Context, repo Repository, fs *filter.FilterSet, sm *gitrepo.Submodule) (*Report, error) {
	subRepo, err := w.openRepo(filepath.Join(repo.Dir(), sm.Path))
	if err != nil {
		return nil, fmt.Errorf("opening submodule failed: %w", err)
	}

	owner, name, _, err := w.repositoryName(subRepo)
	if err != nil {
		return nil, err
	}

	return w.mergeLevel(ctx, subRepo, fs.ForSubmodule(githubclt.FullName(owner, name)), sm.Path, false)
}

// bumpCommit creates a single commit containing all merges and submodule
// updates since start. The parents of the commit are start and the head
// commits of all merged candidates.
// No commit is created if nothing changed, except for the top-level
// repository when AllowEmpty is enabled.
func (w *Walker) bumpCommit(ctx context.Context, repo Repository, start string, top bool, report *Report, logger *zap.Logger) error {
	if err := repo.AddTracked(ctx); err != nil {
		return err
	}

	tree, err := repo.WriteTree(ctx)
	if err != nil {
		return err
	}

	startTree, err := repo.TreeOf(ctx, start)
	if err != nil {
		return err
	}

	merged := report.Merged()
	if tree == startTree && len(merged) == 0 && !(top && w.opts.AllowEmpty) {
		logger.Debug("repository unchanged, no commit created", logfields.Event("bump_commit_skipped"))
		return nil
	}

	parents := []string{start}
	for _, o := range merged {
		if !containsStr(parents, o.Candidate.HeadSHA) {
			parents = append(parents, o.Candidate.HeadSHA)
		}
	}

	commit, err := repo.CommitTree(ctx, tree, report.CommitMessage(w.build.CommitID()), parents...)
	if err != nil {
		return fmt.Errorf("creating commit failed: %w", err)
	}

	if err := repo.ResetSoft(ctx, commit); err != nil {
		return err
	}

	report.BumpCommit = commit
	metrics.BumpCommitsInc(report.Repository)

	logger.Info(
		"commit created",
		logEventBumpCommit,
		logfields.Commit(commit),
		zap.Int("merged_count", len(merged)),
	)

	return nil
}

// setCommitStatuses reports the result of the repository as commit status
// for the head commits of all merged and conflicting pull requests.
func (w *Walker) setCommitStatuses(ctx context.Context, owner, name string, report *Report, logger *zap.Logger) {
	if !w.opts.SetCommitStatus {
		return
	}

	status := githubclt.CommitStatus{
		State:       "success",
		Context:     w.opts.StatusContext,
		Description: fmt.Sprintf("merged in %s", w.build.CommitID()),
	}

	if conflicts := report.Conflicting(); len(conflicts) > 0 {
		status.State = "failure"
		status.Description = fmt.Sprintf("%d conflicting candidates in %s", len(conflicts), w.build.CommitID())
	}

	if w.build != nil {
		status.TargetURL = w.build.BuildURL
	}

	for _, o := range report.Outcomes {
		c := o.Candidate
		if c.Type != CandidatePullRequest || o.State == OutcomeSkipped {
			continue
		}

		err := w.retryer.Run(ctx, func(ctx context.Context) error {
			return w.clt.CreateCommitStatus(ctx, owner, name, c.HeadSHA, &status)
		}, c.LogFields)
		if err != nil {
			logger.Warn(
				"setting commit status failed",
				append([]zap.Field{logEventStatusFailed, zap.Error(err)}, c.LogFields...)...,
			)
		}
	}
}
