package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/githubclt"
	"github.com/simplesurance/prmerger/internal/gitrepo"
	"github.com/simplesurance/prmerger/internal/logfields"
	"github.com/simplesurance/prmerger/internal/mergeerr"
	"github.com/simplesurance/prmerger/internal/retry"
)

// Orchestrator merges candidates one after the other into the checked out
// branch of a repository.
// A candidate that can not be merged does not change the repository, the
// branch is reset to the commit before the merge attempt and the next
// candidate is merged.
type Orchestrator struct {
	repo    Repository
	clt     GithubClient
	retryer *retry.Retryer
	remotes *remoteSet

	owner  string
	name   string
	remote string
	base   string

	build    *BuildContext
	comment  bool
	strict   bool
	botLogin string

	logger *zap.Logger
}

// Merge merges the candidates in the given order.
// start is the commit the merges are started from, it is the tip of the
// base branch.
// Errors are only returned if the repository is in an unknown state or a
// precondition failed, failed merges are reported as outcomes.
func (o *Orchestrator) Merge(ctx context.Context, start string, candidates []*Candidate) ([]*Outcome, error) {
	outcomes := make([]*Outcome, 0, len(candidates))

	for _, c := range candidates {
		outcome, err := o.mergeCandidate(ctx, start, c, outcomes)
		if err != nil {
			return outcomes, err
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func (o *Orchestrator) fullName() string {
	return githubclt.FullName(o.owner, o.name)
}

func (o *Orchestrator) commitMsg(c *Candidate) string {
	if c.Type == CandidatePullRequest {
		return fmt.Sprintf("%s: PR %d (%s)", o.build.CommitID(), c.Number, c.Title)
	}

	return fmt.Sprintf("%s: branch %s", o.build.CommitID(), c.ID())
}

// fetchHead fetches the head commit of the candidate and returns its id.
func (o *Orchestrator) fetchHead(ctx context.Context, c *Candidate) (string, error) {
	if c.Type == CandidatePullRequest && c.HeadRepo == "" {
		// the repository of the pull request was deleted
		if err := o.repo.Fetch(ctx, o.remote, fmt.Sprintf("pull/%d/head", c.Number)); err != nil {
			return "", err
		}

		return c.HeadSHA, nil
	}

	remote, err := o.remotes.Acquire(ctx, c.HeadRepo)
	if err != nil {
		return "", err
	}

	trackingRef := fmt.Sprintf("refs/remotes/%s/%s", remote, c.Branch)
	err = o.repo.Fetch(ctx, remote, fmt.Sprintf("+refs/heads/%s:%s", c.Branch, trackingRef))
	if err != nil {
		return "", err
	}

	if c.Type == CandidatePullRequest {
		return c.HeadSHA, nil
	}

	return o.repo.RevParse(ctx, trackingRef)
}

func (o *Orchestrator) mergeCandidate(ctx context.Context, start string, c *Candidate, done []*Outcome) (*Outcome, error) {
	logger := o.logger.With(c.LogFields...)
	outcome := Outcome{Candidate: c}

	sha, err := o.fetchHead(ctx, c)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		logger.Warn("fetching head failed, skipping candidate", logEventMergeSkipped, zap.Error(err))
		outcome.State = OutcomeSkipped
		outcome.Reason = fmt.Sprintf("fetching head failed: %s", err)

		return &outcome, nil
	}
	c.HeadSHA = sha

	if c.Type == CandidateBranch {
		if _, err := o.repo.MergeBase(start, sha); err != nil {
			if errors.Is(err, gitrepo.ErrNoCommonAncestor) && o.strict {
				return nil, mergeerr.NewStopError(
					mergeerr.ExitNoCommonAncestor,
					"%s has no common ancestor with %s", c.ID(), o.base,
				)
			}

			logger.Info("no common ancestor with base branch, skipping candidate", logEventMergeSkipped, zap.Error(err))
			outcome.State = OutcomeSkipped
			outcome.Reason = fmt.Sprintf("no common ancestor with %s", o.base)

			return &outcome, nil
		}
	}

	premerge, err := o.repo.Head(ctx)
	if err != nil {
		return nil, err
	}

	if mb, err := o.repo.MergeBase(sha, premerge); err == nil && mb == sha {
		logger.Info("head is already contained in the merge result, skipping candidate", logEventMergeSkipped)
		outcome.State = OutcomeSkipped
		outcome.Reason = fmt.Sprintf("head %s is already contained in %s", sha, o.base)

		return &outcome, nil
	}

	outcome.changedFiles, err = o.repo.ChangedFiles(ctx, start, sha)
	if err != nil {
		logger.Warn("determining changed files failed", logfields.Event("changed_files_failed"), zap.Error(err))
	}

	mergeErr := o.repo.Merge(ctx, sha, o.commitMsg(c))
	if mergeErr == nil {
		outcome.State = OutcomeMerged
		metrics.MergesInc(o.fullName())
		logger.Info("merged", logEventMerged)

		o.afterMerge(ctx, c, logger)

		return &outcome, nil
	}

	outcome.State = OutcomeConflicting
	metrics.ConflictsInc(o.fullName())

	if !errors.Is(mergeErr, gitrepo.ErrMergeConflict) {
		outcome.Reason = mergeErr.Error()
	}

	files, err := o.conflictingFiles(ctx)
	if err != nil {
		logger.Warn("determining conflicting files failed", logfields.Event("conflict_detection_failed"), zap.Error(err))
	}
	outcome.Files = files
	outcome.DetectionFailed = len(files) == 0

	if err := o.repo.ResetHard(ctx, premerge); err != nil {
		return nil, fmt.Errorf("resetting to %s after failed merge of %s failed: %w", premerge, c.ID(), err)
	}

	o.attribute(ctx, start, sha, &outcome, done)

	logger.Info(
		"merge failed",
		logEventMergeConflict,
		zap.Strings("conflicting_files", outcome.Files),
		zap.Stringer("likely_culprit", culpritStringer{outcome.LikelyCulprit()}),
		zap.NamedError("merge_error", mergeErr),
	)

	o.commentConflict(ctx, c, &outcome, logger)

	return &outcome, nil
}

// conflictingFiles returns the unmerged files, the detection is retried
// once if no files are found.
func (o *Orchestrator) conflictingFiles(ctx context.Context) ([]string, error) {
	var files []string
	var err error

	for i := 0; i < 2; i++ {
		files, err = o.repo.ConflictingFiles(ctx)
		if err == nil && len(files) > 0 {
			return files, nil
		}
	}

	return files, err
}

// attribute determines the merged candidates and the upstream changes
// that conflict with the candidate.
func (o *Orchestrator) attribute(ctx context.Context, start, sha string, outcome *Outcome, done []*Outcome) {
	for _, prev := range done {
		if prev.State != OutcomeMerged {
			continue
		}

		if shared := intersect(outcome.changedFiles, prev.changedFiles); len(shared) > 0 {
			outcome.Culprits = append(outcome.Culprits, &Culprit{Candidate: prev.Candidate, Files: shared})
		}
	}

	upstream, err := o.repo.ChangedFiles(ctx, sha, start)
	if err != nil {
		o.logger.Warn(
			"determining upstream changes failed",
			logfields.Event("upstream_changes_failed"),
			logfields.Commit(sha),
			zap.Error(err),
		)
		return
	}

	outcome.NeedsRebase = intersect(outcome.changedFiles, upstream)
}

func (o *Orchestrator) afterMerge(ctx context.Context, c *Candidate, logger *zap.Logger) {
	if !o.comment || c.Type != CandidatePullRequest {
		return
	}

	if strings.TrimSpace(c.Body) == "" && !o.hasOwnComment(c, emptyDescriptionComment(c.Author)) {
		o.createComment(ctx, c, emptyDescriptionComment(c.Author), logger)
	}

	last := lastConflictComment(c.comments, o.botLogin)
	if last == nil {
		return
	}

	body := resolvedComment(last.GetBody(), o.build.CommitID())
	err := o.retryer.Run(ctx, func(ctx context.Context) error {
		return o.clt.EditIssueComment(ctx, o.owner, o.name, last.GetID(), body)
	}, c.LogFields)
	if err != nil {
		logger.Warn("marking conflict comment as resolved failed", logEventCommentFailed, zap.Error(err))
	}
}

func (o *Orchestrator) hasOwnComment(c *Candidate, body string) bool {
	for _, comment := range c.comments {
		if comment.GetUser().GetLogin() == o.botLogin && comment.GetBody() == body {
			return true
		}
	}

	return false
}

func (o *Orchestrator) commentConflict(ctx context.Context, c *Candidate, outcome *Outcome, logger *zap.Logger) {
	if !o.comment || c.Type != CandidatePullRequest {
		return
	}

	if last := lastConflictComment(c.comments, o.botLogin); last != nil && conflictCommentSHA(last.GetBody()) == c.HeadSHA {
		logger.Debug(
			"pull request is already marked as conflicting, skipping comment",
			logfields.Event("conflict_comment_suppressed"),
		)
		return
	}

	var details strings.Builder
	fmt.Fprintf(&details, "Conflicting PR. Removed from build %s.", o.build.CommitID())
	if o.build != nil && o.build.BuildURL != "" {
		fmt.Fprintf(&details, " See %s for more details.", o.build.BuildURL)
	}
	details.WriteString("\n\n")
	details.WriteString(outcome.ConflictDetails(o.base))

	o.createComment(ctx, c, conflictComment(c.HeadSHA, details.String()), logger)
}

func (o *Orchestrator) createComment(ctx context.Context, c *Candidate, body string, logger *zap.Logger) {
	err := o.retryer.Run(ctx, func(ctx context.Context) error {
		return o.clt.CreateIssueComment(ctx, o.owner, o.name, c.Number, body)
	}, c.LogFields)
	if err != nil {
		logger.Warn("creating comment failed", logEventCommentFailed, zap.Error(err))
	}
}

type culpritStringer struct {
	c *Candidate
}

func (s culpritStringer) String() string {
	if s.c == nil {
		return "unknown"
	}

	return s.c.ID()
}
