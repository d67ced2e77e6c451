package merge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/filter"
	"github.com/simplesurance/prmerger/internal/githubclt"
	"github.com/simplesurance/prmerger/internal/logfields"
	"github.com/simplesurance/prmerger/internal/retry"
)

const (
	reasonComment     = "comment"
	reasonNotIncluded = "not included"
	reasonFilterQuery = "filter_query"
)

// Selection is the result of a candidate search.
type Selection struct {
	// PullRequests are the selected pull requests, sorted by ascending
	// number.
	PullRequests []*Candidate
	// Branches are the selected branches, sorted by their ID.
	Branches []*Candidate
	Excluded []*Exclusion
}

// Candidates returns the selected pull requests followed by the selected
// branches, in merge order.
func (s *Selection) Candidates() []*Candidate {
	result := make([]*Candidate, 0, len(s.PullRequests)+len(s.Branches))
	result = append(result, s.PullRequests...)
	return append(result, s.Branches...)
}

// Selector finds the open pull requests and branches of a repository that
// match a FilterSet.
type Selector struct {
	clt     GithubClient
	retryer *retry.Retryer
	members *membership
	query   *Query

	owner string
	repo  string

	logger *zap.Logger
}

func newSelector(clt GithubClient, retryer *retry.Retryer, members *membership, owner, repo string, query *Query) *Selector {
	return &Selector{
		clt:     clt,
		retryer: retryer,
		members: members,
		query:   query,
		owner:   owner,
		repo:    repo,
		logger: zap.L().Named(loggerName).Named("selector").With(
			logfields.RepositoryOwner(owner),
			logfields.Repository(repo),
		),
	}
}

func (s *Selector) fullName() string {
	return githubclt.FullName(s.owner, s.repo)
}

// Select returns the candidates matching fs.
// If fs has no include predicates, an empty selection is returned without
// querying GitHub.
func (s *Selector) Select(ctx context.Context, fs *filter.FilterSet) (*Selection, error) {
	var result Selection

	if !fs.HasInclude() {
		s.logger.Debug(
			"no include filters defined, skipping candidate search",
			logfields.Event("candidate_search_skipped"),
		)
		return &result, nil
	}

	prs, err := s.openPullRequests(ctx, fs.Base())
	if err != nil {
		return nil, err
	}

	for _, pr := range prs {
		c := newPRCandidate(pr)
		logger := s.logger.With(c.LogFields...)

		reason, err := s.exclusionReason(ctx, fs, c)
		if err != nil {
			return nil, fmt.Errorf("evaluating filters for pull request #%d failed: %w", c.Number, err)
		}

		if reason != "" {
			logger.Info(
				"pull request excluded",
				logEventCandidateExcluded,
				logFieldReason(reason),
			)
			metrics.CandidatesInc(s.fullName(), candidateOutcomeExcluded)

			result.Excluded = append(result.Excluded, &Exclusion{Candidate: c, Reason: reason})
			continue
		}

		logger.Info("pull request selected", logEventCandidateSelected)
		metrics.CandidatesInc(s.fullName(), candidateOutcomeSelected)

		result.PullRequests = append(result.PullRequests, c)
	}

	sort.SliceStable(result.PullRequests, func(i, j int) bool {
		return result.PullRequests[i].Number < result.PullRequests[j].Number
	})

	branches, excluded := s.branches(fs)
	result.Branches = branches
	result.Excluded = append(result.Excluded, excluded...)

	return &result, nil
}

func (s *Selector) openPullRequests(ctx context.Context, base string) ([]*github.PullRequest, error) {
	var result []*github.PullRequest

	it := s.clt.ListPullRequests(ctx, s.owner, s.repo, "open", base, "created", "asc")
	for {
		pr, err := retry.WithRetries(ctx, s.retryer, func(context.Context) (*github.PullRequest, error) {
			return it.Next()
		}, logfields.BaseBranch(base))
		if err != nil {
			return nil, fmt.Errorf("listing pull requests failed: %w", err)
		}

		if pr == nil {
			return result, nil
		}

		if pr.GetBase().GetRef() != base {
			continue
		}

		result = append(result, pr)
	}
}

// exclusionReason evaluates the filters for a pull request.
// It returns an empty string when the pull request is selected.
// The checks are evaluated in a fixed order:
// exclusion by comment, author trust, include filters, exclude filters,
// filter query, commit status.
func (s *Selector) exclusionReason(ctx context.Context, fs *filter.FilterSet, c *Candidate) (string, error) {
	comments, err := retry.WithRetries(ctx, s.retryer, func(ctx context.Context) ([]*github.IssueComment, error) {
		return s.clt.ListIssueComments(ctx, s.owner, s.repo, c.Number)
	}, c.LogFields...)
	if err != nil {
		return "", fmt.Errorf("retrieving comments failed: %w", err)
	}
	c.comments = comments

	trustedCommenter := func(login string) (bool, error) {
		if login == c.Author {
			return true, nil
		}
		return s.members.IsTrusted(ctx, login)
	}

	excludedByComment, err := hasTrustedDirective(c, directiveExclude, trustedCommenter)
	if err != nil {
		return "", err
	}
	if excludedByComment {
		return reasonComment, nil
	}

	authorTrusted, err := s.members.IsTrusted(ctx, c.Author)
	if err != nil {
		return "", err
	}

	included := s.includeMatch(fs.Include(), c, authorTrusted)
	if !included {
		includedByComment, err := hasTrustedDirective(c, directiveInclude, trustedCommenter)
		if err != nil {
			return "", err
		}
		included = includedByComment
	}

	if !authorTrusted && !included {
		return "user: " + c.Author, nil
	}

	if !included {
		return reasonNotIncluded, nil
	}

	if reason := s.excludeMatch(fs.Exclude(), c, authorTrusted); reason != "" {
		return reason, nil
	}

	if s.query != nil {
		match, err := s.query.Match(ctx, c)
		if err != nil {
			return "", err
		}

		if !match {
			return reasonFilterQuery, nil
		}
	}

	if fs.Status() != filter.StatusNone {
		state, err := s.commitStatus(ctx, c)
		if err != nil {
			return "", err
		}
		c.Status = state

		if !fs.Status().Allows(state) {
			if state == "" {
				state = "none"
			}
			return "status: " + state, nil
		}
	}

	return "", nil
}

func (s *Selector) userMatch(p filter.Predicate, login string, authorTrusted bool) bool {
	return p.HasUser(filter.UserAll) ||
		(authorTrusted && p.HasUser(filter.UserOrg)) ||
		p.HasUser(login)
}

func (s *Selector) includeMatch(p filter.Predicate, c *Candidate, authorTrusted bool) bool {
	for _, l := range c.Labels {
		if p.HasLabel(l) {
			return true
		}
	}

	return s.userMatch(p, c.Author, authorTrusted) || p.HasPR(s.fullName(), c.Number)
}

func (s *Selector) excludeMatch(p filter.Predicate, c *Candidate, authorTrusted bool) string {
	for _, l := range c.Labels {
		if p.HasLabel(l) {
			return "label: " + l
		}
	}

	if s.userMatch(p, c.Author, authorTrusted) {
		return "user: " + c.Author
	}

	if p.HasPR(s.fullName(), c.Number) {
		return "pr: " + c.ID()
	}

	return ""
}

// commitStatus returns the state of the head commit of the pull request.
// The combined status in the base repository is used, if no status exists
// there the one of the head repository and then the status check rollup
// of check runs and statuses.
func (s *Selector) commitStatus(ctx context.Context, c *Candidate) (string, error) {
	state, cnt, err := s.combinedStatus(ctx, s.owner, s.repo, c)
	if err != nil {
		return "", err
	}
	if cnt > 0 {
		return state, nil
	}

	if c.HeadRepo != "" && c.HeadRepo != s.fullName() {
		headOwner, headRepo, _ := strings.Cut(c.HeadRepo, "/")

		state, cnt, err = s.combinedStatus(ctx, headOwner, headRepo, c)
		if err != nil {
			return "", err
		}
		if cnt > 0 {
			return state, nil
		}
	}

	ciStatus, err := retry.WithRetries(ctx, s.retryer, func(ctx context.Context) (*githubclt.HeadCIStatus, error) {
		return s.clt.HeadCIStatus(ctx, s.owner, s.repo, c.Number)
	}, c.LogFields...)
	if err != nil {
		return "", fmt.Errorf("retrieving status check rollup failed: %w", err)
	}

	return ciStatus.State, nil
}

func (s *Selector) combinedStatus(ctx context.Context, owner, repo string, c *Candidate) (string, int, error) {
	var state string
	var cnt int

	err := s.retryer.Run(ctx, func(ctx context.Context) error {
		var err error
		state, cnt, err = s.clt.CombinedStatus(ctx, owner, repo, c.HeadSHA)
		return err
	}, c.LogFields)
	if err != nil {
		return "", 0, fmt.Errorf("retrieving combined status of %s in %s failed: %w", c.HeadSHA, githubclt.FullName(owner, repo), err)
	}

	return state, cnt, nil
}

// branches returns the branch candidates of the include filters whose
// repository name matches the one of the selector.
func (s *Selector) branches(fs *filter.FilterSet) ([]*Candidate, []*Exclusion) {
	var result []*Candidate
	var excluded []*Exclusion

	excl := fs.Exclude().Branches(s.repo)

	for key, branches := range fs.Include().Branches(s.repo) {
		for _, b := range branches {
			c := newBranchCandidate(key, b)

			if containsStr(excl[key], b) {
				excluded = append(excluded, &Exclusion{Candidate: c, Reason: "branch: " + c.ID()})
				continue
			}

			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID() < result[j].ID()
	})

	sort.Slice(excluded, func(i, j int) bool {
		return excluded[i].Candidate.ID() < excluded[j].Candidate.ID()
	})

	return result, excluded
}

func containsStr(sl []string, s string) bool {
	for _, e := range sl {
		if e == s {
			return true
		}
	}

	return false
}
