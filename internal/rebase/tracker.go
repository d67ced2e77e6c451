// Package rebase finds pull requests that were merged into one of two
// long-lived branches but were not ported to the other one.
//
// A pull request is ported by a second pull request against the other
// branch. The relation is recorded with "--rebased-to #<N>" and
// "--rebased-from #<N>" lines in the descriptions or comments of the pull
// requests.
package rebase

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/githubclt"
	"github.com/simplesurance/prmerger/internal/gitrepo"
	"github.com/simplesurance/prmerger/internal/logfields"
	"github.com/simplesurance/prmerger/internal/retry"
)

const loggerName = "rebase_tracker"

// GithubClient is the subset of the GitHub API that is used to retrieve
// pull requests and their links.
type GithubClient interface {
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	ListIssueComments(ctx context.Context, owner, repo string, issueOrPRNr int) ([]*github.IssueComment, error)
}

// Repository provides the history of the compared branches.
type Repository interface {
	Fetch(ctx context.Context, remote string, refspecs ...string) error
	MergeBase(a, b string) (string, error)
	FirstParentLog(from, until string) ([]*gitrepo.Commit, error)
}

// PullRequest is a pull request and the links it contains.
type PullRequest struct {
	Number int
	Title  string
	Author string
	Base   string
	Closed bool
	Links  []Link
}

func (p *PullRequest) String() string {
	return fmt.Sprintf("#%d %s '%s'", p.Number, p.Author, p.Title)
}

// Mismatch is a link whose counterpart in the linked pull request is
// missing or contradicts it.
type Mismatch struct {
	PR     int
	Link   Link
	Reason string
}

func (m *Mismatch) String() string {
	return fmt.Sprintf("#%d %s: %s", m.PR, m.Link, m.Reason)
}

// Result is the outcome of comparing two branches.
type Result struct {
	BranchA string
	BranchB string
	// UnrebasedA are the pull requests that were merged into BranchA
	// since it forked from BranchB and that are not linked to a pull
	// request of BranchB.
	UnrebasedA []*PullRequest
	UnrebasedB []*PullRequest
	Mismatches []*Mismatch
}

// HasProblems returns true if unrebased pull requests or mismatching links
// were found.
func (r *Result) HasProblems() bool {
	return len(r.UnrebasedA) > 0 || len(r.UnrebasedB) > 0 || len(r.Mismatches) > 0
}

func writePRList(sb *strings.Builder, title string, prs []*PullRequest) {
	if len(prs) == 0 {
		return
	}

	sb.WriteString(title)
	sb.WriteString(":\n")

	for _, pr := range prs {
		fmt.Fprintf(sb, "  - %s\n", pr)
	}
}

func (r *Result) String() string {
	var sb strings.Builder

	if !r.HasProblems() {
		fmt.Fprintf(&sb, "All pull requests of %s and %s are rebased.\n", r.BranchA, r.BranchB)
		return sb.String()
	}

	writePRList(&sb, fmt.Sprintf("Merged into %s, not rebased to %s", r.BranchA, r.BranchB), r.UnrebasedA)
	writePRList(&sb, fmt.Sprintf("Merged into %s, not rebased to %s", r.BranchB, r.BranchA), r.UnrebasedB)

	if len(r.Mismatches) > 0 {
		sb.WriteString("Link mismatches:\n")
		for _, m := range r.Mismatches {
			fmt.Fprintf(&sb, "  - %s\n", m)
		}
	}

	return sb.String()
}

// Tracker compares the merged pull requests of 2 branches.
type Tracker struct {
	clt     GithubClient
	retryer *retry.Retryer
	repo    Repository
	remote  string
	owner   string
	name    string
	cache   *Cache

	logger *zap.Logger
}

// NewTracker returns a Tracker for the GitHub repository owner/name that is
// checked out in repo.
// If cache is nil, links are always retrieved from GitHub.
func NewTracker(clt GithubClient, retryer *retry.Retryer, repo Repository, remote, owner, name string, cache *Cache) *Tracker {
	return &Tracker{
		clt:     clt,
		retryer: retryer,
		repo:    repo,
		remote:  remote,
		owner:   owner,
		name:    name,
		cache:   cache,
		logger: zap.L().Named(loggerName).With(
			logfields.RepositoryOwner(owner),
			logfields.Repository(name),
		),
	}
}

// Check fetches branchA and branchB from the remote and returns the pull
// requests that were merged into one of them since their merge base and
// are not linked to the other branch.
func (t *Tracker) Check(ctx context.Context, branchA, branchB string) (*Result, error) {
	refA, err := t.fetch(ctx, branchA)
	if err != nil {
		return nil, err
	}

	refB, err := t.fetch(ctx, branchB)
	if err != nil {
		return nil, err
	}

	base, err := t.repo.MergeBase(refA, refB)
	if err != nil {
		return nil, fmt.Errorf("determining merge base of %s and %s failed: %w", branchA, branchB, err)
	}

	mergedA, err := t.mergedPRs(refA, base)
	if err != nil {
		return nil, err
	}

	mergedB, err := t.mergedPRs(refB, base)
	if err != nil {
		return nil, err
	}

	t.logger.Debug(
		"found merged pull requests",
		logfields.Event("merged_prs_found"),
		zap.String("merge_base", base),
		zap.Ints("merged_prs_a", mergedA),
		zap.Ints("merged_prs_b", mergedB),
	)

	prs, err := t.closure(ctx, append(append([]int(nil), mergedA...), mergedB...))
	if err != nil {
		return nil, err
	}

	return &Result{
		BranchA:    branchA,
		BranchB:    branchB,
		UnrebasedA: unlinked(mergedA, prs, branchB, toIntSet(mergedB)),
		UnrebasedB: unlinked(mergedB, prs, branchA, toIntSet(mergedA)),
		Mismatches: mismatches(prs),
	}, nil
}

func (t *Tracker) fetch(ctx context.Context, branch string) (string, error) {
	trackingRef := fmt.Sprintf("refs/remotes/%s/%s", t.remote, branch)

	err := t.repo.Fetch(ctx, t.remote, fmt.Sprintf("+refs/heads/%s:%s", branch, trackingRef))
	if err != nil {
		return "", fmt.Errorf("fetching %s failed: %w", branch, err)
	}

	return trackingRef, nil
}

var mergedPRRe = regexp.MustCompile(`^Merge pull request #([0-9]+) from`)

// mergedPRs returns the numbers of the pull requests whose GitHub merge
// commits are in the first-parent history of ref, newer than until, in
// ascending order.
func (t *Tracker) mergedPRs(ref, until string) ([]int, error) {
	commits, err := t.repo.FirstParentLog(ref, until)
	if err != nil {
		return nil, fmt.Errorf("reading history of %s failed: %w", ref, err)
	}

	var result []int
	for _, c := range commits {
		m := mergedPRRe.FindStringSubmatch(c.Subject)
		if m == nil {
			continue
		}

		nr, _ := strconv.Atoi(m[1])
		result = append(result, nr)
	}

	sort.Ints(result)

	return result, nil
}

// closure retrieves the pull requests in start and all pull requests that
// are transitively linked from them.
// Pull requests that do not exist are contained with a nil value.
func (t *Tracker) closure(ctx context.Context, start []int) (map[int]*PullRequest, error) {
	visited := map[int]*PullRequest{}
	worklist := append([]int(nil), start...)

	for len(worklist) > 0 {
		nr := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		if _, exists := visited[nr]; exists {
			continue
		}

		pr, err := t.pullRequest(ctx, nr)
		if err != nil {
			return nil, err
		}

		visited[nr] = pr
		if pr == nil {
			continue
		}

		for _, l := range pr.Links {
			if _, exists := visited[l.PR]; !exists {
				worklist = append(worklist, l.PR)
			}
		}
	}

	return visited, nil
}

// pullRequest retrieves a pull request and its links. If the pull request
// does not exist, nil is returned.
func (t *Tracker) pullRequest(ctx context.Context, nr int) (*PullRequest, error) {
	logF := logfields.PullRequest(nr)

	ghPR, err := retry.WithRetries(ctx, t.retryer, func(ctx context.Context) (*github.PullRequest, error) {
		return t.clt.GetPullRequest(ctx, t.owner, t.name, nr)
	}, logF)
	if err != nil {
		if githubclt.IsNotFound(err) {
			t.logger.Info("linked pull request does not exist", logfields.Event("linked_pr_not_found"), logF)
			return nil, nil
		}

		return nil, fmt.Errorf("retrieving pull request #%d failed: %w", nr, err)
	}

	pr := PullRequest{
		Number: nr,
		Title:  ghPR.GetTitle(),
		Author: ghPR.GetUser().GetLogin(),
		Base:   ghPR.GetBase().GetRef(),
		Closed: ghPR.GetState() == "closed",
	}

	if t.cache != nil {
		if links, exists := t.cache.Get(nr); exists {
			pr.Links = links
			return &pr, nil
		}
	}

	comments, err := retry.WithRetries(ctx, t.retryer, func(ctx context.Context) ([]*github.IssueComment, error) {
		return t.clt.ListIssueComments(ctx, t.owner, t.name, nr)
	}, logF)
	if err != nil {
		return nil, fmt.Errorf("retrieving comments of pull request #%d failed: %w", nr, err)
	}

	pr.Links = ParseLinks(ghPR.GetBody())
	for _, c := range comments {
		for _, l := range ParseLinks(c.GetBody()) {
			pr.Links = appendLink(pr.Links, l)
		}
	}

	// links of open pull requests and of closed ones without links can
	// still change
	if t.cache != nil && pr.Closed && len(pr.Links) > 0 {
		t.cache.Put(nr, pr.Links)
	}

	return &pr, nil
}

// unlinked returns the pull requests in merged that have no link to a pull
// request that targets otherBranch or was merged into it.
func unlinked(merged []int, prs map[int]*PullRequest, otherBranch string, mergedOther map[int]struct{}) []*PullRequest {
	var result []*PullRequest

	for _, nr := range merged {
		pr := prs[nr]
		if pr == nil {
			continue
		}

		if !isLinkedTo(pr, prs, otherBranch, mergedOther) {
			result = append(result, pr)
		}
	}

	return result
}

func isLinkedTo(pr *PullRequest, prs map[int]*PullRequest, branch string, mergedInto map[int]struct{}) bool {
	for _, l := range pr.Links {
		if _, exists := mergedInto[l.PR]; exists {
			return true
		}

		if target := prs[l.PR]; target != nil && target.Base == branch {
			return true
		}
	}

	return false
}

// mismatches returns the links whose target does not exist, does not link
// back or links back with the same direction.
func mismatches(prs map[int]*PullRequest) []*Mismatch {
	var result []*Mismatch

	numbers := make([]int, 0, len(prs))
	for nr := range prs {
		numbers = append(numbers, nr)
	}
	sort.Ints(numbers)

	for _, nr := range numbers {
		pr := prs[nr]
		if pr == nil {
			continue
		}

		for _, l := range pr.Links {
			target := prs[l.PR]
			if target == nil {
				result = append(result, &Mismatch{
					PR:     nr,
					Link:   l,
					Reason: fmt.Sprintf("pull request #%d does not exist", l.PR),
				})
				continue
			}

			backLink := Link{Direction: l.Direction.Opposite(), PR: nr}
			if hasLink(target.Links, backLink) {
				continue
			}

			sameDir := Link{Direction: l.Direction, PR: nr}
			if hasLink(target.Links, sameDir) {
				// reported once for both pull requests
				if nr < l.PR {
					result = append(result, &Mismatch{
						PR:     nr,
						Link:   l,
						Reason: fmt.Sprintf("#%d contains the contradicting link %s", l.PR, sameDir),
					})
				}
				continue
			}

			result = append(result, &Mismatch{
				PR:     nr,
				Link:   l,
				Reason: fmt.Sprintf("#%d does not contain %s", l.PR, backLink),
			})
		}
	}

	return result
}

func toIntSet(sl []int) map[int]struct{} {
	result := make(map[int]struct{}, len(sl))
	for _, i := range sl {
		result[i] = struct{}{}
	}

	return result
}
