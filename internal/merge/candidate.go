package merge

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/logfields"
)

type CandidateType uint8

const (
	CandidateTypeUndefined CandidateType = iota
	CandidatePullRequest
	CandidateBranch
)

// Candidate is a pull request or a branch that is considered for merging.
type Candidate struct {
	Type CandidateType

	// Number is the pull request number, 0 for branches.
	Number int
	// HeadRepo is the "org/repo" name of the repository containing the
	// head branch. It is empty if the repository of a pull request was
	// deleted.
	HeadRepo string
	Branch   string
	HeadSHA  string

	Title  string
	Author string
	Labels []string
	Base   string
	Body   string

	// Status is the commit status state of the head commit, it is only
	// retrieved when commit statuses are checked.
	Status string

	comments []*github.IssueComment
	// pr is the JSON representation of the pull request, it is evaluated
	// by filter queries.
	pr *github.PullRequest

	LogFields []zap.Field
}

func newPRCandidate(pr *github.PullRequest) *Candidate {
	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	c := Candidate{
		Type:     CandidatePullRequest,
		Number:   pr.GetNumber(),
		HeadRepo: pr.GetHead().GetRepo().GetFullName(),
		Branch:   pr.GetHead().GetRef(),
		HeadSHA:  pr.GetHead().GetSHA(),
		Title:    pr.GetTitle(),
		Author:   pr.GetUser().GetLogin(),
		Labels:   labels,
		Base:     pr.GetBase().GetRef(),
		Body:     pr.GetBody(),
		pr:       pr,
	}

	c.LogFields = []zap.Field{
		logfields.PullRequest(c.Number),
		logfields.Commit(c.HeadSHA),
	}

	return &c
}

// newBranchCandidate returns a candidate for the branch in the repository
// repoKey ("org/repo").
func newBranchCandidate(repoKey, branch string) *Candidate {
	return &Candidate{
		Type:     CandidateBranch,
		HeadRepo: repoKey,
		Branch:   branch,
		LogFields: []zap.Field{
			zap.String("candidate.repository", repoKey),
			logfields.Branch(branch),
		},
	}
}

// ID returns "#<Number>" for pull requests and "<org/repo>:<branch>" for
// branches.
func (c *Candidate) ID() string {
	if c.Type == CandidatePullRequest {
		return fmt.Sprintf("#%d", c.Number)
	}

	return c.HeadRepo + ":" + c.Branch
}

func (c *Candidate) String() string {
	if c.Type == CandidatePullRequest {
		return fmt.Sprintf("PR #%d %s '%s'", c.Number, c.Author, c.Title)
	}

	return fmt.Sprintf("branch %s", c.ID())
}

// HeadOwner returns the owner of the repository containing the head
// branch.
func (c *Candidate) HeadOwner() string {
	owner, _, _ := strings.Cut(c.HeadRepo, "/")
	return owner
}

// Exclusion is a pull request or branch that was not selected for merging.
type Exclusion struct {
	Candidate *Candidate
	Reason    string
}
