package githubclt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shurcooL/githubv4"
)

// Commit status states, as used by the REST API.
const (
	StateSuccess = "success"
	StatePending = "pending"
	StateFailure = "failure"
	StateError   = "error"
	// StateNone is used when a commit has no statuses and check runs.
	StateNone = ""
)

// StatusContext is the result of a single check run or commit status.
type StatusContext struct {
	Name     string
	State    string
	Required bool
}

// HeadCIStatus is the status check rollup of the head commit of a pull
// request.
type HeadCIStatus struct {
	Commit   string
	State    string
	Contexts []*StatusContext
}

// HeadCIStatus returns the [status check rollup] of the head commit of a PR.
// Contrary to the combined status of the REST API it includes check runs.
//
// State is one of the REST commit states. It is StatePending instead of
// StateSuccess when a check that is required by the branch protection of
// the base branch did not report yet.
//
// [status check rollup]: https://docs.github.com/en/graphql/reference/objects#statuscheckrollup
func (clt *Client) HeadCIStatus(ctx context.Context, owner, repo string, prNumber int) (*HeadCIStatus, error) {
	var result *HeadCIStatus
	var cursor *githubv4.String

	for {
		page, err := clt.statusRollupPage(ctx, owner, repo, prNumber, cursor)
		if err != nil {
			return nil, clt.wrapGraphQLRetryableErrors(err)
		}

		switch {
		case result == nil:
			result = &HeadCIStatus{
				Commit: page.commit,
				State:  rollupState(page.state),
			}

		case result.Commit != page.commit:
			// a new commit was pushed while the pages were retrieved
			result = nil
			cursor = nil
			continue
		}

		result.Contexts = append(result.Contexts, page.contexts...)

		if page.nextCursor == "" {
			markRequired(result, page.requiredContexts)
			return result, nil
		}

		cursor = &page.nextCursor
	}
}

func rollupState(state githubv4.StatusState) string {
	switch state {
	case githubv4.StatusStateExpected:
		return StatePending
	default:
		return strings.ToLower(string(state))
	}
}

// markRequired flags the contexts that are required by the branch
// protection. Required contexts that did not report are added as pending.
func markRequired(status *HeadCIStatus, required []string) {
	byName := make(map[string]*StatusContext, len(status.Contexts))
	for _, c := range status.Contexts {
		byName[c.Name] = c
	}

	for _, name := range required {
		if c, exists := byName[name]; exists {
			c.Required = true
			continue
		}

		c := StatusContext{Name: name, State: StatePending, Required: true}
		status.Contexts = append(status.Contexts, &c)
		byName[name] = &c

		if status.State == StateSuccess || status.State == StateNone {
			status.State = StatePending
		}
	}
}

func checkRunState(status githubv4.CheckStatusState, conclusion githubv4.CheckConclusionState) (string, error) {
	if status != githubv4.CheckStatusStateCompleted {
		return StatePending, nil
	}

	switch conclusion {
	case githubv4.CheckConclusionStateNeutral,
		githubv4.CheckConclusionStateSkipped,
		githubv4.CheckConclusionStateSuccess:
		return StateSuccess, nil

	case githubv4.CheckConclusionStateActionRequired:
		return StatePending, nil

	case githubv4.CheckConclusionStateCancelled,
		githubv4.CheckConclusionStateFailure,
		githubv4.CheckConclusionStateStale,
		githubv4.CheckConclusionStateStartupFailure,
		githubv4.CheckConclusionStateTimedOut:
		return StateFailure, nil

	default:
		return "", fmt.Errorf("unsupported check run conclusion: %q", conclusion)
	}
}

type statusRollupPage struct {
	commit           string
	state            githubv4.StatusState
	requiredContexts []string
	contexts         []*StatusContext
	nextCursor       githubv4.String
}

type rollupContextNode struct {
	CheckRun struct {
		Name       string
		Status     githubv4.CheckStatusState
		Conclusion githubv4.CheckConclusionState
	} `graphql:"... on CheckRun"`
	StatusContext struct {
		Context string
		State   githubv4.StatusState
	} `graphql:"... on StatusContext"`
}

func (n *rollupContextNode) toStatusContext() (*StatusContext, error) {
	if n.CheckRun.Name != "" {
		state, err := checkRunState(n.CheckRun.Status, n.CheckRun.Conclusion)
		if err != nil {
			return nil, fmt.Errorf("check run %q: %w", n.CheckRun.Name, err)
		}

		return &StatusContext{Name: n.CheckRun.Name, State: state}, nil
	}

	if n.StatusContext.Context == "" {
		return nil, errors.New("status check rollup contains a context that is neither a check run nor a commit status")
	}

	return &StatusContext{
		Name:  n.StatusContext.Context,
		State: rollupState(n.StatusContext.State),
	}, nil
}

func (clt *Client) statusRollupPage(ctx context.Context, owner, repo string, prNumber int, cursor *githubv4.String) (*statusRollupPage, error) {
	var q struct {
		Repository struct {
			PullRequest struct {
				BaseRef struct {
					BranchProtectionRule struct {
						RequiredStatusCheckContexts []string
					}
				}
				Commits struct {
					Nodes []struct {
						Commit struct {
							Oid               string
							StatusCheckRollup struct {
								State    githubv4.StatusState
								Contexts struct {
									PageInfo struct {
										EndCursor   githubv4.String
										HasNextPage bool
									}
									Nodes []rollupContextNode
								} `graphql:"contexts(first: 100, after: $cursor)"`
							}
						}
					}
				} `graphql:"commits(last: 1)"`
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]any{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(repo),
		"number": githubv4.Int(prNumber),
		"cursor": cursor,
	}

	if err := clt.graphQLClt.Query(ctx, &q, vars); err != nil {
		return nil, err
	}

	pr := q.Repository.PullRequest
	if len(pr.Commits.Nodes) == 0 {
		return nil, errors.New("graphql query returned no commits for the pull request")
	}

	commit := pr.Commits.Nodes[0].Commit
	result := statusRollupPage{
		commit:           commit.Oid,
		state:            commit.StatusCheckRollup.State,
		requiredContexts: pr.BaseRef.BranchProtectionRule.RequiredStatusCheckContexts,
		contexts:         make([]*StatusContext, 0, len(commit.StatusCheckRollup.Contexts.Nodes)),
	}

	for i := range commit.StatusCheckRollup.Contexts.Nodes {
		sc, err := commit.StatusCheckRollup.Contexts.Nodes[i].toStatusContext()
		if err != nil {
			return nil, err
		}

		result.contexts = append(result.contexts, sc)
	}

	pageInfo := commit.StatusCheckRollup.Contexts.PageInfo
	if pageInfo.HasNextPage {
		if pageInfo.EndCursor == "" {
			return nil, errors.New("status check rollup has a next page but no end cursor")
		}

		result.nextCursor = pageInfo.EndCursor
	}

	return &result, nil
}
