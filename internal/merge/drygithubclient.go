package merge

import (
	"context"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/githubclt"
	"github.com/simplesurance/prmerger/internal/logfields"
)

// DryGithubClient is a github-client that does not do any changes on github.
// All operations that could cause a change are simulated and always succeed.
// All all other operations are forwarded to a wrapped GithubClient.
type DryGithubClient struct {
	clt    GithubClient
	logger *zap.Logger
}

func NewDryGithubClient(clt GithubClient, logger *zap.Logger) *DryGithubClient {
	return &DryGithubClient{
		clt:    clt,
		logger: logger.Named("dry_github_client"),
	}
}

func (c *DryGithubClient) ListPullRequests(ctx context.Context, owner, repo, state, base, sort, sortDirection string) githubclt.PRIterator {
	return c.clt.ListPullRequests(ctx, owner, repo, state, base, sort, sortDirection)
}

func (c *DryGithubClient) ListIssueComments(ctx context.Context, owner, repo string, issueOrPRNr int) ([]*github.IssueComment, error) {
	return c.clt.ListIssueComments(ctx, owner, repo, issueOrPRNr)
}

func (c *DryGithubClient) CreateIssueComment(_ context.Context, _, _ string, issueOrPRNr int, comment string) error {
	c.logger.Info(
		"simulated creating of github issue comment, no comment created on github",
		logfields.Event("github_comment_simulated"),
		logfields.PullRequest(issueOrPRNr),
		zap.String("comment", comment),
	)
	return nil
}

func (c *DryGithubClient) EditIssueComment(_ context.Context, _, _ string, commentID int64, comment string) error {
	c.logger.Info(
		"simulated editing of github issue comment, no comment changed on github",
		logfields.Event("github_comment_edit_simulated"),
		zap.Int64("github.comment_id", commentID),
		zap.String("comment", comment),
	)
	return nil
}

func (c *DryGithubClient) CombinedStatus(ctx context.Context, owner, repo, ref string) (string, int, error) {
	return c.clt.CombinedStatus(ctx, owner, repo, ref)
}

func (c *DryGithubClient) HeadCIStatus(ctx context.Context, owner, repo string, prNumber int) (*githubclt.HeadCIStatus, error) {
	return c.clt.HeadCIStatus(ctx, owner, repo, prNumber)
}

func (c *DryGithubClient) CreateCommitStatus(_ context.Context, _, _, sha string, status *githubclt.CommitStatus) error {
	c.logger.Info(
		"simulated creating of commit status, no status created on github",
		logfields.Event("github_commit_status_simulated"),
		logfields.Commit(sha),
		zap.String("state", status.State),
		zap.String("context", status.Context),
	)
	return nil
}

func (c *DryGithubClient) IsPublicOrgMember(ctx context.Context, org, user string) (bool, error) {
	return c.clt.IsPublicOrgMember(ctx, org, user)
}

func (c *DryGithubClient) AuthenticatedUser(ctx context.Context) (string, error) {
	return c.clt.AuthenticatedUser(ctx)
}
