// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/prmerger/internal/logfields"
	"github.com/simplesurance/prmerger/internal/mergeerr"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

// New returns a new github api client.
func New(oauthAPItoken string) *Client {
	httpClient := newHTTPClient(oauthAPItoken)
	return &Client{
		restClt:    github.NewClient(httpClient),
		graphQLClt: githubv4.NewClient(httpClient),
		logger:     zap.L().Named(loggerName),
	}
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is an github API client.
// All methods return a mergeerr.RetryableError when an operation can be
// retried. This is the case for rate limit errors, HTTP 405, 502 and other
// 5xx responses, network timeouts and TLS errors.
type Client struct {
	restClt    *github.Client
	graphQLClt *githubv4.Client
	logger     *zap.Logger
}

// GetPullRequest returns the pull request with the given number.
func (clt *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	pr, _, err := clt.restClt.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	return pr, nil
}

// ListIssueComments returns all comments of an issue or pull request in
// ascending creation order.
func (clt *Client) ListIssueComments(ctx context.Context, owner, repo string, issueOrPRNr int) ([]*github.IssueComment, error) {
	var result []*github.IssueComment

	opts := github.IssueListCommentsOptions{
		Sort:      github.String("created"),
		Direction: github.String("asc"),
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	for {
		comments, resp, err := clt.restClt.Issues.ListComments(ctx, owner, repo, issueOrPRNr, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		result = append(result, comments...)

		if resp.NextPage == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// CreateIssueComment creates a comment in a issue or pull request
func (clt *Client) CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error {
	_, _, err := clt.restClt.Issues.CreateComment(ctx, owner, repo, issueOrPRNr, &github.IssueComment{Body: &comment})
	return clt.wrapRetryableErrors(err)
}

// EditIssueComment replaces the body of an existing comment.
func (clt *Client) EditIssueComment(ctx context.Context, owner, repo string, commentID int64, comment string) error {
	_, _, err := clt.restClt.Issues.EditComment(ctx, owner, repo, commentID, &github.IssueComment{Body: &comment})
	return clt.wrapRetryableErrors(err)
}

// CombinedStatus returns the combined commit status state of ref and the
// number of statuses it was computed from.
// If no statuses exist for ref, totalCount is 0.
func (clt *Client) CombinedStatus(ctx context.Context, owner, repo, ref string) (state string, totalCount int, err error) {
	status, _, err := clt.restClt.Repositories.GetCombinedStatus(ctx, owner, repo, ref, &github.ListOptions{PerPage: 100})
	if err != nil {
		return "", 0, clt.wrapRetryableErrors(err)
	}

	return status.GetState(), status.GetTotalCount(), nil
}

// CommitStatus is a status that is reported for a commit.
type CommitStatus struct {
	State       string
	TargetURL   string
	Description string
	Context     string
}

// CreateCommitStatus creates a commit status for sha.
func (clt *Client) CreateCommitStatus(ctx context.Context, owner, repo, sha string, status *CommitStatus) error {
	repoStatus := github.RepoStatus{
		State:       github.String(status.State),
		Description: github.String(status.Description),
		Context:     github.String(status.Context),
	}

	if status.TargetURL != "" {
		repoStatus.TargetURL = github.String(status.TargetURL)
	}

	_, _, err := clt.restClt.Repositories.CreateStatus(ctx, owner, repo, sha, &repoStatus)
	return clt.wrapRetryableErrors(err)
}

// IsPublicOrgMember returns true if user is a public member of the organization.
func (clt *Client) IsPublicOrgMember(ctx context.Context, org, user string) (bool, error) {
	isMember, _, err := clt.restClt.Organizations.IsPublicMember(ctx, org, user)
	if err != nil {
		return false, clt.wrapRetryableErrors(err)
	}

	return isMember, nil
}

// AuthenticatedUser returns the login of the user that the API token
// belongs to.
func (clt *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	user, _, err := clt.restClt.Users.Get(ctx, "")
	if err != nil {
		return "", clt.wrapRetryableErrors(err)
	}

	login := user.GetLogin()
	if login == "" {
		return "", errors.New("github returned a user with an empty login")
	}

	return login, nil
}

type PRIterator interface {
	Next() (*github.PullRequest, error)
}

type PRIter struct {
	clt *Client

	ctx   context.Context
	owner string
	repo  string

	filterState   string
	filterBase    string
	sortOrder     string
	sortDirection string

	unseen []*github.PullRequest

	nextPage int
	finished bool
}

// Next returns the next pullRequest.
// When the last result was returned a nil PullRequest is returned.
func (it *PRIter) Next() (*github.PullRequest, error) {
	if len(it.unseen) > 0 {
		result := it.unseen[0]
		it.unseen = it.unseen[1:]

		return result, nil
	}

	if it.finished {
		return nil, nil
	}

	prs, resp, err := it.clt.restClt.PullRequests.List(it.ctx, it.owner, it.repo, &github.PullRequestListOptions{
		State:     it.filterState,
		Base:      it.filterBase,
		Sort:      it.sortOrder,
		Direction: it.sortDirection,
		ListOptions: github.ListOptions{
			Page:    it.nextPage,
			PerPage: 100,
		},
	})
	if err != nil {
		return nil, it.clt.wrapRetryableErrors(err)
	}

	if resp.NextPage == 0 || len(prs) == 0 {
		it.finished = true
	} else {
		it.nextPage = resp.NextPage
	}

	it.unseen = prs

	if len(it.unseen) == 0 {
		return nil, nil
	}

	return it.Next()
}

// ListPullRequests returns an iterator for receiving all pull requests with
// the given state whose base branch is base.
// If base is empty, pull requests for all base branches are returned.
// The parameters state, sort, sortDirection expect the same values then
// their pendants in the struct github.PullRequestListOptions.
func (clt *Client) ListPullRequests(ctx context.Context, owner, repo, state, base, sort, sortDirection string) PRIterator { // interface is returned to make the method mockable
	return &PRIter{
		clt:           clt,
		ctx:           ctx,
		owner:         owner,
		repo:          repo,
		filterState:   state,
		filterBase:    base,
		sortOrder:     sort,
		sortDirection: sortDirection,
		nextPage:      1,
	}
}

func (clt *Client) wrapRetryableErrors(err error) error {
	if err == nil {
		return nil
	}

	switch v := err.(type) {
	case *github.RateLimitError:
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)

		return mergeerr.NewRetryableError(err, v.Rate.Reset.Time)

	case *github.AbuseRateLimitError:
		clt.logger.Info(
			"secondary rate limit exceeded",
			logfields.Event("github_api_secondary_rate_limit_exceeded"),
			zap.Duration("github_api_retry_after", v.GetRetryAfter()),
		)

		return mergeerr.NewRetryableError(err, time.Now().Add(v.GetRetryAfter()))

	case *github.ErrorResponse:
		if v.Response != nil && isRetryableHTTPStatus(v.Response.StatusCode) {
			return mergeerr.NewRetryableAnytimeError(err)
		}

		return err
	}

	if isTransientNetworkError(err) {
		return mergeerr.NewRetryableAnytimeError(err)
	}

	return err
}

// IsNotFound returns true if err is a GitHub API response with the status
// code 404.
func IsNotFound(err error) bool {
	var respErr *github.ErrorResponse
	return errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound
}

func isRetryableHTTPStatus(code int) bool {
	if code == http.StatusMethodNotAllowed {
		return true
	}

	return code >= 500 && code < 600
}

func isTransientNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var recordHdrErr tls.RecordHeaderError
	if errors.As(err, &recordHdrErr) {
		return true
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}

	var unknownAuthErr x509.UnknownAuthorityError
	return errors.As(err, &unknownAuthErr)
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLRetryableErrors(err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		if isTransientNetworkError(err) {
			return mergeerr.NewRetryableAnytimeError(err)
		}

		return err
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
			zap.String("http_errcode", matches[1]),
		)
		return err
	}

	if isRetryableHTTPStatus(errcode) {
		return mergeerr.NewRetryableAnytimeError(err)
	}

	return err
}

// FullName returns "owner/repo".
func FullName(owner, repo string) string {
	return fmt.Sprintf("%s/%s", owner, repo)
}
