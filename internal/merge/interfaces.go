package merge

import (
	"context"

	"github.com/google/go-github/v59/github"

	"github.com/simplesurance/prmerger/internal/githubclt"
	"github.com/simplesurance/prmerger/internal/gitrepo"
)

//go:generate mockgen -destination=mocks/githubclient_mock.go -package=mocks . GithubClient

// GithubClient is the subset of the GitHub API that is used for selecting
// and annotating pull requests.
type GithubClient interface {
	ListPullRequests(ctx context.Context, owner, repo, state, base, sort, sortDirection string) githubclt.PRIterator
	ListIssueComments(ctx context.Context, owner, repo string, issueOrPRNr int) ([]*github.IssueComment, error)
	CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error
	EditIssueComment(ctx context.Context, owner, repo string, commentID int64, comment string) error
	CombinedStatus(ctx context.Context, owner, repo, ref string) (string, int, error)
	HeadCIStatus(ctx context.Context, owner, repo string, prNumber int) (*githubclt.HeadCIStatus, error)
	CreateCommitStatus(ctx context.Context, owner, repo, sha string, status *githubclt.CommitStatus) error
	IsPublicOrgMember(ctx context.Context, org, user string) (bool, error)
	AuthenticatedUser(ctx context.Context) (string, error)
}

// Repository is a local git repository with a working tree that pull
// requests and branches are merged into.
type Repository interface {
	Dir() string
	Head(ctx context.Context) (string, error)
	RevParse(ctx context.Context, rev string) (string, error)

	Merge(ctx context.Context, rev, msg string) error
	ConflictingFiles(ctx context.Context) ([]string, error)
	ResetHard(ctx context.Context, rev string) error
	ResetSoft(ctx context.Context, rev string) error
	ChangedFiles(ctx context.Context, from, to string) ([]string, error)
	MergeBase(a, b string) (string, error)
	FastForward(ctx context.Context, rev string) ([]*gitrepo.Commit, error)

	Fetch(ctx context.Context, remote string, refspecs ...string) error
	Push(ctx context.Context, remote, refspec string, force bool) error
	AddRemote(ctx context.Context, name, url string) error
	RemoveRemote(ctx context.Context, name string) error
	Remotes() ([]string, error)
	RemoteURL(name string) (string, error)

	Submodules() ([]*gitrepo.Submodule, error)
	AddTracked(ctx context.Context) error
	Add(ctx context.Context, paths ...string) error
	WriteTree(ctx context.Context) (string, error)
	TreeOf(ctx context.Context, rev string) (string, error)
	CommitTree(ctx context.Context, tree, msg string, parents ...string) (string, error)

	CheckRefFormat(ctx context.Context, ref string) error
	TagExists(name string) (bool, error)
	Tag(ctx context.Context, name, msg string) error
	BranchCommit(name string) (string, error)

	SetConfig(ctx context.Context, scope gitrepo.ConfigScope, key, value string) error
	GetConfig(ctx context.Context, scope gitrepo.ConfigScope, key string) (string, error)
}

// RepositoryOpener opens the repository in the directory dir.
type RepositoryOpener func(dir string) (Repository, error)

// OpenGitRepository is a RepositoryOpener for gitrepo repositories.
func OpenGitRepository(dir string) (Repository, error) {
	repo, err := gitrepo.Open(dir)
	if err != nil {
		return nil, err
	}

	return repo, nil
}
