package merge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/prmerger/internal/gitrepo"
	"github.com/simplesurance/prmerger/internal/merge/mocks"
	"github.com/simplesurance/prmerger/internal/retry"
)

const (
	repoOwner = "ome"
	baseRepo  = "top"
	base      = "dev"
)

// prSliceIter is a githubclt.PRIterator returning pull requests from a
// slice.
type prSliceIter struct {
	prs []*github.PullRequest
}

func (it *prSliceIter) Next() (*github.PullRequest, error) {
	if len(it.prs) == 0 {
		return nil, nil
	}

	pr := it.prs[0]
	it.prs = it.prs[1:]

	return pr, nil
}

func newPR(nr int, author, headRepo, sha string, labels ...string) *github.PullRequest {
	pr := github.PullRequest{
		Number: github.Int(nr),
		Title:  github.String(fmt.Sprintf("change %d", nr)),
		Body:   github.String(fmt.Sprintf("description of change %d", nr)),
		User:   &github.User{Login: github.String(author)},
		Base:   &github.PullRequestBranch{Ref: github.String(base)},
		Head: &github.PullRequestBranch{
			Ref: github.String(fmt.Sprintf("pr-%d", nr)),
			SHA: github.String(sha),
		},
	}

	if headRepo != "" {
		pr.Head.Repo = &github.Repository{FullName: github.String(headRepo)}
	}

	for _, l := range labels {
		pr.Labels = append(pr.Labels, &github.Label{Name: github.String(l)})
	}

	return &pr
}

func mockListPullRequests(clt *mocks.MockGithubClient, repo string, prs ...*github.PullRequest) *gomock.Call {
	return clt.
		EXPECT().
		ListPullRequests(gomock.Any(), gomock.Eq(repoOwner), gomock.Eq(repo), gomock.Eq("open"), gomock.Eq(base), gomock.Any(), gomock.Any()).
		Return(&prSliceIter{prs: prs})
}

func mockNoComments(clt *mocks.MockGithubClient) *gomock.Call {
	return clt.
		EXPECT().
		ListIssueComments(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil).
		AnyTimes()
}

func testRetryer() *retry.Retryer {
	return retry.New(retry.WithMaxAttempts(1))
}

func installTestLogger(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))
}

// gitEnv provides bare repositories that act as GitHub remotes.
// The URL https://github.com/<org>/<repo>.git is rewritten by git to the
// bare repository of <org>/<repo>.
type gitEnv struct {
	t          *testing.T
	originsDir string
}

func newGitEnv(t *testing.T) *gitEnv {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not found")
	}

	installTestLogger(t)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")

	env := gitEnv{t: t, originsDir: t.TempDir()}

	env.git(home, "config", "--global", "user.name", "Test")
	env.git(home, "config", "--global", "user.email", "test@example.com")
	env.git(home, "config", "--global", "commit.gpgsign", "false")
	env.git(home, "config", "--global", "protocol.file.allow", "always")
	env.git(home, "config", "--global", "advice.detachedHead", "false")
	env.git(home, "config", "--global", "url."+env.originsDir+"/.insteadOf", "https://github.com/")

	return &env
}

func (e *gitEnv) git(dir string, args ...string) string {
	e.t.Helper()

	runner, err := gitrepo.NewRunner(dir)
	require.NoError(e.t, err)

	res, err := runner.Run(context.Background(), args...)
	require.NoError(e.t, err, "git %s", strings.Join(args, " "))

	return strings.TrimSpace(res.Stdout)
}

func githubURL(fullName string) string {
	return "https://github.com/" + fullName + ".git"
}

func (e *gitEnv) clone(fullName string) string {
	e.t.Helper()

	parent := e.t.TempDir()
	e.git(parent, "clone", "--quiet", "--recurse-submodules", githubURL(fullName), "work")

	return filepath.Join(parent, "work")
}

func (e *gitEnv) commitFile(dir, name, content, msg string) string {
	e.t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(e.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o644))

	e.git(dir, "add", name)
	e.git(dir, "commit", "--quiet", "-m", msg)

	return e.git(dir, "rev-parse", "HEAD")
}

// newOrigin creates the remote repository fullName with one commit on the
// base branch.
func (e *gitEnv) newOrigin(fullName string) {
	e.t.Helper()

	bare := filepath.Join(e.originsDir, fullName+".git")
	require.NoError(e.t, os.MkdirAll(bare, 0o755))

	e.git(bare, "init", "--quiet", "--bare")
	e.git(bare, "symbolic-ref", "HEAD", "refs/heads/"+base)

	work := e.t.TempDir()
	e.git(work, "init", "--quiet")
	e.git(work, "symbolic-ref", "HEAD", "refs/heads/"+base)
	e.commitFile(work, "README", fullName+"\n", "initial commit")
	e.git(work, "push", "--quiet", githubURL(fullName), "HEAD:refs/heads/"+base)
}

// pushBranch creates branch from the base branch in the remote
// repository, with a commit that writes content to file.
func (e *gitEnv) pushBranch(fullName, branch, file, content string) string {
	e.t.Helper()

	work := e.clone(fullName)
	e.git(work, "checkout", "--quiet", "-b", branch)
	sha := e.commitFile(work, file, content, "change "+file)
	e.git(work, "push", "--quiet", "origin", "HEAD:refs/heads/"+branch)

	return sha
}

// pushToBase adds a commit to the base branch of the remote repository.
func (e *gitEnv) pushToBase(fullName, file, content, msg string) string {
	e.t.Helper()

	work := e.clone(fullName)
	sha := e.commitFile(work, file, content, msg)
	e.git(work, "push", "--quiet", "origin", "HEAD:refs/heads/"+base)

	return sha
}

func (e *gitEnv) addSubmodule(fullName, subFullName, path string) {
	e.t.Helper()

	work := e.clone(fullName)
	e.git(work, "submodule", "--quiet", "add", githubURL(subFullName), path)
	e.git(work, "commit", "--quiet", "-m", "add submodule "+path)
	e.git(work, "push", "--quiet", "origin", "HEAD:refs/heads/"+base)
}

func (e *gitEnv) workspace(fullName string) *gitrepo.Repo {
	e.t.Helper()

	repo, err := gitrepo.Open(e.clone(fullName))
	require.NoError(e.t, err)

	return repo
}
