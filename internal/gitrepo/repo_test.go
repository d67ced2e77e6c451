package gitrepo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func requireGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not found")
	}
}

// initRepo creates a repository with one commit on the branch main.
func initRepo(t *testing.T) *Repo {
	t.Helper()
	requireGit(t)

	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")

	dir := t.TempDir()
	runner, err := NewRunner(dir)
	require.NoError(t, err)

	mustRun(t, runner, "init", "--quiet")
	mustRun(t, runner, "symbolic-ref", "HEAD", "refs/heads/main")
	mustRun(t, runner, "config", "user.name", "Test")
	mustRun(t, runner, "config", "user.email", "test@example.com")
	mustRun(t, runner, "config", "commit.gpgsign", "false")

	repo, err := Open(dir)
	require.NoError(t, err)

	commitFile(t, repo, "README", "readme\n", "initial")

	return repo
}

func mustRun(t *testing.T, runner *Runner, args ...string) string {
	t.Helper()

	res, err := runner.Run(context.Background(), args...)
	require.NoError(t, err)

	return res.Stdout
}

func commitFile(t *testing.T, repo *Repo, name, content, msg string) string {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir(), name), []byte(content), 0o644))
	mustRun(t, repo.git, "add", name)
	mustRun(t, repo.git, "commit", "--quiet", "-m", msg)

	head, err := repo.Head(context.Background())
	require.NoError(t, err)

	return head
}

func TestMergeConflictResetsToPremergeCommit(t *testing.T) {
	ctx := context.Background()
	repo := initRepo(t)

	mustRun(t, repo.git, "checkout", "--quiet", "-b", "a")
	commitFile(t, repo, "x.txt", "a\n", "a")
	mustRun(t, repo.git, "checkout", "--quiet", "main")
	mustRun(t, repo.git, "checkout", "--quiet", "-b", "b")
	commitFile(t, repo, "x.txt", "b\n", "b")
	mustRun(t, repo.git, "checkout", "--quiet", "main")

	require.NoError(t, repo.Merge(ctx, "a", "merge a"))

	premerge, err := repo.Head(ctx)
	require.NoError(t, err)

	err = repo.Merge(ctx, "b", "merge b")
	require.ErrorIs(t, err, ErrMergeConflict)

	files, err := repo.ConflictingFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.txt"}, files)

	require.NoError(t, repo.ResetHard(ctx, premerge))

	head, err := repo.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, premerge, head)

	assert.Empty(t, mustRun(t, repo.git, "status", "--porcelain", "--untracked-files=no"))
}

func TestMergeUnknownRevIsNotAConflict(t *testing.T) {
	repo := initRepo(t)

	err := repo.Merge(context.Background(), "doesnotexist", "msg")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMergeConflict)

	var execErr *ExecError
	assert.ErrorAs(t, err, &execErr)
}

func TestMergeBase(t *testing.T) {
	ctx := context.Background()
	repo := initRepo(t)

	forkPoint, err := repo.Head(ctx)
	require.NoError(t, err)

	mustRun(t, repo.git, "checkout", "--quiet", "-b", "topic")
	commitFile(t, repo, "topic.txt", "topic\n", "topic")
	mustRun(t, repo.git, "checkout", "--quiet", "main")
	commitFile(t, repo, "main.txt", "main\n", "main")

	base, err := repo.MergeBase("main", "topic")
	require.NoError(t, err)
	assert.Equal(t, forkPoint, base)

	files, err := repo.ChangedFiles(ctx, "main", "topic")
	require.NoError(t, err)
	assert.Equal(t, []string{"topic.txt"}, files)
}

func TestMergeBaseWithoutCommonHistory(t *testing.T) {
	repo := initRepo(t)

	mustRun(t, repo.git, "checkout", "--quiet", "--orphan", "unrelated")
	commitFile(t, repo, "other.txt", "other\n", "unrelated root")

	_, err := repo.MergeBase("main", "unrelated")
	assert.ErrorIs(t, err, ErrNoCommonAncestor)
}

func TestFastForwardReturnsNewCommits(t *testing.T) {
	ctx := context.Background()
	repo := initRepo(t)

	mustRun(t, repo.git, "checkout", "--quiet", "-b", "upstream")
	c1 := commitFile(t, repo, "1.txt", "1\n", "first\n\nbody")
	c2 := commitFile(t, repo, "2.txt", "2\n", "second")
	mustRun(t, repo.git, "checkout", "--quiet", "main")

	commits, err := repo.FastForward(ctx, "upstream")
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, c2, commits[0].Hash)
	assert.Equal(t, "second", commits[0].Subject)
	assert.Equal(t, c1, commits[1].Hash)
	assert.Equal(t, "first", commits[1].Subject)

	commits, err = repo.FastForward(ctx, "upstream")
	require.NoError(t, err)
	assert.Empty(t, commits)
}

func TestFastForwardExcludesCommitsReachableFromOldHead(t *testing.T) {
	ctx := context.Background()
	repo := initRepo(t)

	commitFile(t, repo, "1.txt", "1\n", "Merge pull request #1 from ome/one")

	mustRun(t, repo.git, "checkout", "--quiet", "-b", "feat")
	commitFile(t, repo, "feat.txt", "feat\n", "feat work")

	mustRun(t, repo.git, "checkout", "--quiet", "-b", "dev", "main")
	base := commitFile(t, repo, "base.txt", "base\n", "base work")
	mustRun(t, repo.git, "merge", "--quiet", "--no-ff", "-m", "Merge pull request #5 from ome/feat", "feat")
	merge, err := repo.Head(ctx)
	require.NoError(t, err)

	mustRun(t, repo.git, "checkout", "--quiet", "feat")

	commits, err := repo.FastForward(ctx, "dev")
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, merge, commits[0].Hash)
	assert.Equal(t, "Merge pull request #5 from ome/feat", commits[0].Subject)
	assert.Equal(t, base, commits[1].Hash)
	assert.Equal(t, "base work", commits[1].Subject)
}

func TestFastForwardDivergedBranch(t *testing.T) {
	repo := initRepo(t)

	mustRun(t, repo.git, "checkout", "--quiet", "-b", "upstream")
	commitFile(t, repo, "1.txt", "1\n", "upstream")
	mustRun(t, repo.git, "checkout", "--quiet", "main")
	commitFile(t, repo, "2.txt", "2\n", "local")

	_, err := repo.FastForward(context.Background(), "upstream")
	assert.ErrorIs(t, err, ErrNotFastForwardable)
}

func TestCommitTreeCreatesCommitWithAllParents(t *testing.T) {
	ctx := context.Background()
	repo := initRepo(t)

	start, err := repo.Head(ctx)
	require.NoError(t, err)

	mustRun(t, repo.git, "checkout", "--quiet", "-b", "topic")
	topic := commitFile(t, repo, "topic.txt", "topic\n", "topic")
	mustRun(t, repo.git, "checkout", "--quiet", "main")

	require.NoError(t, repo.Merge(ctx, "topic", "merge topic"))
	require.NoError(t, repo.AddTracked(ctx))

	tree, err := repo.WriteTree(ctx)
	require.NoError(t, err)

	bump, err := repo.CommitTree(ctx, tree, "bump", start, topic)
	require.NoError(t, err)
	require.NoError(t, repo.ResetSoft(ctx, bump))

	parents := mustRun(t, repo.git, "rev-list", "--parents", "-n", "1", "HEAD")
	assert.Equal(t, []string{bump + " " + start + " " + topic}, splitLines(parents))

	log, err := repo.FirstParentLog("HEAD", start)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "bump", log[0].Subject)
}

func TestConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := initRepo(t)

	values := map[ConfigScope]string{
		ConfigScopeLocal: "local value with  spaces",
		ConfigScopeUser:  "user-value",
	}

	for scope, val := range values {
		require.NoError(t, repo.SetConfig(ctx, scope, "prmerger.test", val))
	}

	for scope, val := range values {
		got, err := repo.GetConfig(ctx, scope, "prmerger.test")
		require.NoError(t, err, scope.String())
		assert.Equal(t, val, got, scope.String())
	}

	_, err := repo.GetConfig(ctx, ConfigScopeLocal, "prmerger.unset")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemotes(t *testing.T) {
	ctx := context.Background()
	repo := initRepo(t)

	require.NoError(t, repo.AddRemote(ctx, "merge_octocat", "https://github.com/octocat/hello.git"))

	remotes, err := repo.Remotes()
	require.NoError(t, err)
	assert.Equal(t, []string{"merge_octocat"}, remotes)

	url, err := repo.RemoteURL("merge_octocat")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/octocat/hello.git", url)

	require.NoError(t, repo.RemoveRemote(ctx, "merge_octocat"))

	_, err = repo.RemoteURL("merge_octocat")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTags(t *testing.T) {
	ctx := context.Background()
	repo := initRepo(t)

	require.NoError(t, repo.CheckRefFormat(ctx, "refs/tags/v1.0.0"))
	require.Error(t, repo.CheckRefFormat(ctx, "refs/tags/v1..0"))

	exists, err := repo.TagExists("v1.0.0")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Tag(ctx, "v1.0.0", "release"))

	exists, err = repo.TagExists("v1.0.0")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBranchCommit(t *testing.T) {
	ctx := context.Background()
	repo := initRepo(t)

	head, err := repo.Head(ctx)
	require.NoError(t, err)

	sha, err := repo.BranchCommit("main")
	require.NoError(t, err)
	assert.Equal(t, head, sha)

	_, err = repo.BranchCommit("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmodules(t *testing.T) {
	ctx := context.Background()
	sub := initRepo(t)
	repo := initRepo(t)

	mustRun(t, repo.git, "-c", "protocol.file.allow=always", "submodule", "--quiet", "add", sub.Dir(), "libs/sub")
	mustRun(t, repo.git, "commit", "--quiet", "-m", "add submodule")

	submodules, err := repo.Submodules()
	require.NoError(t, err)
	require.Len(t, submodules, 1)
	assert.Equal(t, "libs/sub", submodules[0].Path)
	assert.Equal(t, sub.Dir(), submodules[0].URL)

	subRepo, err := Open(filepath.Join(repo.Dir(), submodules[0].Path))
	require.NoError(t, err)

	subHead, err := subRepo.Head(ctx)
	require.NoError(t, err)

	want, err := sub.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, subHead)
}
