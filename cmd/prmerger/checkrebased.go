package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/githubclt"
	"github.com/simplesurance/prmerger/internal/gitrepo"
	"github.com/simplesurance/prmerger/internal/logfields"
	"github.com/simplesurance/prmerger/internal/rebase"
)

var errRebaseProblems = errors.New("pull requests are not rebased or links are inconsistent")

type checkRebasedRunner struct {
	Command *cobra.Command

	Remote    string
	Dir       string
	CacheFile string
	NoCache   bool
	Fail      bool
}

func newCheckRebasedCmd() *cobra.Command {
	r := checkRebasedRunner{}

	c := &cobra.Command{
		Use:   "check-rebased BRANCH_A BRANCH_B",
		Short: "Report pull requests that were not rebased between 2 branches",
		Long: `check-rebased lists the pull requests that were merged into one of the
branches since their merge base and have no counterpart in the other
branch.

A pull request links to its counterpart with a line in its description
or in a comment:
  --rebased-to #N     the change was also submitted as #N
  --rebased-from #N   the change is a rebase of #N

Links must be bidirectional, links without matching back-link are
reported as mismatches.`,
		Example:      `  prmerger check-rebased main dev`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         r.runE,
	}

	c.Flags().StringVar(&r.Remote, "remote", "", "name of the remote of the repository, overrides the configuration file")
	c.Flags().StringVarP(&r.Dir, "dir", "C", ".", "path to the git repository")
	c.Flags().StringVar(&r.CacheFile, "cache", "", "file that caches links of closed pull requests, overrides the configuration file")
	c.Flags().BoolVar(&r.NoCache, "no-cache", false, "do not read or write the link cache")
	c.Flags().BoolVar(&r.Fail, "fail", false, "exit with code 1 if problems were found")

	r.Command = c

	return c
}

func (r *checkRebasedRunner) cachePath() string {
	if r.NoCache {
		return ""
	}

	if r.CacheFile != "" {
		return r.CacheFile
	}

	return config.RebaseCacheFile
}

func (r *checkRebasedRunner) runE(c *cobra.Command, args []string) error {
	ctx := c.Context()

	remote := config.Remote
	if r.Remote != "" {
		remote = r.Remote
	}

	repo, err := gitrepo.Open(r.Dir)
	if err != nil {
		return fmt.Errorf("opening git repository %s failed: %w", r.Dir, err)
	}

	url, err := repo.RemoteURL(remote)
	if err != nil {
		return err
	}

	owner, name, err := githubclt.ParseRepositoryURL(url)
	if err != nil {
		return fmt.Errorf("remote %s: %w", remote, err)
	}

	cache, err := rebase.LoadCache(r.cachePath())
	if err != nil {
		return fmt.Errorf("loading link cache failed: %w", err)
	}

	logger.Debug(
		"link cache loaded",
		logfields.Event("link_cache_loaded"),
		zap.String("cache_file", r.cachePath()),
		zap.Int("entries", cache.Len()),
	)

	tracker := rebase.NewTracker(
		githubclt.New(config.GithubAPIToken),
		newRetryer(config),
		repo,
		remote,
		owner,
		name,
		cache,
	)

	result, err := tracker.Check(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	if err := cache.Save(); err != nil {
		logger.Warn(
			"saving link cache failed",
			logfields.Event("link_cache_save_failed"),
			zap.Error(err),
		)
	}

	fmt.Fprint(c.OutOrStdout(), result.String())

	if r.Fail && result.HasProblems() {
		return errRebaseProblems
	}

	return nil
}
