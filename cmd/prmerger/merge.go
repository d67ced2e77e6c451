package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/cfg"
	"github.com/simplesurance/prmerger/internal/filter"
	"github.com/simplesurance/prmerger/internal/githubclt"
	"github.com/simplesurance/prmerger/internal/logfields"
	"github.com/simplesurance/prmerger/internal/merge"
)

// Environment variables that are set by Jenkins for every build.
const (
	envJobName     = "JOB_NAME"
	envBuildNumber = "BUILD_NUMBER"
	envBuildURL    = "BUILD_URL"
)

type mergeRunner struct {
	Command *cobra.Command

	DefaultMode      filter.DefaultMode
	Includes         []string
	Excludes         []string
	StatusGate       filter.StatusGate
	Comment          bool
	SetCommitStatus  bool
	UpdateGitmodules bool
	Push             string
	Tag              string
	TestHintsFile    string
	Remote           string
	Dir              string
	Info             bool
	DryRun           bool
	AllowEmpty       bool
	Strict           bool
	ShowConfig       bool
}

func newMergeCmd() *cobra.Command {
	r := mergeRunner{
		DefaultMode: filter.DefaultNone,
		StatusGate:  filter.StatusNone,
	}

	c := &cobra.Command{
		Use:   "merge BASE_BRANCH",
		Short: "Merge matching pull requests into a base branch",
		Long: `Merge fast-forwards the current branch of the repository in the working
directory to the remote BASE_BRANCH and merges every open pull request
against BASE_BRANCH that matches the filters.
Submodules are processed recursively, for every repository exactly one
commit is created.

Filter tokens (-I, -E):
  label:NAME                          pull requests with the label NAME
  user:LOGIN                          pull requests opened by LOGIN, #org
                                      matches organization members
  pr:N, #N                            the pull request N
  ORG/REPO#N                          the pull request N of ORG/REPO
  https://github.com/ORG/REPO/pull/N  the pull request N of ORG/REPO
  ORG/REPO:BRANCH                     the branch BRANCH of ORG/REPO
  NAME                                shorthand for label:NAME`,
		Example: `  # merge all pull requests of organization members into dev
  prmerger merge -D org dev

  # merge 2 pull requests, require successful CI runs and push the result
  prmerger merge -I '#12' -I '#15' -S success-only --push ci-12-15 dev`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         r.runE,
	}

	c.Flags().VarP(&r.DefaultMode, "default", "D", "predicates that are applied before the filters")
	c.Flags().StringArrayVarP(&r.Includes, "include", "I", nil, "include pull requests or branches matching the filter token, can be repeated")
	c.Flags().StringArrayVarP(&r.Excludes, "exclude", "E", nil, "exclude pull requests matching the filter token, can be repeated")
	c.Flags().VarP(&r.StatusGate, "check-commit-status", "S", "commit status the head of a pull request must have")
	c.Flags().BoolVar(&r.Comment, "comment", false, "comment on pull requests that conflict")
	c.Flags().BoolVar(&r.SetCommitStatus, "set-commit-status", false, "report the result as commit status of every processed pull request")
	c.Flags().BoolVar(&r.UpdateGitmodules, "update-gitmodules", false, "record the base branch of submodules in .gitmodules")
	c.Flags().StringVar(&r.Push, "push", "", "force-push the result to `BRANCH` of the remote")
	c.Flags().StringVar(&r.Tag, "tag", "", "create the annotated tag `NAME` in all processed repositories")
	c.Flags().StringVar(&r.TestHintsFile, "test-hints-file", "", "write the test hints of merged pull requests to `FILE`")
	c.Flags().StringVar(&r.Remote, "remote", "", "name of the remote of the base repository, overrides the configuration file")
	c.Flags().StringVarP(&r.Dir, "dir", "C", ".", "path to the git repository")
	c.Flags().BoolVar(&r.Info, "info", false, "only print the candidates, do not merge")
	c.Flags().BoolVar(&r.DryRun, "dry-run", false, "do not comment, set commit statuses or push")
	c.Flags().BoolVar(&r.AllowEmpty, "allow-empty", false, "create a commit even if nothing was merged")
	c.Flags().BoolVar(&r.Strict, "strict", false, "fail if a requested branch has no common history with the base branch")
	c.Flags().BoolVar(&r.ShowConfig, "show-config", false, "print the effective configuration and exit")

	r.Command = c

	return c
}

func buildContextFromEnv() *merge.BuildContext {
	return &merge.BuildContext{
		JobName:     os.Getenv(envJobName),
		BuildNumber: os.Getenv(envBuildNumber),
		BuildURL:    os.Getenv(envBuildURL),
	}
}

func repositoryConfigs(config *cfg.Config) (map[string]*merge.RepositoryConfig, error) {
	result := make(map[string]*merge.RepositoryConfig, len(config.Repositories))

	for _, repo := range config.Repositories {
		rc := merge.RepositoryConfig{BaseBranch: repo.BaseBranch}

		if repo.FilterQuery != "" {
			q, err := merge.NewQuery(repo.FilterQuery)
			if err != nil {
				return nil, fmt.Errorf("repository %s: parsing filter_query failed: %w", repo.Name, err)
			}

			rc.FilterQuery = q
		}

		result[repo.Name] = &rc
	}

	return result, nil
}

func writeTestHints(path string, hints []string) error {
	var content string
	if len(hints) > 0 {
		content = strings.Join(hints, "\n") + "\n"
	}

	return os.WriteFile(path, []byte(content), 0o644)
}

func (r *mergeRunner) githubClient() merge.GithubClient {
	clt := githubclt.New(config.GithubAPIToken)
	if r.DryRun {
		return merge.NewDryGithubClient(clt, logger)
	}

	return clt
}

func (r *mergeRunner) runE(c *cobra.Command, args []string) error {
	if r.ShowConfig {
		return config.Marshal(c.OutOrStdout())
	}

	ctx := c.Context()
	base := args[0]

	remote := config.Remote
	if r.Remote != "" {
		remote = r.Remote
	}

	fs, err := filter.NewFilterSet(base, r.DefaultMode, r.Includes, r.Excludes, r.StatusGate)
	if err != nil {
		return err
	}

	repoCfg, err := repositoryConfigs(config)
	if err != nil {
		return err
	}

	repo, err := merge.OpenGitRepository(r.Dir)
	if err != nil {
		return fmt.Errorf("opening git repository %s failed: %w", r.Dir, err)
	}

	if r.Tag != "" {
		if err := merge.CheckTag(ctx, repo, r.Tag); err != nil {
			return err
		}
	}

	if r.Push != "" {
		if err := merge.CheckPushBranch(ctx, repo, base, r.Push); err != nil {
			return err
		}
	}

	walker := merge.NewWalker(
		r.githubClient(),
		newRetryer(config),
		merge.OpenGitRepository,
		config.Organization,
		config.WhitelistUsers,
		repoCfg,
		buildContextFromEnv(),
		merge.Options{
			Remote:           remote,
			Info:             r.Info,
			Comment:          r.Comment,
			SetCommitStatus:  r.SetCommitStatus,
			StatusContext:    config.StatusContext,
			UpdateGitmodules: r.UpdateGitmodules,
			AllowEmpty:       r.AllowEmpty,
			Strict:           r.Strict,
		},
	)

	goodbye.Register(func(ctx context.Context, _ os.Signal) {
		walker.Cleanup(ctx)
	})

	logger.Info(
		"merging",
		logfields.Event("merge_started"),
		logfields.BaseBranch(base),
		zap.Stringer("filter", fs),
		zap.String("dir", r.Dir),
		zap.Bool("dry_run", r.DryRun),
	)

	report, err := walker.RMerge(ctx, repo, fs)
	if err != nil {
		return err
	}

	out := c.OutOrStdout()
	if r.Info {
		report.WriteTable(out)
	}
	fmt.Fprint(out, report.String())

	if r.TestHintsFile != "" {
		if err := writeTestHints(r.TestHintsFile, report.AllTestHints()); err != nil {
			return fmt.Errorf("writing test hints file failed: %w", err)
		}
	}

	if config.MetricsFile != "" {
		if err := merge.WriteMetrics(config.MetricsFile); err != nil {
			return fmt.Errorf("writing metrics file failed: %w", err)
		}
	}

	if r.Info {
		return nil
	}

	if r.Tag != "" {
		if err := walker.RTag(ctx, repo, report, r.Tag); err != nil {
			return err
		}
	}

	if r.Push != "" {
		if r.DryRun {
			logger.Info(
				"dry run, skipping push",
				logfields.Event("push_skipped"),
				logfields.Branch(r.Push),
			)
			return nil
		}

		if err := walker.RPush(ctx, repo, report, r.Push); err != nil {
			return err
		}
	}

	return nil
}
