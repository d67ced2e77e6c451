package merge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/logfields"
)

const tempRemotePrefix = "merge_"

// remoteSet manages the temporary remotes that are added to a repository
// to fetch the heads of pull requests and branches in forks.
// Release removes all remotes, it can be called multiple times and
// concurrently, only the first call has an effect.
type remoteSet struct {
	repo Repository
	// originURL is the URL of the remote of the base repository, URLs of
	// forks are derived from it.
	originURL  string
	originRepo string

	lock     sync.Mutex
	remotes  map[string]struct{}
	released atomic.Bool

	logger *zap.Logger
}

func newRemoteSet(repo Repository, originURL, originFullName string) *remoteSet {
	return &remoteSet{
		repo:       repo,
		originURL:  originURL,
		originRepo: originFullName,
		remotes:    map[string]struct{}{},
		logger:     zap.L().Named(loggerName).Named("remotes").With(logfields.Path(repo.Dir())),
	}
}

// remoteURL returns the URL of the repository fullName ("org/repo"). It
// uses the same scheme as the URL of the base repository.
func remoteURL(originURL, originFullName, fullName string) string {
	if strings.Contains(originURL, originFullName) {
		return strings.Replace(originURL, originFullName, fullName, 1)
	}

	return fmt.Sprintf("https://github.com/%s.git", fullName)
}

// Acquire ensures that a remote for the repository fullName exists and
// returns its name.
func (s *remoteSet) Acquire(ctx context.Context, fullName string) (string, error) {
	owner, _, _ := strings.Cut(fullName, "/")
	name := tempRemotePrefix + owner

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.released.Load() {
		return "", fmt.Errorf("remote set of %s was already released", s.repo.Dir())
	}

	if _, exists := s.remotes[name]; exists {
		return name, nil
	}

	existing, err := s.repo.Remotes()
	if err != nil {
		return "", err
	}

	if containsStr(existing, name) {
		// left over from a previous run that was not terminated cleanly
		if err := s.repo.RemoveRemote(ctx, name); err != nil {
			return "", err
		}
	}

	url := remoteURL(s.originURL, s.originRepo, fullName)
	if err := s.repo.AddRemote(ctx, name, url); err != nil {
		return "", err
	}

	s.remotes[name] = struct{}{}

	s.logger.Debug(
		"temporary remote added",
		logfields.Event("remote_added"),
		logfields.Remote(name),
		logFieldRepo(fullName),
	)

	return name, nil
}

// Release removes all acquired remotes. Errors are logged.
func (s *remoteSet) Release(ctx context.Context) {
	if !s.released.CompareAndSwap(false, true) {
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	names := make([]string, 0, len(s.remotes))
	for name := range s.remotes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.repo.RemoveRemote(ctx, name); err != nil {
			s.logger.Warn(
				"removing temporary remote failed",
				logEventRemoteRemoveFailed,
				logfields.Remote(name),
				zap.Error(err),
			)
			continue
		}

		delete(s.remotes, name)
	}
}
