package merge

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/retry"
)

const membershipCacheSize = 512

// membership decides if a GitHub user is trusted. Users are trusted if they
// are whitelisted or public members of the organization.
// Results of organization membership lookups are cached.
type membership struct {
	clt       GithubClient
	retryer   *retry.Retryer
	org       string
	whitelist map[string]struct{}
	cache     *lru.Cache[string, bool]
}

func newMembership(clt GithubClient, retryer *retry.Retryer, org string, whitelist []string) (*membership, error) {
	cache, err := lru.New[string, bool](membershipCacheSize)
	if err != nil {
		return nil, err
	}

	return &membership{
		clt:       clt,
		retryer:   retryer,
		org:       org,
		whitelist: toStrSet(whitelist),
		cache:     cache,
	}, nil
}

func (m *membership) IsTrusted(ctx context.Context, login string) (bool, error) {
	if login == "" {
		return false, nil
	}

	if _, exists := m.whitelist[login]; exists {
		return true, nil
	}

	if m.org == "" {
		return false, nil
	}

	if isMember, exists := m.cache.Get(login); exists {
		return isMember, nil
	}

	isMember, err := retry.WithRetries(ctx, m.retryer, func(ctx context.Context) (bool, error) {
		return m.clt.IsPublicOrgMember(ctx, m.org, login)
	}, zap.String("github.organization", m.org), zap.String("github.user", login))
	if err != nil {
		return false, err
	}

	m.cache.Add(login, isMember)

	return isMember, nil
}
