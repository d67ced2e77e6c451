package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTokenForms(t *testing.T) {
	testcases := []struct {
		token      string
		labels     []string
		users      []string
		prs        []string
		repoKey    string
		repoScoped []string
	}{
		{token: "label:bug", labels: []string{"bug"}},
		{token: "user:octocat", users: []string{"octocat"}},
		{token: "pr:12", prs: []string{"#12"}},
		{token: "pr:#12", prs: []string{"#12"}},
		{token: "#7", prs: []string{"#7"}},
		{token: "ome/scripts#7", repoKey: "ome/scripts", repoScoped: []string{"#7"}},
		{token: "https://github.com/ome/scripts/pull/9", repoKey: "ome/scripts", repoScoped: []string{"#9"}},
		{token: "snoopy/scripts:feature/x", repoKey: "snoopy/scripts", repoScoped: []string{"feature/x"}},
		{token: "https://github.com/snoopy/scripts/tree/release-1.0", repoKey: "snoopy/scripts", repoScoped: []string{"release-1.0"}},
		{token: "wip", labels: []string{"wip"}},
		{token: "needs:review", labels: []string{"needs:review"}},
	}

	for _, tc := range testcases {
		t.Run(tc.token, func(t *testing.T) {
			p, err := ParsePredicate([]string{tc.token})
			require.NoError(t, err)

			assert.Equal(t, tc.labels, p.Labels())
			assert.Equal(t, tc.users, p.Users())
			assert.Equal(t, tc.prs, p.PRs())

			if tc.repoKey == "" {
				assert.Empty(t, p.RepoKeys())
				return
			}

			assert.Equal(t, []string{tc.repoKey}, p.RepoKeys())
			assert.Equal(t, tc.repoScoped, p.RepoScoped(tc.repoKey))
		})
	}
}

func TestParseInvalidTokens(t *testing.T) {
	for _, token := range []string{"pr:abc", "pr:0", "label:", "user:", ""} {
		_, err := ParsePredicate([]string{token})
		assert.Error(t, err, token)
	}
}

func TestPredicateReparseIsIdempotent(t *testing.T) {
	tokens := []string{
		"label:include",
		"breaking",
		"user:#org",
		"user:octocat",
		"pr:3",
		"#4",
		"ome/openmicroscopy#10",
		"https://github.com/ome/bioformats/pull/11",
		"snoopy/openmicroscopy:dev_5_1",
		"https://github.com/snoopy/bioformats/tree/topic",
		"needs:review",
		"label:include",
	}

	p1, err := ParsePredicate(tokens)
	require.NoError(t, err)

	p2, err := ParsePredicate(p1.Tokens())
	require.NoError(t, err)

	if diff := cmp.Diff(p1.Tokens(), p2.Tokens()); diff != "" {
		t.Errorf("rendered tokens differ after reparsing (-want +got):\n%s", diff)
	}
	assert.True(t, p1.Equal(p2))
}

func TestPredicateHasNoEmptyKeys(t *testing.T) {
	p, err := ParsePredicate([]string{"label:x", "ome/scripts#1"})
	require.NoError(t, err)

	assert.Equal(t, []string{FacetLabel, "ome/scripts"}, p.Keys())
	assert.False(t, p.IsEmpty())
	assert.True(t, Predicate{}.IsEmpty())
	assert.Empty(t, Predicate{}.Keys())
}

func TestPredicateIsNotModifiedByBuilder(t *testing.T) {
	b := NewPredicateBuilder().AddLabel("a").AddRepoScoped("ome/scripts", "#1")
	p := b.Build()

	b.AddLabel("b").AddRepoScoped("ome/scripts", "#2")

	assert.Equal(t, []string{"a"}, p.Labels())
	assert.Equal(t, []string{"#1"}, p.RepoScoped("ome/scripts"))

	labels := p.Labels()
	labels[0] = "changed"
	assert.Equal(t, []string{"a"}, p.Labels())
}

func TestHasPR(t *testing.T) {
	p, err := ParsePredicate([]string{"#1", "ome/scripts#2"})
	require.NoError(t, err)

	assert.True(t, p.HasPR("ome/openmicroscopy", 1))
	assert.True(t, p.HasPR("ome/scripts", 2))
	assert.False(t, p.HasPR("ome/openmicroscopy", 2))
}

func TestBranchesIncludeForks(t *testing.T) {
	p, err := ParsePredicate([]string{
		"snoopy/scripts:topic",
		"ome/scripts:other",
		"ome/scripts#3",
		"ome/bioformats:unrelated",
	})
	require.NoError(t, err)

	assert.Equal(t,
		map[string][]string{
			"snoopy/scripts": {"topic"},
			"ome/scripts":    {"other"},
		},
		p.Branches("scripts"),
	)
}
