package merge

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/prmerger/internal/filter"
	"github.com/simplesurance/prmerger/internal/githubclt"
	"github.com/simplesurance/prmerger/internal/merge/mocks"
)

const headSHA = "0123456789abcdef0123456789abcdef01234567"

func newTestSelector(t *testing.T, clt GithubClient, whitelist ...string) *Selector {
	t.Helper()

	members, err := newMembership(clt, testRetryer(), repoOwner, whitelist)
	require.NoError(t, err)

	return newSelector(clt, testRetryer(), members, repoOwner, baseRepo, nil)
}

func mustFilterSet(t *testing.T, mode filter.DefaultMode, includes, excludes []string, status filter.StatusGate) *filter.FilterSet {
	t.Helper()

	fs, err := filter.NewFilterSet(base, mode, includes, excludes, status)
	require.NoError(t, err)

	return fs
}

func candidateIDs(cs []*Candidate) []string {
	result := make([]string, 0, len(cs))
	for _, c := range cs {
		result = append(result, c.ID())
	}

	return result
}

func exclusionReasons(excl []*Exclusion) map[string]string {
	result := map[string]string{}
	for _, e := range excl {
		result[e.Candidate.ID()] = e.Reason
	}

	return result
}

func TestSelectWithoutIncludesDoesNotQueryGithub(t *testing.T) {
	installTestLogger(t)
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	s := newTestSelector(t, clt)

	sel, err := s.Select(context.Background(), mustFilterSet(t, filter.DefaultNone, nil, []string{"wip"}, filter.StatusNone))
	require.NoError(t, err)
	assert.Empty(t, sel.Candidates())
	assert.Empty(t, sel.Excluded)
}

func TestSelectSortsPullRequestsByNumber(t *testing.T) {
	installTestLogger(t)
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	mockListPullRequests(clt, baseRepo,
		newPR(3, "alice", "ome/top", headSHA),
		newPR(1, "alice", "ome/top", headSHA),
		newPR(2, "alice", "ome/top", headSHA),
	)
	mockNoComments(clt)

	s := newTestSelector(t, clt, "alice")

	sel, err := s.Select(context.Background(), mustFilterSet(t, filter.DefaultAll, nil, nil, filter.StatusNone))
	require.NoError(t, err)
	assert.Equal(t, []string{"#1", "#2", "#3"}, candidateIDs(sel.Candidates()))
}

func TestSelectIgnoresPullRequestsOfOtherBaseBranches(t *testing.T) {
	installTestLogger(t)
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	other := newPR(2, "alice", "ome/top", headSHA)
	other.Base.Ref = github.String("main")

	mockListPullRequests(clt, baseRepo, newPR(1, "alice", "ome/top", headSHA), other)
	mockNoComments(clt)

	s := newTestSelector(t, clt, "alice")

	sel, err := s.Select(context.Background(), mustFilterSet(t, filter.DefaultAll, nil, nil, filter.StatusNone))
	require.NoError(t, err)
	assert.Equal(t, []string{"#1"}, candidateIDs(sel.Candidates()))
	assert.Empty(t, sel.Excluded)
}

func TestSelectOrgDefault(t *testing.T) {
	installTestLogger(t)

	t.Run("non-member is excluded", func(t *testing.T) {
		mockctrl := gomock.NewController(t)
		clt := mocks.NewMockGithubClient(mockctrl)

		mockListPullRequests(clt, baseRepo,
			newPR(10, "bob", "snoopy/top", headSHA, "include"),
			newPR(11, "mallory", "mallory/top", headSHA, "wip"),
		)
		mockNoComments(clt)
		clt.EXPECT().IsPublicOrgMember(gomock.Any(), repoOwner, "bob").Return(false, nil)
		clt.EXPECT().IsPublicOrgMember(gomock.Any(), repoOwner, "mallory").Return(false, nil)

		s := newTestSelector(t, clt)

		sel, err := s.Select(context.Background(), mustFilterSet(t, filter.DefaultOrg, nil, nil, filter.StatusNone))
		require.NoError(t, err)
		assert.Equal(t, []string{"#10"}, candidateIDs(sel.Candidates()))
		assert.Equal(t, map[string]string{"#11": "user: mallory"}, exclusionReasons(sel.Excluded))
	})

	t.Run("member is included", func(t *testing.T) {
		mockctrl := gomock.NewController(t)
		clt := mocks.NewMockGithubClient(mockctrl)

		mockListPullRequests(clt, baseRepo,
			newPR(10, "bob", "snoopy/top", headSHA, "include"),
			newPR(11, "mallory", "mallory/top", headSHA, "wip"),
		)
		mockNoComments(clt)
		clt.EXPECT().IsPublicOrgMember(gomock.Any(), repoOwner, "bob").Return(false, nil)
		clt.EXPECT().IsPublicOrgMember(gomock.Any(), repoOwner, "mallory").Return(true, nil)

		s := newTestSelector(t, clt)

		sel, err := s.Select(context.Background(), mustFilterSet(t, filter.DefaultOrg, nil, nil, filter.StatusNone))
		require.NoError(t, err)
		assert.Equal(t, []string{"#10", "#11"}, candidateIDs(sel.Candidates()))
		assert.Empty(t, sel.Excluded)
	})

	t.Run("breaking label excludes", func(t *testing.T) {
		mockctrl := gomock.NewController(t)
		clt := mocks.NewMockGithubClient(mockctrl)

		mockListPullRequests(clt, baseRepo, newPR(12, "alice", "ome/top", headSHA, "include", "breaking"))
		mockNoComments(clt)

		s := newTestSelector(t, clt, "alice")

		sel, err := s.Select(context.Background(), mustFilterSet(t, filter.DefaultOrg, nil, nil, filter.StatusNone))
		require.NoError(t, err)
		assert.Empty(t, sel.Candidates())
		assert.Equal(t, map[string]string{"#12": "label: breaking"}, exclusionReasons(sel.Excluded))
	})
}

func TestSelectExcludeCommentOverridesInclude(t *testing.T) {
	installTestLogger(t)
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	mockListPullRequests(clt, baseRepo,
		newPR(5, "alice", "ome/top", headSHA, "include"),
		newPR(6, "alice", "ome/top", headSHA, "include"),
	)

	clt.EXPECT().ListIssueComments(gomock.Any(), repoOwner, baseRepo, 5).Return([]*github.IssueComment{
		{Body: github.String("looks good")},
		{
			Body: github.String("--exclude not ready yet"),
			User: &github.User{Login: github.String("carol")},
		},
	}, nil)
	clt.EXPECT().ListIssueComments(gomock.Any(), repoOwner, baseRepo, 6).Return([]*github.IssueComment{
		{
			Body: github.String("--exclude"),
			User: &github.User{Login: github.String("mallory")},
		},
	}, nil)
	clt.EXPECT().IsPublicOrgMember(gomock.Any(), repoOwner, "carol").Return(true, nil)
	clt.EXPECT().IsPublicOrgMember(gomock.Any(), repoOwner, "mallory").Return(false, nil)

	s := newTestSelector(t, clt, "alice")

	sel, err := s.Select(context.Background(), mustFilterSet(t, filter.DefaultNone, []string{"include", "pr:#5"}, nil, filter.StatusNone))
	require.NoError(t, err)
	assert.Equal(t, []string{"#6"}, candidateIDs(sel.Candidates()), "exclude comment of untrusted user must be ignored")
	assert.Equal(t, map[string]string{"#5": reasonComment}, exclusionReasons(sel.Excluded))
}

func TestSelectIncludeByDescriptionDirective(t *testing.T) {
	installTestLogger(t)
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	pr := newPR(7, "alice", "ome/top", headSHA)
	pr.Body = github.String("some change\n--include\n")

	mockListPullRequests(clt, baseRepo, pr, newPR(8, "alice", "ome/top", headSHA))
	mockNoComments(clt)

	s := newTestSelector(t, clt, "alice")

	sel, err := s.Select(context.Background(), mustFilterSet(t, filter.DefaultNone, []string{"user:nobody"}, nil, filter.StatusNone))
	require.NoError(t, err)
	assert.Equal(t, []string{"#7"}, candidateIDs(sel.Candidates()))
	assert.Equal(t, map[string]string{"#8": reasonNotIncluded}, exclusionReasons(sel.Excluded))
}

func TestSelectExcludeFacets(t *testing.T) {
	installTestLogger(t)
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	mockListPullRequests(clt, baseRepo,
		newPR(1, "alice", "ome/top", headSHA),
		newPR(2, "bob", "ome/top", headSHA),
		newPR(3, "alice", "ome/top", headSHA),
		newPR(4, "alice", "ome/top", headSHA, "wip"),
	)
	mockNoComments(clt)

	s := newTestSelector(t, clt, "alice", "bob")

	sel, err := s.Select(
		context.Background(),
		mustFilterSet(t, filter.DefaultAll, nil, []string{"user:bob", "pr:3", "wip"}, filter.StatusNone),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"#1"}, candidateIDs(sel.Candidates()))
	assert.Equal(t,
		map[string]string{"#2": "user: bob", "#3": "pr: #3", "#4": "label: wip"},
		exclusionReasons(sel.Excluded),
	)
}

func TestSelectFilterQuery(t *testing.T) {
	installTestLogger(t)
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	draft := newPR(2, "alice", "ome/top", headSHA)
	draft.Draft = github.Bool(true)

	mockListPullRequests(clt, baseRepo, newPR(1, "alice", "ome/top", headSHA), draft)
	mockNoComments(clt)

	q, err := NewQuery(`.draft != true`)
	require.NoError(t, err)

	members, err := newMembership(clt, testRetryer(), repoOwner, []string{"alice"})
	require.NoError(t, err)
	s := newSelector(clt, testRetryer(), members, repoOwner, baseRepo, q)

	sel, err := s.Select(context.Background(), mustFilterSet(t, filter.DefaultAll, nil, nil, filter.StatusNone))
	require.NoError(t, err)
	assert.Equal(t, []string{"#1"}, candidateIDs(sel.Candidates()))
	assert.Equal(t, map[string]string{"#2": reasonFilterQuery}, exclusionReasons(sel.Excluded))
}

func TestSelectStatusGateFallback(t *testing.T) {
	installTestLogger(t)
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	const (
		sha1 = "1111111111111111111111111111111111111111"
		sha2 = "2222222222222222222222222222222222222222"
		sha3 = "3333333333333333333333333333333333333333"
		sha4 = "4444444444444444444444444444444444444444"
	)

	mockListPullRequests(clt, baseRepo,
		newPR(1, "alice", "ome/top", sha1),
		newPR(2, "alice", "snoopy/top", sha2),
		newPR(3, "alice", "snoopy/top", sha3),
		newPR(4, "alice", "ome/top", sha4),
	)
	mockNoComments(clt)

	// #1: status in the base repository
	clt.EXPECT().CombinedStatus(gomock.Any(), repoOwner, baseRepo, sha1).Return("success", 2, nil)

	// #2: no status in the base repository, failure in the fork
	clt.EXPECT().CombinedStatus(gomock.Any(), repoOwner, baseRepo, sha2).Return("pending", 0, nil)
	clt.EXPECT().CombinedStatus(gomock.Any(), "snoopy", baseRepo, sha2).Return("failure", 1, nil)

	// #3: no statuses, successful check runs
	clt.EXPECT().CombinedStatus(gomock.Any(), repoOwner, baseRepo, sha3).Return("pending", 0, nil)
	clt.EXPECT().CombinedStatus(gomock.Any(), "snoopy", baseRepo, sha3).Return("pending", 0, nil)
	clt.EXPECT().HeadCIStatus(gomock.Any(), repoOwner, baseRepo, 3).
		Return(&githubclt.HeadCIStatus{State: githubclt.StateSuccess}, nil)

	// #4: nothing at all, the fork lookup is skipped
	clt.EXPECT().CombinedStatus(gomock.Any(), repoOwner, baseRepo, sha4).Return("pending", 0, nil)
	clt.EXPECT().HeadCIStatus(gomock.Any(), repoOwner, baseRepo, 4).
		Return(&githubclt.HeadCIStatus{State: githubclt.StateNone}, nil)

	s := newTestSelector(t, clt, "alice")

	sel, err := s.Select(context.Background(), mustFilterSet(t, filter.DefaultAll, nil, nil, filter.StatusSuccessOnly))
	require.NoError(t, err)
	assert.Equal(t, []string{"#1", "#3"}, candidateIDs(sel.Candidates()))
	assert.Equal(t,
		map[string]string{"#2": "status: failure", "#4": "status: none"},
		exclusionReasons(sel.Excluded),
	)
	assert.Equal(t, "success", sel.PullRequests[1].Status)
}

func TestSelectBranches(t *testing.T) {
	installTestLogger(t)
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	mockListPullRequests(clt, baseRepo)

	s := newTestSelector(t, clt)

	sel, err := s.Select(
		context.Background(),
		mustFilterSet(t,
			filter.DefaultNone,
			[]string{"ome/top:feature-b", "snoopy/top:feature-a", "ome/other:feature-c", "ome/top:wip"},
			[]string{"ome/top:wip"},
			filter.StatusNone,
		),
	)
	require.NoError(t, err)
	assert.Empty(t, sel.PullRequests)
	assert.Equal(t, []string{"ome/top:feature-b", "snoopy/top:feature-a"}, candidateIDs(sel.Branches))
	assert.Equal(t, map[string]string{"ome/top:wip": "branch: ome/top:wip"}, exclusionReasons(sel.Excluded))
}

func TestMembershipIsCached(t *testing.T) {
	installTestLogger(t)
	mockctrl := gomock.NewController(t)
	clt := mocks.NewMockGithubClient(mockctrl)

	clt.EXPECT().IsPublicOrgMember(gomock.Any(), repoOwner, "bob").Return(true, nil).Times(1)

	m, err := newMembership(clt, testRetryer(), repoOwner, []string{"alice"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		trusted, err := m.IsTrusted(context.Background(), "bob")
		require.NoError(t, err)
		assert.True(t, trusted)
	}

	trusted, err := m.IsTrusted(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, trusted)

	trusted, err = m.IsTrusted(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, trusted)
}
