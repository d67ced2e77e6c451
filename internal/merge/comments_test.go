package merge

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectiveLines(t *testing.T) {
	text := "some description\n" +
		"  --test tests/a.sh  \n" +
		"--testing is not a directive\n" +
		"--test\n" +
		"--test tests/b.sh\n"

	assert.Equal(t, []string{"tests/a.sh", "", "tests/b.sh"}, directiveLines(text, directiveTest))
	assert.Equal(t, []string{"tests/a.sh", "tests/b.sh"}, testHints(text))
	assert.False(t, hasDirective(text, directiveExclude))
}

func TestHasTrustedDirective(t *testing.T) {
	c := newPRCandidate(newPR(1, "alice", "ome/top", headSHA))
	c.comments = []*github.IssueComment{
		{Body: github.String("--include"), User: &github.User{Login: github.String("mallory")}},
		{Body: github.String("please merge\n--include"), User: &github.User{Login: github.String("carol")}},
	}

	var asked []string
	trusted := func(login string) (bool, error) {
		asked = append(asked, login)
		return login == "carol", nil
	}

	found, err := hasTrustedDirective(c, directiveInclude, trusted)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"mallory", "carol"}, asked)

	found, err = hasTrustedDirective(c, directiveExclude, trusted)
	require.NoError(t, err)
	assert.False(t, found)

	c.Body = "--exclude"
	found, err = hasTrustedDirective(c, directiveExclude, func(string) (bool, error) {
		return false, errors.New("must not be called")
	})
	require.NoError(t, err)
	assert.True(t, found)
}

func TestHasTrustedDirectivePropagatesErrors(t *testing.T) {
	c := newPRCandidate(newPR(1, "alice", "ome/top", headSHA))
	c.comments = []*github.IssueComment{
		{Body: github.String("--exclude"), User: &github.User{Login: github.String("carol")}},
	}

	_, err := hasTrustedDirective(c, directiveExclude, func(string) (bool, error) {
		return false, errors.New("api error")
	})
	assert.Error(t, err)
}

func TestConflictCommentSHA(t *testing.T) {
	body := conflictComment(headSHA, "Conflicting files:\n  - x.txt\n")

	assert.True(t, strings.HasPrefix(body, directiveConflicts))
	assert.False(t, strings.HasSuffix(body, "\n"))
	assert.Equal(t, headSHA, conflictCommentSHA(body))
	assert.Empty(t, conflictCommentSHA("--conflicts without commit"))
}

func TestLastConflictComment(t *testing.T) {
	conflict := &github.IssueComment{
		ID:   github.Int64(1),
		Body: github.String(conflictComment(headSHA, "details")),
		User: &github.User{Login: github.String("bot")},
	}
	other := &github.IssueComment{
		ID:   github.Int64(2),
		Body: github.String("fixed"),
		User: &github.User{Login: github.String("alice")},
	}
	foreign := &github.IssueComment{
		ID:   github.Int64(3),
		Body: github.String(conflictComment(headSHA, "details")),
		User: &github.User{Login: github.String("alice")},
	}

	assert.Equal(t, conflict, lastConflictComment([]*github.IssueComment{other, conflict}, "bot"))
	assert.Nil(t, lastConflictComment([]*github.IssueComment{conflict, other}, "bot"))
	assert.Nil(t, lastConflictComment([]*github.IssueComment{foreign}, "bot"))
	assert.Nil(t, lastConflictComment([]*github.IssueComment{conflict}, ""))
	assert.Nil(t, lastConflictComment(nil, "bot"))
}

func TestResolvedComment(t *testing.T) {
	body := "--conflicts Conflict resolution is required for abc:\n\nConflicting files:\n  - x.txt\n"

	expected := "~~--conflicts Conflict resolution is required for abc:~~\n" +
		"\n" +
		"~~Conflicting files:~~\n" +
		"~~  - x.txt~~\n" +
		"\n" +
		"Conflicts resolved in merge#3."

	assert.Equal(t, expected, resolvedComment(body, "merge#3"))
	assert.Nil(t, lastConflictComment(
		[]*github.IssueComment{{Body: github.String(expected), User: &github.User{Login: github.String("bot")}}},
		"bot",
	))
}
