package merge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/go-github/v59/github"
)

const (
	directiveExclude   = "--exclude"
	directiveInclude   = "--include"
	directiveConflicts = "--conflicts"
	directiveTest      = "--test"
)

// directiveLines returns the remainder of all lines of text that start
// with directive.
func directiveLines(text, directive string) []string {
	var result []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != directive && !strings.HasPrefix(line, directive+" ") {
			continue
		}

		result = append(result, strings.TrimSpace(strings.TrimPrefix(line, directive)))
	}

	return result
}

func hasDirective(text, directive string) bool {
	return len(directiveLines(text, directive)) > 0
}

// hasTrustedDirective returns true if the pull request description or a
// comment of a trusted author contains a line starting with directive.
func hasTrustedDirective(c *Candidate, directive string, trusted func(login string) (bool, error)) (bool, error) {
	if hasDirective(c.Body, directive) {
		return true, nil
	}

	for _, comment := range c.comments {
		if !hasDirective(comment.GetBody(), directive) {
			continue
		}

		ok, err := trusted(comment.GetUser().GetLogin())
		if err != nil {
			return false, err
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

// testHints returns the paths of all "--test <path>" lines in text.
func testHints(text string) []string {
	var result []string

	for _, l := range directiveLines(text, directiveTest) {
		if l != "" {
			result = append(result, l)
		}
	}

	return result
}

var conflictCommentSHARe = regexp.MustCompile(`\b([0-9a-f]{40})\b`)

// conflictComment returns the comment body that marks the head commit
// headSHA of a pull request as conflicting.
func conflictComment(headSHA, details string) string {
	return fmt.Sprintf(
		"%s Conflict resolution is required for %s:\n\n%s",
		directiveConflicts, headSHA, strings.TrimRight(details, "\n"),
	)
}

// lastConflictComment returns the last comment of the pull request if it
// was created by botLogin and marks the pull request as conflicting.
func lastConflictComment(comments []*github.IssueComment, botLogin string) *github.IssueComment {
	if len(comments) == 0 || botLogin == "" {
		return nil
	}

	last := comments[len(comments)-1]
	if last.GetUser().GetLogin() != botLogin {
		return nil
	}

	if !strings.HasPrefix(strings.TrimSpace(last.GetBody()), directiveConflicts) {
		return nil
	}

	return last
}

// conflictCommentSHA returns the head commit id a conflict comment was
// created for.
func conflictCommentSHA(body string) string {
	m := conflictCommentSHARe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}

	return m[1]
}

// resolvedComment strikes through all lines of a conflict comment and
// appends a resolution note.
func resolvedComment(body, commitID string) string {
	var sb strings.Builder

	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			sb.WriteString("\n")
			continue
		}

		sb.WriteString("~~")
		sb.WriteString(line)
		sb.WriteString("~~\n")
	}

	fmt.Fprintf(&sb, "\nConflicts resolved in %s.", commitID)

	return sb.String()
}

func emptyDescriptionComment(author string) string {
	return fmt.Sprintf(
		"@%s, this pull request has no description. "+
			"Please describe the changes and how they can be tested.",
		author,
	)
}
