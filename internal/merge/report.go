package merge

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/simplesurance/prmerger/internal/stringutils"
)

// Report is the result of merging candidates into a repository and its
// submodules.
type Report struct {
	// Repository is the "org/repo" name of the GitHub repository.
	Repository string
	// Path is the path of the submodule relative to the repository that
	// contains it, it is empty for the top-level repository.
	Path string
	Base string
	// Info is true if candidates were only searched but not merged.
	Info bool

	Selected         []*Candidate
	Excluded         []*Exclusion
	PreviouslyMerged []int
	Outcomes         []*Outcome
	// BumpCommit is the id of the commit that was created for the merges
	// in this repository, it is empty if no commit was created.
	BumpCommit string
	TestHints  []string

	Submodules []*Report
	// Errors contains errors that happened while processing submodules.
	Errors []string
}

// Updated returns true if a commit was created in the repository.
func (r *Report) Updated() bool {
	return r.BumpCommit != ""
}

func (r *Report) outcomes(state OutcomeState) []*Outcome {
	var result []*Outcome

	for _, o := range r.Outcomes {
		if o.State == state {
			result = append(result, o)
		}
	}

	return result
}

func (r *Report) Merged() []*Outcome {
	return r.outcomes(OutcomeMerged)
}

func (r *Report) Conflicting() []*Outcome {
	return r.outcomes(OutcomeConflicting)
}

func (r *Report) Skipped() []*Outcome {
	return r.outcomes(OutcomeSkipped)
}

// HasConflicts returns true if a candidate of the repository or one of
// its submodules could not be merged.
func (r *Report) HasConflicts() bool {
	if len(r.Conflicting()) > 0 {
		return true
	}

	for _, sub := range r.Submodules {
		if sub.HasConflicts() {
			return true
		}
	}

	return false
}

// AllTestHints returns the test hints of the repository and all
// submodules, sorted and without duplicates. Hints of submodules are
// prefixed with the path of the submodule.
func (r *Report) AllTestHints() []string {
	result := appendUniqSorted(nil, r.TestHints...)

	for _, sub := range r.Submodules {
		for _, h := range sub.AllTestHints() {
			result = appendUniqSorted(result, sub.Path+"/"+h)
		}
	}

	return result
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}

	sb.WriteString(title)
	sb.WriteString(":\n")

	for _, item := range items {
		sb.WriteString("  - ")
		sb.WriteString(strings.ReplaceAll(item, "\n", "\n    "))
		sb.WriteString("\n")
	}
}

func (r *Report) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Repository: %s (base: %s)", r.Repository, r.Base)
	if r.Path != "" {
		fmt.Fprintf(&sb, ", path: %s", r.Path)
	}
	sb.WriteString("\n")

	if r.Info {
		items := make([]string, 0, len(r.Selected))
		for _, c := range r.Selected {
			items = append(items, c.String())
		}
		writeList(&sb, "Candidates", items)
	} else {
		writeList(&sb, "Merged PRs", outcomeItems(r.Merged(), ""))
		writeList(&sb, "Conflicting PRs", outcomeItems(r.Conflicting(), r.Base))
		writeList(&sb, "Skipped", outcomeItems(r.Skipped(), ""))
	}

	if len(r.PreviouslyMerged) > 0 {
		items := make([]string, 0, len(r.PreviouslyMerged))
		for _, nr := range r.PreviouslyMerged {
			items = append(items, fmt.Sprintf("PR #%d", nr))
		}
		writeList(&sb, "Previously merged", items)
	}

	excluded := make([]string, 0, len(r.Excluded))
	for _, e := range r.Excluded {
		excluded = append(excluded, fmt.Sprintf("%s: %s", e.Candidate, e.Reason))
	}
	writeList(&sb, "Excluded", excluded)

	writeList(&sb, "Errors", r.Errors)

	if r.BumpCommit != "" {
		fmt.Fprintf(&sb, "Commit: %s\n", r.BumpCommit)
	}

	for _, sub := range r.Submodules {
		sb.WriteString("\n")
		sb.WriteString(stringutils.Indent(sub.String(), "  "))
	}

	return sb.String()
}

func outcomeItems(outcomes []*Outcome, base string) []string {
	result := make([]string, 0, len(outcomes))

	for _, o := range outcomes {
		switch o.State {
		case OutcomeConflicting:
			result = append(result, o.Candidate.String()+"\n"+strings.TrimRight(o.ConflictDetails(base), "\n"))
		case OutcomeSkipped:
			result = append(result, fmt.Sprintf("%s: %s", o.Candidate, o.Reason))
		default:
			result = append(result, o.Candidate.String())
		}
	}

	return result
}

// CommitMessage returns the message of the bump commit.
func (r *Report) CommitMessage(commitID string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s: merge into %s\n\n", commitID, r.Base)

	writeList(&sb, "Merged PRs", outcomeItems(r.Merged(), ""))
	writeList(&sb, "Conflicting PRs", outcomeItems(r.Conflicting(), r.Base))

	var updated []string
	for _, sub := range r.Submodules {
		if sub.Updated() {
			updated = append(updated, fmt.Sprintf("%s (%s)", sub.Path, sub.Repository))
		}
	}
	writeList(&sb, "Updated submodules", updated)

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// WriteTable writes a table of the selected and excluded candidates of the
// repository and all submodules to w.
func (r *Report) WriteTable(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"REPOSITORY", "CANDIDATE", "AUTHOR", "TITLE", "STATUS"})

	r.appendRows(t)

	t.Render()
}

func (r *Report) appendRows(t table.Writer) {
	rows := make([]table.Row, 0, len(r.Selected)+len(r.Excluded))

	for _, c := range r.Selected {
		rows = append(rows, table.Row{r.Repository, c.ID(), c.Author, c.Title, "selected"})
	}

	for _, e := range r.Excluded {
		rows = append(rows, table.Row{r.Repository, e.Candidate.ID(), e.Candidate.Author, e.Candidate.Title, "excluded (" + e.Reason + ")"})
	}

	for _, o := range r.Outcomes {
		rows = append(rows, table.Row{r.Repository, o.Candidate.ID(), o.Candidate.Author, o.Candidate.Title, o.State.String()})
	}

	t.AppendRows(rows)

	for _, sub := range r.Submodules {
		t.AppendSeparator()
		sub.appendRows(t)
	}
}
