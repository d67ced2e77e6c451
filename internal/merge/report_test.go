package merge

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testReport() *Report {
	merged := newPRCandidate(newPR(1, "alice", "ome/top", headSHA))
	merged.Body = "--test tests/top.sh"
	conflicting := newPRCandidate(newPR(2, "bob", "ome/top", headSHA))

	sub := Report{
		Repository: "ome/sub",
		Path:       "libs/sub",
		Base:       "dev",
		Outcomes: []*Outcome{
			{Candidate: newBranchCandidate("ome/sub", "feature"), State: OutcomeMerged},
		},
		BumpCommit: "bbbb",
		TestHints:  []string{"unit.sh"},
	}

	return &Report{
		Repository: "ome/top",
		Base:       "dev",
		Excluded: []*Exclusion{
			{Candidate: newPRCandidate(newPR(3, "mallory", "mallory/top", headSHA)), Reason: "user: mallory"},
		},
		PreviouslyMerged: []int{9},
		Outcomes: []*Outcome{
			{Candidate: merged, State: OutcomeMerged, changedFiles: []string{"x.txt"}},
			{
				Candidate: conflicting,
				State:     OutcomeConflicting,
				Files:     []string{"x.txt"},
				Culprits:  []*Culprit{{Candidate: merged, Files: []string{"x.txt"}}},
			},
		},
		BumpCommit: "aaaa",
		TestHints:  []string{"tests/top.sh"},
		Submodules: []*Report{&sub},
	}
}

func TestReportString(t *testing.T) {
	expected := `Repository: ome/top (base: dev)
Merged PRs:
  - PR #1 alice 'change 1'
Conflicting PRs:
  - PR #2 bob 'change 2'
    Conflicting files:
      - x.txt
    Possible conflicts:
      - PR #1 alice 'change 1'
        - x.txt
Previously merged:
  - PR #9
Excluded:
  - PR #3 mallory 'change 3': user: mallory
Commit: aaaa

  Repository: ome/sub (base: dev), path: libs/sub
  Merged PRs:
    - branch ome/sub:feature
  Commit: bbbb
`

	assert.Equal(t, expected, testReport().String())
}

func TestReportCommitMessage(t *testing.T) {
	expected := `merge#1: merge into dev

Merged PRs:
  - PR #1 alice 'change 1'
Conflicting PRs:
  - PR #2 bob 'change 2'
    Conflicting files:
      - x.txt
    Possible conflicts:
      - PR #1 alice 'change 1'
        - x.txt
Updated submodules:
  - libs/sub (ome/sub)
`

	assert.Equal(t, expected, testReport().CommitMessage("merge#1"))
}

func TestReportAggregates(t *testing.T) {
	r := testReport()

	assert.True(t, r.HasConflicts())
	assert.False(t, r.Submodules[0].HasConflicts())
	assert.Equal(t, []string{"libs/sub/unit.sh", "tests/top.sh"}, r.AllTestHints())
	assert.True(t, r.Updated())
}

func TestReportWriteTable(t *testing.T) {
	var buf bytes.Buffer

	testReport().WriteTable(&buf)

	out := buf.String()
	assert.Contains(t, out, "REPOSITORY")
	assert.Contains(t, out, "excluded (user: mallory)")
	assert.Contains(t, out, "conflicting")
	assert.Contains(t, out, "ome/sub:feature")
}

func TestOutcomeConflictDetailsUnknown(t *testing.T) {
	o := Outcome{
		Candidate:       newPRCandidate(newPR(1, "alice", "ome/top", headSHA)),
		State:           OutcomeConflicting,
		DetectionFailed: true,
	}

	assert.Equal(t,
		"Conflicting files could not be determined.\nPossible conflicts: unknown\n",
		o.ConflictDetails("dev"),
	)
	assert.Nil(t, o.LikelyCulprit())
}
