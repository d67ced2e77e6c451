package merge

import (
	"fmt"
	"strings"
)

type OutcomeState uint8

const (
	OutcomeUndefined OutcomeState = iota
	OutcomeMerged
	OutcomeConflicting
	// OutcomeSkipped is the state of candidates that were not attempted
	// to be merged, because their head could not be fetched, they do not
	// share history with the base branch or their head is already part of
	// it.
	OutcomeSkipped
)

func (s OutcomeState) String() string {
	switch s {
	case OutcomeMerged:
		return "merged"
	case OutcomeConflicting:
		return "conflicting"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "undefined"
	}
}

// Culprit is a candidate that was merged before a conflicting candidate
// and changed some of the same files.
type Culprit struct {
	Candidate *Candidate
	Files     []string
}

// Outcome is the result of merging a candidate.
type Outcome struct {
	Candidate *Candidate
	State     OutcomeState

	// Files are the files that conflicted.
	Files []string
	// Culprits are the previously merged candidates that changed files
	// that the conflicting candidate also changed, in merge order.
	Culprits []*Culprit
	// NeedsRebase are files that were changed by the candidate and on
	// the base branch since the candidate forked from it.
	NeedsRebase []string
	// DetectionFailed is true if the merge failed but the conflicting
	// files could not be determined.
	DetectionFailed bool
	Reason          string

	changedFiles []string
}

// LikelyCulprit returns the candidate that most likely caused the
// conflict or nil if it is unknown.
func (o *Outcome) LikelyCulprit() *Candidate {
	if len(o.Culprits) == 0 {
		return nil
	}

	return o.Culprits[0].Candidate
}

// ConflictDetails returns a human-readable description of the conflict.
func (o *Outcome) ConflictDetails(base string) string {
	var sb strings.Builder

	if o.Reason != "" {
		fmt.Fprintf(&sb, "Merge failed: %s\n", o.Reason)
	}

	if o.DetectionFailed {
		sb.WriteString("Conflicting files could not be determined.\n")
	} else {
		sb.WriteString("Conflicting files:\n")
		for _, f := range o.Files {
			fmt.Fprintf(&sb, "  - %s\n", f)
		}
	}

	if len(o.Culprits) == 0 && len(o.NeedsRebase) == 0 {
		sb.WriteString("Possible conflicts: unknown\n")
		return sb.String()
	}

	if len(o.Culprits) > 0 {
		sb.WriteString("Possible conflicts:\n")
		for _, c := range o.Culprits {
			fmt.Fprintf(&sb, "  - %s\n", c.Candidate)
			for _, f := range c.Files {
				fmt.Fprintf(&sb, "    - %s\n", f)
			}
		}
	}

	if len(o.NeedsRebase) > 0 {
		fmt.Fprintf(&sb, "Needs rebase on %s, files changed upstream:\n", base)
		for _, f := range o.NeedsRebase {
			fmt.Fprintf(&sb, "  - %s\n", f)
		}
	}

	return sb.String()
}
