package filter

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

var (
	_ pflag.Value = (*DefaultMode)(nil)
	_ pflag.Value = (*StatusGate)(nil)
)

// DefaultMode selects the predicates a FilterSet is seeded with before the
// user supplied filters are applied.
type DefaultMode string

const (
	// DefaultNone seeds nothing, only explicitly given filters apply.
	DefaultNone DefaultMode = "none"
	// DefaultOrg includes pull requests labeled "include" and pull
	// requests of public organization members. Pull requests labeled
	// "exclude" or "breaking" are excluded.
	DefaultOrg DefaultMode = "org"
	// DefaultAll includes all open pull requests.
	DefaultAll DefaultMode = "all"
)

var defaultModes = []DefaultMode{DefaultNone, DefaultOrg, DefaultAll}

func (m *DefaultMode) String() string {
	return string(*m)
}

func (m *DefaultMode) Set(v string) error {
	for _, mode := range defaultModes {
		if string(mode) == v {
			*m = mode
			return nil
		}
	}

	return fmt.Errorf("invalid default mode %q, must be one of: %s", v, joinModes(defaultModes))
}

func (*DefaultMode) Type() string {
	return "none|org|all"
}

// StatusGate defines which commit status the head of a pull request must
// have to be merged.
type StatusGate string

const (
	StatusNone        StatusGate = "none"
	StatusNoError     StatusGate = "no-error"
	StatusSuccessOnly StatusGate = "success-only"
)

var statusGates = []StatusGate{StatusNone, StatusNoError, StatusSuccessOnly}

func (s *StatusGate) String() string {
	return string(*s)
}

func (s *StatusGate) Set(v string) error {
	for _, g := range statusGates {
		if string(g) == v {
			*s = g
			return nil
		}
	}

	return fmt.Errorf("invalid status gate %q, must be one of: %s", v, joinModes(statusGates))
}

func (*StatusGate) Type() string {
	return "none|no-error|success-only"
}

// Allows returns true if a commit with the given combined commit status
// state passes the gate.
// state is one of the GitHub commit states "success", "pending",
// "failure", "error" or an empty string if no status exists.
func (s StatusGate) Allows(state string) bool {
	switch s {
	case StatusSuccessOnly:
		return state == "success"
	case StatusNoError:
		return state != "error" && state != "failure"
	default:
		return true
	}
}

func joinModes[T ~string](modes []T) string {
	strs := make([]string, 0, len(modes))
	for _, m := range modes {
		strs = append(strs, string(m))
	}

	return strings.Join(strs, ", ")
}
