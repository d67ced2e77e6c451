// Package filter parses include and exclude filter expressions for
// selecting pull requests and branches that are merged.
package filter

import (
	"fmt"
	"strings"
)

// FilterSet is the parsed set of criteria that decide which pull requests
// and branches are merged into base.
// A FilterSet is immutable, derived copies are created with WithBase and
// ForSubmodule.
type FilterSet struct {
	base        string
	defaultMode DefaultMode
	include     Predicate
	exclude     Predicate
	status      StatusGate
}

// NewFilterSet seeds the include and exclude predicates according to mode
// and adds the given filter tokens.
func NewFilterSet(base string, mode DefaultMode, includes, excludes []string, status StatusGate) (*FilterSet, error) {
	if base == "" {
		return nil, fmt.Errorf("base branch is empty")
	}

	if mode == "" {
		mode = DefaultNone
	}

	if status == "" {
		status = StatusNone
	}

	inclB := NewPredicateBuilder()
	exclB := NewPredicateBuilder()

	switch mode {
	case DefaultOrg:
		inclB.AddLabel("include").AddUser(UserOrg)
		exclB.AddLabel("exclude").AddLabel("breaking")
	case DefaultAll:
		inclB.AddUser(UserAll)
	case DefaultNone:
	default:
		return nil, fmt.Errorf("unsupported default mode: %q", mode)
	}

	for _, t := range includes {
		if err := inclB.Add(t); err != nil {
			return nil, fmt.Errorf("include filter: %w", err)
		}
	}

	for _, t := range excludes {
		if err := exclB.Add(t); err != nil {
			return nil, fmt.Errorf("exclude filter: %w", err)
		}
	}

	return &FilterSet{
		base:        base,
		defaultMode: mode,
		include:     inclB.Build(),
		exclude:     exclB.Build(),
		status:      status,
	}, nil
}

func (f *FilterSet) Base() string {
	return f.base
}

func (f *FilterSet) Default() DefaultMode {
	return f.defaultMode
}

func (f *FilterSet) Include() Predicate {
	return f.include
}

func (f *FilterSet) Exclude() Predicate {
	return f.exclude
}

func (f *FilterSet) Status() StatusGate {
	return f.status
}

// HasInclude returns true if any include predicate is populated.
// If it returns false, nothing can be selected.
func (f *FilterSet) HasInclude() bool {
	return !f.include.IsEmpty()
}

// WithBase returns a copy with a different base branch.
func (f *FilterSet) WithBase(base string) *FilterSet {
	cp := *f
	cp.base = base

	return &cp
}

// ForSubmodule returns a copy for processing the submodule with the
// repository name fullName ("org/repo").
// The pr facet and all "org/repo" keys whose repository name differs from
// the one of the submodule are removed.
func (f *FilterSet) ForSubmodule(fullName string) *FilterSet {
	cp := *f
	cp.include = scopePredicate(f.include, RepoName(fullName))
	cp.exclude = scopePredicate(f.exclude, RepoName(fullName))

	return &cp
}

func scopePredicate(p Predicate, repoName string) Predicate {
	b := NewPredicateBuilder()

	for _, l := range p.labels {
		b.AddLabel(l)
	}

	for _, u := range p.users {
		b.AddUser(u)
	}

	for _, key := range p.RepoKeys() {
		if RepoName(key) != repoName {
			continue
		}

		for _, v := range p.repoScoped[key] {
			b.AddRepoScoped(key, v)
		}
	}

	return b.Build()
}

// Args renders the FilterSet as command line arguments of the merge
// command. The default mode is rendered as "none", the seeded values are
// part of the rendered filters.
func (f *FilterSet) Args() []string {
	args := []string{"--default", string(DefaultNone)}

	for _, t := range f.include.Tokens() {
		args = append(args, "--include", t)
	}

	for _, t := range f.exclude.Tokens() {
		args = append(args, "--exclude", t)
	}

	args = append(args, "--check-commit-status", string(f.status), f.base)

	return args
}

func (f *FilterSet) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "base: %s, default: %s, status: %s", f.base, f.defaultMode, f.status)

	if !f.include.IsEmpty() {
		fmt.Fprintf(&sb, ", include: %s", f.include)
	}

	if !f.exclude.IsEmpty() {
		fmt.Fprintf(&sb, ", exclude: %s", f.exclude)
	}

	return sb.String()
}
