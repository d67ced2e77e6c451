package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	FacetLabel = "label"
	FacetUser  = "user"
	FacetPR    = "pr"
)

const (
	// UserOrg matches authors that are public members of the organization
	// or whitelisted.
	UserOrg = "#org"
	// UserAll matches every author.
	UserAll = "#all"
)

// Predicate is a set of filter values keyed by facet.
// A Predicate is immutable, it is constructed with a PredicateBuilder.
// Keys without values are absent, a facet never has an empty value list.
type Predicate struct {
	labels     []string
	users      []string
	prs        []string
	repoScoped map[string][]string
}

func (p Predicate) Labels() []string {
	return cloneStrs(p.labels)
}

func (p Predicate) Users() []string {
	return cloneStrs(p.users)
}

// PRs returns the pull request numbers in the form "#N".
func (p Predicate) PRs() []string {
	return cloneStrs(p.prs)
}

// RepoScoped returns the values for the "org/repo" key.
// Values are either pull request numbers in the form "#N" or branch
// names.
func (p Predicate) RepoScoped(key string) []string {
	return cloneStrs(p.repoScoped[key])
}

// RepoKeys returns the sorted "org/repo" keys of the predicate.
func (p Predicate) RepoKeys() []string {
	keys := make([]string, 0, len(p.repoScoped))
	for k := range p.repoScoped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Keys returns the names of all populated facets.
func (p Predicate) Keys() []string {
	var keys []string

	if len(p.labels) > 0 {
		keys = append(keys, FacetLabel)
	}
	if len(p.users) > 0 {
		keys = append(keys, FacetUser)
	}
	if len(p.prs) > 0 {
		keys = append(keys, FacetPR)
	}

	return append(keys, p.RepoKeys()...)
}

func (p Predicate) IsEmpty() bool {
	return len(p.labels) == 0 && len(p.users) == 0 && len(p.prs) == 0 && len(p.repoScoped) == 0
}

func (p Predicate) HasLabel(label string) bool {
	return contains(p.labels, label)
}

func (p Predicate) HasUser(login string) bool {
	return contains(p.users, login)
}

// HasPR returns true if the pull request number is part of the pr facet or
// of the values of the "org/repo" key fullName.
func (p Predicate) HasPR(fullName string, number int) bool {
	nr := prValue(number)
	return contains(p.prs, nr) || contains(p.repoScoped[fullName], nr)
}

// Branches returns the branch names per "org/repo" key whose repository
// name is repoName. Keys of forks of the repository are included.
func (p Predicate) Branches(repoName string) map[string][]string {
	result := map[string][]string{}

	for key, vals := range p.repoScoped {
		if RepoName(key) != repoName {
			continue
		}

		for _, v := range vals {
			if strings.HasPrefix(v, "#") {
				continue
			}
			result[key] = append(result[key], v)
		}
	}

	return result
}

// Tokens renders the predicate as filter tokens. Parsing the tokens
// results in an equal predicate.
func (p Predicate) Tokens() []string {
	var result []string

	for _, l := range p.labels {
		result = append(result, FacetLabel+":"+l)
	}
	for _, u := range p.users {
		result = append(result, FacetUser+":"+u)
	}
	for _, pr := range p.prs {
		result = append(result, FacetPR+":"+pr)
	}

	for _, key := range p.RepoKeys() {
		for _, v := range p.repoScoped[key] {
			if strings.HasPrefix(v, "#") {
				result = append(result, key+v)
				continue
			}
			result = append(result, key+":"+v)
		}
	}

	return result
}

func (p Predicate) Equal(o Predicate) bool {
	if !strsEqual(p.labels, o.labels) || !strsEqual(p.users, o.users) || !strsEqual(p.prs, o.prs) {
		return false
	}

	if len(p.repoScoped) != len(o.repoScoped) {
		return false
	}

	for k, v := range p.repoScoped {
		if !strsEqual(v, o.repoScoped[k]) {
			return false
		}
	}

	return true
}

func (p Predicate) String() string {
	return strings.Join(p.Tokens(), " ")
}

// PredicateBuilder constructs a Predicate.
// Values are kept in insertion order, duplicates are ignored.
type PredicateBuilder struct {
	p Predicate
}

func NewPredicateBuilder() *PredicateBuilder {
	return &PredicateBuilder{p: Predicate{repoScoped: map[string][]string{}}}
}

func (b *PredicateBuilder) AddLabel(label string) *PredicateBuilder {
	b.p.labels = appendUniq(b.p.labels, label)
	return b
}

func (b *PredicateBuilder) AddUser(login string) *PredicateBuilder {
	b.p.users = appendUniq(b.p.users, login)
	return b
}

func (b *PredicateBuilder) AddPR(number int) *PredicateBuilder {
	b.p.prs = appendUniq(b.p.prs, prValue(number))
	return b
}

// AddRepoScoped adds a "#N" pull request reference or a branch name to the
// "org/repo" key.
func (b *PredicateBuilder) AddRepoScoped(key, value string) *PredicateBuilder {
	b.p.repoScoped[key] = appendUniq(b.p.repoScoped[key], value)
	return b
}

// Merge adds all values of p.
func (b *PredicateBuilder) Merge(p Predicate) *PredicateBuilder {
	for _, v := range p.labels {
		b.AddLabel(v)
	}
	for _, v := range p.users {
		b.AddUser(v)
	}
	for _, v := range p.prs {
		b.p.prs = appendUniq(b.p.prs, v)
	}
	for _, key := range p.RepoKeys() {
		for _, v := range p.repoScoped[key] {
			b.AddRepoScoped(key, v)
		}
	}

	return b
}

const repoRe = `([\w.-]+/[\w.-]+)`

var (
	prRefRe      = regexp.MustCompile(`^(?:` + repoRe + `)?#([0-9]+)$`)
	pullURLRe    = regexp.MustCompile(`^https?://github\.com/` + repoRe + `/pull/([0-9]+)/?$`)
	repoBranchRe = regexp.MustCompile(`^` + repoRe + `:(\S+)$`)
	treeURLRe    = regexp.MustCompile(`^https?://github\.com/` + repoRe + `/tree/(\S+?)/?$`)
)

// Add parses the filter token and adds the result to the predicate.
// The first matching form is used:
//
//	label:<value>, user:<value>, pr:<N>
//	[org/repo]#N
//	https://github.com/org/repo/pull/N
//	org/repo:branch
//	https://github.com/org/repo/tree/branch
//	<label>
func (b *PredicateBuilder) Add(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty filter")
	}

	if key, val, found := strings.Cut(token, ":"); found {
		if val == "" && (key == FacetLabel || key == FacetUser || key == FacetPR) {
			return fmt.Errorf("filter %q has an empty value", token)
		}

		switch key {
		case FacetLabel:
			b.AddLabel(val)
			return nil
		case FacetUser:
			b.AddUser(val)
			return nil
		case FacetPR:
			nr, err := strconv.Atoi(strings.TrimPrefix(val, "#"))
			if err != nil || nr <= 0 {
				return fmt.Errorf("invalid pull request number in filter %q", token)
			}
			b.AddPR(nr)
			return nil
		}
	}

	if m := prRefRe.FindStringSubmatch(token); m != nil {
		nr, _ := strconv.Atoi(m[2])
		if m[1] == "" {
			b.AddPR(nr)
			return nil
		}
		b.AddRepoScoped(m[1], prValue(nr))
		return nil
	}

	if m := pullURLRe.FindStringSubmatch(token); m != nil {
		nr, _ := strconv.Atoi(m[2])
		b.AddRepoScoped(m[1], prValue(nr))
		return nil
	}

	if m := repoBranchRe.FindStringSubmatch(token); m != nil {
		b.AddRepoScoped(m[1], m[2])
		return nil
	}

	if m := treeURLRe.FindStringSubmatch(token); m != nil {
		b.AddRepoScoped(m[1], m[2])
		return nil
	}

	b.AddLabel(token)
	return nil
}

// Build returns the constructed predicate. The builder can be used further,
// modifications do not affect returned predicates.
func (b *PredicateBuilder) Build() Predicate {
	result := Predicate{
		labels: cloneStrs(b.p.labels),
		users:  cloneStrs(b.p.users),
		prs:    cloneStrs(b.p.prs),
	}

	if len(b.p.repoScoped) > 0 {
		result.repoScoped = make(map[string][]string, len(b.p.repoScoped))
		for k, v := range b.p.repoScoped {
			result.repoScoped[k] = cloneStrs(v)
		}
	}

	return result
}

// ParsePredicate parses filter tokens into a Predicate.
func ParsePredicate(tokens []string) (Predicate, error) {
	b := NewPredicateBuilder()

	for _, t := range tokens {
		if err := b.Add(t); err != nil {
			return Predicate{}, err
		}
	}

	return b.Build(), nil
}

// RepoName returns the repository part of "org/repo".
func RepoName(fullName string) string {
	if idx := strings.LastIndexByte(fullName, '/'); idx >= 0 {
		return fullName[idx+1:]
	}

	return fullName
}

func prValue(number int) string {
	return "#" + strconv.Itoa(number)
}

func appendUniq(sl []string, v string) []string {
	if contains(sl, v) {
		return sl
	}

	return append(sl, v)
}

func contains(sl []string, v string) bool {
	for _, e := range sl {
		if e == v {
			return true
		}
	}

	return false
}

func cloneStrs(sl []string) []string {
	if len(sl) == 0 {
		return nil
	}

	return append([]string(nil), sl...)
}

func strsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
