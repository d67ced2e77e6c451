// Package merge merges open GitHub pull requests and branches into the
// checked out branch of a repository and of all of its submodules.
//
// # Components
//
// The Selector queries the open pull requests of a base branch and decides
// per pull request, based on a filter.FilterSet, if it is merged. Pull
// requests are merged in ascending order of their numbers, followed by the
// branches referenced in the filters.
//
// The Orchestrator merges the selected candidates one after the other.
// When a merge fails, the branch is reset to the commit before the merge
// and the conflict is attributed to the previously merged candidates that
// changed the same files. Processing continues with the next candidate.
//
// The Walker runs selection and merging for a repository and then
// recursively for every submodule, with filters scoped to the submodule.
// Per repository one commit is created that contains all merges and the
// updated submodule commits. Temporary remotes for fetching pull request
// heads from forks are removed when a repository was processed.
package merge
