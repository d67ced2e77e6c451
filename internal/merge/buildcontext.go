package merge

import "fmt"

const defaultCommitID = "merge"

// BuildContext describes the CI job that runs the merge. It can be empty.
type BuildContext struct {
	JobName     string
	BuildNumber string
	BuildURL    string
}

// CommitID returns the identifier that prefixes generated commit
// messages. It is "<JobName>#<BuildNumber>" if the job is known and "merge"
// otherwise.
func (b *BuildContext) CommitID() string {
	if b == nil || b.JobName == "" || b.BuildNumber == "" {
		return defaultCommitID
	}

	return fmt.Sprintf("%s#%s", b.JobName, b.BuildNumber)
}
