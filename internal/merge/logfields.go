package merge

import (
	"go.uber.org/zap"

	"github.com/simplesurance/prmerger/internal/logfields"
)

var (
	logEventCandidateExcluded  = logfields.Event("candidate_excluded")
	logEventCandidateSelected  = logfields.Event("candidate_selected")
	logEventMerged             = logfields.Event("candidate_merged")
	logEventMergeConflict      = logfields.Event("candidate_merge_conflict")
	logEventMergeSkipped       = logfields.Event("candidate_merge_skipped")
	logEventCommentFailed      = logfields.Event("github_comment_failed")
	logEventStatusFailed       = logfields.Event("github_commit_status_failed")
	logEventBumpCommit         = logfields.Event("bump_commit_created")
	logEventSubmoduleFailed    = logfields.Event("submodule_processing_failed")
	logEventRemoteRemoveFailed = logfields.Event("remote_removal_failed")
	logEventBaseOverridden     = logfields.Event("base_branch_overridden")
)

func logFieldReason(reason string) zap.Field {
	return zap.String("reason", reason)
}

func logFieldRepo(fullName string) zap.Field {
	return zap.String("github.repository_full_name", fullName)
}
