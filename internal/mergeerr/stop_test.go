package mergeerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitTagExists, ExitCode(NewStopError(ExitTagExists, "tag %q exists", "v1")))

	wrapped := fmt.Errorf("tagging failed: %w", NewStopError(ExitInvalidTag, "invalid tag"))
	assert.Equal(t, ExitInvalidTag, ExitCode(wrapped))
	assert.Equal(t, "tagging failed: invalid tag", wrapped.Error())
}

func TestRetryableErrorUnwrap(t *testing.T) {
	orig := errors.New("502 bad gateway")
	err := fmt.Errorf("listing pull requests: %w", NewRetryableAnytimeError(orig))

	var retryErr *RetryableError
	assert.ErrorAs(t, err, &retryErr)
	assert.ErrorIs(t, err, orig)
	assert.True(t, retryErr.After.IsZero())
}
