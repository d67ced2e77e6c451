package rebase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLinks(t *testing.T) {
	text := "Port of the fix.\n" +
		"--rebased-from #12\n" +
		"  --rebased-to 15  \n" +
		"--rebased-from #12\n" +
		"--rebased-to #0\n" +
		"--rebased-to #abc\n" +
		"see --rebased-to #16\n"

	assert.Equal(t,
		[]Link{
			{Direction: RebasedFrom, PR: 12},
			{Direction: RebasedTo, PR: 15},
		},
		ParseLinks(text),
	)
}

func TestLinkString(t *testing.T) {
	l := Link{Direction: RebasedTo, PR: 3}

	assert.Equal(t, "--rebased-to #3", l.String())
	assert.Equal(t, []Link{l}, ParseLinks(l.String()))
	assert.Equal(t, RebasedFrom, RebasedTo.Opposite())
	assert.Equal(t, RebasedTo, RebasedFrom.Opposite())
}
