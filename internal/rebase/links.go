package rebase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Direction string

const (
	// RebasedTo marks a pull request whose changes were ported to
	// another branch by the linked pull request.
	RebasedTo Direction = "--rebased-to"
	// RebasedFrom marks a pull request that ports the changes of the
	// linked pull request.
	RebasedFrom Direction = "--rebased-from"
)

// Opposite returns the direction a link must have in the linked pull
// request.
func (d Direction) Opposite() Direction {
	if d == RebasedTo {
		return RebasedFrom
	}

	return RebasedTo
}

// Link is a "--rebased-to #<N>" or "--rebased-from #<N>" reference from
// one pull request to another.
type Link struct {
	Direction Direction
	PR        int
}

func (l Link) String() string {
	return fmt.Sprintf("%s #%d", l.Direction, l.PR)
}

var linkRe = regexp.MustCompile(`^(--rebased-to|--rebased-from)\s+#?([0-9]+)\s*$`)

// ParseLinks returns the links in all lines of text, in the order they
// appear. Duplicates are removed.
func ParseLinks(text string) []Link {
	var result []Link

	for _, line := range strings.Split(text, "\n") {
		m := linkRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		nr, err := strconv.Atoi(m[2])
		if err != nil || nr <= 0 {
			continue
		}

		result = appendLink(result, Link{Direction: Direction(m[1]), PR: nr})
	}

	return result
}

func appendLink(links []Link, l Link) []Link {
	for _, e := range links {
		if e == l {
			return links
		}
	}

	return append(links, l)
}

func hasLink(links []Link, l Link) bool {
	for _, e := range links {
		if e == l {
			return true
		}
	}

	return false
}
