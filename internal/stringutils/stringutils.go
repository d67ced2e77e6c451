package stringutils

import "strings"

// Indent prefixes every non-empty line of text with indent.
// Empty lines are kept empty, a trailing newline is preserved.
func Indent(text, indent string) string {
	lines := strings.SplitAfter(text, "\n")

	var sb strings.Builder
	sb.Grow(len(text) + len(lines)*len(indent))

	for _, l := range lines {
		if l != "" && l != "\n" {
			sb.WriteString(indent)
		}
		sb.WriteString(l)
	}

	return sb.String()
}
