package index

import (
	"regexp"
	"strings"
)

// headingPatterns match common contract section headers at the start of a
// line: "Section 4.2 Termination", "ARTICLE IV", "7. Confidentiality".
// Ordered most specific first.
var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^\s*(section\s+\d+(?:\.\d+)*\.?(?:\s+[^\n]{0,60})?)\s*$`),
	regexp.MustCompile(`(?im)^\s*(article\s+(?:[IVXLC]+|\d+)\.?(?:\s+[^\n]{0,60})?)\s*$`),
	regexp.MustCompile(`(?m)^\s*(\d+(?:\.\d+)*\.\s+[A-Z][^\n]{0,60})\s*$`),
}

// inferHeading returns the section heading a chunk opens under, scanning only
// the first few lines. Chunks that start mid-clause get no heading.
func inferHeading(text string) string {
	head := text
	if i := nthLineEnd(text, 4); i >= 0 {
		head = text[:i]
	}
	for _, re := range headingPatterns {
		if m := re.FindStringSubmatch(head); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// nthLineEnd returns the byte offset of the nth newline, or -1 if the text
// has fewer lines.
func nthLineEnd(text string, n int) int {
	off := 0
	for i := 0; i < n; i++ {
		j := strings.IndexByte(text[off:], '\n')
		if j < 0 {
			return -1
		}
		off += j + 1
	}
	return off - 1
}
