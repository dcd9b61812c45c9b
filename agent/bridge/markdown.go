package bridge

import (
	"regexp"
	"strings"
)

var (
	markupChars = regexp.MustCompile("[*#_`]")
	spaceRuns   = regexp.MustCompile(`[ \t]{2,}`)
	blankRuns   = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)
)

// StripMarkdown removes emphasis, heading and code characters so a TTS
// engine does not read them out.
func StripMarkdown(s string) string {
	s = markupChars.ReplaceAllString(s, "")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
