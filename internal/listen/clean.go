package listen

import (
	"regexp"
	"strings"
)

// markerRe matches whisper's non-speech annotations such as [BLANK_AUDIO],
// (music) or *coughs*.
var markerRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\*[^*]*\*`)

// CleanTranscript lower-cases a raw transcript, drops non-speech markers and
// collapses whitespace. Silence becomes "".
func CleanTranscript(s string) string {
	s = markerRe.ReplaceAllString(s, " ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
