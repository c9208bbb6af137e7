package session

import (
	"strings"
	"unicode"
)

// FormatTranscript renders turns as the plain-text download format:
// "[ROLE]:\n<content>\n\n----\n\n" per turn.
func FormatTranscript(turns []Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString("[")
		sb.WriteString(strings.ToUpper(string(t.Role)))
		sb.WriteString("]:\n")
		sb.WriteString(t.Content)
		sb.WriteString("\n\n----\n\n")
	}
	return sb.String()
}

// TranscriptFilename is the default export file name, "<prefix>_<id>.txt",
// with characters that are awkward in shells replaced by '_'.
func TranscriptFilename(prefix, id string) string {
	name := prefix + "_" + id
	name = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, name)
	return name + ".txt"
}
