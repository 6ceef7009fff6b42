package lyrics

import (
	"regexp"
	"strings"
)

// Line is one displayable lyric line. ID is its 0-based position.
type Line struct {
	Text string `json:"text"`
	ID   int    `json:"id"`
}

var (
	// credits matches attribution lines providers prepend to the text.
	credits       = regexp.MustCompile(`(?i)lyrics|songwriters|published by|written by`)
	sectionMarker = regexp.MustCompile(`^\[.*\]$`)
	lrcTimestamp  = regexp.MustCompile(`^(?:\[\d{1,2}:\d{2}(?:[.:]\d{1,3})?\]\s*)+`)
	repeatMarkers = map[string]struct{}{"(repeat)": {}, "(2x)": {}, "(x2)": {}, "(x3)": {}, "(x4)": {}}
)

// Process splits raw lyrics into numbered lines, dropping blank lines,
// credits, [Verse]/[Chorus] style markers and repeat markers.
func Process(text string) []Line {
	var lines []Line
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if sectionMarker.MatchString(line) || credits.MatchString(line) {
			continue
		}
		if _, ok := repeatMarkers[strings.ToLower(line)]; ok {
			continue
		}

		lines = append(lines, Line{Text: line, ID: len(lines)})
	}
	return lines
}

// stripTimestamps removes LRC "[mm:ss.xx]" prefixes from synced lyrics.
func stripTimestamps(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = lrcTimestamp.ReplaceAllString(strings.TrimSpace(line), "")
	}
	return strings.Join(lines, "\n")
}
