// Package normalize turns noisy artist and title strings into search terms
// for lyrics and artwork services.
//
// Every exported Clean function is pure and idempotent: rules are applied
// until the string stops changing, so feeding a result back in returns it
// unchanged.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxPasses bounds the fixed-point loop. Each pass only removes text, so the
// loop settles long before this in practice.
const maxPasses = 8

// versionWords is the vocabulary that marks a parenthetical or dash clause as
// release noise rather than part of the song name.
const versionWords = `remix(?:ed)?|mix(?:ed)?|version|edit(?:ion)?|remaster(?:ed)?|radio|single|album|live|acoustic|instrumental|extended|clean|explicit|deluxe|official|audio|video|lyrics?|hd|hq|bonus|demo`

var (
	nonWord = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s&'-]+`)
	bracket = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)
	square  = regexp.MustCompile(`\s*\[[^\]]*\]`)

	artistPrefix = regexp.MustCompile(`(?i)^(?:(?:the|a|an|dj|mc|dr|mr|ms|mrs|sir|lady)\.?\s+)+`)
	artistSuffix = regexp.MustCompile(`(?i)(?:\s+(?:jr|sr|ii|iii|iv|v)\.?)+$`)
	artistCollab = regexp.MustCompile(`(?i)\s+(?:feat\.?|featuring|ft\.?|with|x|&|\+|vs\.?|versus|and)\s+.*$`)
	artistGroup  = regexp.MustCompile(`(?i)(?:\s+(?:band|group|orchestra|ensemble|collective|crew))+$`)

	titleFeat     = regexp.MustCompile(`(?i)(?:\s+|\s*[\(\[]\s*)(?:feat\.?|featuring|ft\.?)\s+.*$`)
	versionParens = regexp.MustCompile(`(?i)\s*\([^)]*?\b(?:` + versionWords + `)\b[^)]*\)`)
	versionDash   = regexp.MustCompile(`(?i)\s+[-–—]\s*(?:[\p{L}\p{N}']+\s+){0,2}?\b(?:` + versionWords + `)\b.*$`)
	yearToken     = regexp.MustCompile(`\s*[\(\[]?\b(?:19|20)\d{2}\b[\)\]]?`)
	noiseSuffix   = regexp.MustCompile(`(?i)(?:\s+(?:official|audio|video|lyrics?))+\s*$`)
	danglingDash  = regexp.MustCompile(`(?:\s+[-–—]+)+\s*$`)
	leadingDash   = regexp.MustCompile(`^\s*[-–—]+\s+`)
)

// StripDiacritics decomposes s and drops combining marks so "café" becomes
// "cafe".
func StripDiacritics(s string) string {
	// transform.Chain is stateful; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// CleanBasic replaces everything except letters, digits, whitespace and
// &'- with a space, then collapses whitespace and trims.
func CleanBasic(s string) string {
	if s == "" {
		return ""
	}
	s = nonWord.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// CleanArtist keeps only the primary artist: leading articles and honorifics,
// generational and group suffixes, collaborators and bracketed notes are
// removed.
func CleanArtist(s string) string {
	return fixedPoint(s, cleanArtistOnce)
}

// CleanTitle strips version, remaster, featuring, year and video noise from a
// title.
func CleanTitle(s string) string {
	return fixedPoint(s, cleanTitleOnce)
}

// CleanTitlePreserveVersion only drops square-bracketed notes and featured
// artists, keeping version words such as "Remastered" or "Radio Edit" in the
// search term.
func CleanTitlePreserveVersion(s string) string {
	return fixedPoint(s, func(s string) string {
		s = StripDiacritics(s)
		s = square.ReplaceAllString(s, "")
		s = titleFeat.ReplaceAllString(s, "")
		return CleanBasic(s)
	})
}

func cleanArtistOnce(s string) string {
	s = StripDiacritics(s)
	s = bracket.ReplaceAllString(s, "")
	s = replaceKeep(artistPrefix, s)
	s = replaceKeep(artistCollab, s)
	for {
		before := s
		s = replaceKeep(artistSuffix, s)
		s = replaceKeep(artistGroup, s)
		if s == before {
			break
		}
	}
	return CleanBasic(s)
}

func cleanTitleOnce(s string) string {
	s = StripDiacritics(s)
	s = versionParens.ReplaceAllString(s, "")
	s = square.ReplaceAllString(s, "")
	s = replaceKeep(titleFeat, s)
	s = replaceKeep(versionDash, s)
	s = replaceKeepWith(yearToken, s, " ")
	s = replaceKeep(noiseSuffix, s)
	s = danglingDash.ReplaceAllString(s, "")
	s = leadingDash.ReplaceAllString(s, "")
	return CleanBasic(s)
}

func fixedPoint(s string, once func(string) string) string {
	if s == "" {
		return ""
	}
	out := once(s)
	for i := 0; i < maxPasses; i++ {
		next := once(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

// replaceKeep removes matches of re unless that would leave nothing behind.
func replaceKeep(re *regexp.Regexp, s string) string {
	return replaceKeepWith(re, s, "")
}

func replaceKeepWith(re *regexp.Regexp, s, repl string) string {
	out := re.ReplaceAllString(s, repl)
	if strings.TrimSpace(out) == "" {
		return s
	}
	return out
}
