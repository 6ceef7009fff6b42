// Package variations builds the ladder of artist/title search pairs that
// lookup services walk from most to least specific.
package variations

import (
	"regexp"
	"strings"

	"github.com/zachfi/nowplaying/pkg/normalize"
)

// Rule names record which step of the ladder produced a variation.
const (
	RuleVersionPreserved = "version-preserved"
	RuleOriginalArtist   = "original-artist"
	RuleVersionTerm      = "version-term"
	RuleClean            = "clean"
	RuleNoParens         = "no-parens"
	RuleFirstSegment     = "first-segment"
	RuleShortTitle       = "short-title"
	RuleBasic            = "basic"
	RuleAlternate        = "alternate"
	RuleSwapped          = "swapped"
	RuleNoPunctuation    = "no-punctuation"
	RulePhonetic         = "phonetic"
	RuleFirstWords       = "first-words"
	RuleWithThe          = "with-the"
	RuleWithoutThe       = "without-the"
)

// Variation is one candidate pair for an external lookup.
type Variation struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Rule   string `json:"-"`
}

var (
	parens      = regexp.MustCompile(`\s*\([^)]*\)`)
	year        = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	digitRun    = regexp.MustCompile(`\s*\d{4}\s*`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]`)
	phoneticPH  = regexp.MustCompile(`(?i)ph`)
	phoneticCK  = regexp.MustCompile(`(?i)ck`)
)

// Generate returns the deduplicated search ladder for artist and title.
// Pairs compare case-insensitively, keep first-seen order and never carry an
// empty field. The result depends only on the input.
func Generate(artist, title string) []Variation {
	l := newLadder()

	cleanArtist := normalize.CleanArtist(artist)
	basicArtist := normalize.CleanBasic(artist)
	withVersion := normalize.CleanTitlePreserveVersion(title)
	cleanTitle := normalize.CleanTitle(title)

	l.add(RuleVersionPreserved, cleanArtist, withVersion)
	if basicArtist != cleanArtist {
		l.add(RuleOriginalArtist, basicArtist, withVersion)
	}

	for _, term := range normalize.VersionTerms(title) {
		l.add(RuleVersionTerm, cleanArtist, cleanTitle+" "+term)
	}

	l.add(RuleClean, cleanArtist, cleanTitle)

	if noParens := strings.TrimSpace(parens.ReplaceAllString(title, "")); noParens != title {
		l.add(RuleNoParens, cleanArtist, normalize.CleanTitle(noParens))
	}

	if segment := firstSegment(cleanTitle); segment != cleanTitle {
		l.add(RuleFirstSegment, cleanArtist, segment)
		l.add(RuleFirstSegment, firstWord(cleanArtist), segment)
	}

	words := strings.Fields(cleanTitle)
	if len(words) > 3 {
		l.add(RuleShortTitle, cleanArtist, strings.Join(words[:3], " "))
	}

	basicTitle := normalize.CleanBasic(before(title, "("))
	if basicTitle != cleanTitle {
		l.add(RuleBasic, basicArtist, basicTitle)
	}

	for _, alt := range alternates(title, cleanTitle) {
		l.add(RuleAlternate, cleanArtist, alt)
	}

	l.add(RuleSwapped, cleanTitle, cleanArtist)

	bareArtist := collapse(punctuation.ReplaceAllString(cleanArtist, ""))
	bareTitle := collapse(punctuation.ReplaceAllString(cleanTitle, ""))
	if bareArtist != cleanArtist || bareTitle != cleanTitle {
		l.add(RuleNoPunctuation, bareArtist, bareTitle)
	}

	phonetic := phoneticCK.ReplaceAllString(phoneticPH.ReplaceAllString(cleanTitle, "f"), "k")
	if phonetic != cleanTitle {
		l.add(RulePhonetic, cleanArtist, phonetic)
	}

	if len(words) > 5 {
		l.add(RuleFirstWords, cleanArtist, strings.Join(words[:2], " "))
	}

	if len(cleanTitle) > 4 && strings.EqualFold(cleanTitle[:4], "the ") {
		l.add(RuleWithoutThe, cleanArtist, cleanTitle[len("the "):])
	} else {
		l.add(RuleWithThe, cleanArtist, "the "+cleanTitle)
	}

	return l.out
}

// alternates spells remaster, radio and year variants of the title out
// explicitly.
func alternates(raw, cleanTitle string) []string {
	lower := strings.ToLower(raw)
	remaster := strings.Contains(lower, "remaster")
	radio := strings.Contains(lower, "radio edit") || strings.Contains(lower, "radio version")
	if !remaster && !radio && !year.MatchString(raw) {
		return nil
	}

	var alts []string
	if remaster {
		alts = append(alts, cleanTitle+" remastered", cleanTitle+" remaster", cleanTitle)
	}
	if strings.Contains(lower, "radio") {
		alts = append(alts, cleanTitle+" radio version", cleanTitle+" radio edit", cleanTitle)
	}
	if noYear := collapse(digitRun.ReplaceAllString(cleanTitle, " ")); noYear != cleanTitle {
		alts = append(alts, noYear)
	}
	return alts
}

type ladder struct {
	out  []Variation
	seen map[[2]string]struct{}
}

func newLadder() *ladder {
	return &ladder{seen: make(map[[2]string]struct{})}
}

func (l *ladder) add(rule, artist, title string) {
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	if artist == "" || title == "" {
		return
	}

	k := [2]string{strings.ToLower(artist), strings.ToLower(title)}
	if _, ok := l.seen[k]; ok {
		return
	}
	l.seen[k] = struct{}{}
	l.out = append(l.out, Variation{Artist: artist, Title: title, Rule: rule})
}

// firstSegment cuts s at the first "(" and then at the first "-".
func firstSegment(s string) string {
	return strings.TrimSpace(before(before(s, "("), "-"))
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

func before(s, sep string) string {
	b, _, _ := strings.Cut(s, sep)
	return b
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
