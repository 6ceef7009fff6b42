package normalize

import (
	"regexp"
	"strings"
)

var (
	// suffixIndicators mark the clause after a dash as a release variant.
	suffixIndicators = regexp.MustCompile(`(?i)\b(?:` + strings.Join([]string{
		`radio (?:edit|version|mix)`,
		`remaster(?:ed)?(?: version)?`,
		`remix(?:ed)?(?: version)?`,
		`extended(?: (?:version|mix))?`,
		`(?:single|album|ep) version`,
		`acoustic(?: version)?`,
		`live(?: (?:version|recording))?`,
		`instrumental(?: version)?`,
		`clean (?:version|edit)`,
		`explicit version`,
		`deluxe (?:version|edition)`,
		`special edition`,
		`bonus track`,
		`(?:alternative|alternate|original|studio|demo) version`,
		`original mix`,
		`(?:mtv )?unplugged`,
	}, "|") + `)\b`)

	yearVersion = regexp.MustCompile(`(?i)(?:remaster|remix|version).*\b(?:19|20)\d{2}\b`)

	suffixDashes = []string{" - ", " – ", " — "}

	versionTermPatterns = []*regexp.Regexp{
		regexp.MustCompile(`remaster(?:ed)?(?:\s+\d{4})?`),
		regexp.MustCompile(`radio\s+(?:edit|version|mix)`),
		regexp.MustCompile(`(?:single|album)\s+version`),
		regexp.MustCompile(`extended\s+(?:version|mix)`),
		regexp.MustCompile(`acoustic\s+version`),
		regexp.MustCompile(`live\s+version`),
		regexp.MustCompile(`remix`),
		regexp.MustCompile(`clean\s+version`),
		regexp.MustCompile(`explicit\s+version`),
	}
)

// TrimVersionSuffix drops a trailing " - <variant>" clause such as
// " - Radio Edit" or " - Remastered 2011", returning the part before the dash.
// Titles without such a clause are returned unchanged.
func TrimVersionSuffix(title string) string {
	for _, dash := range suffixDashes {
		parts := strings.Split(title, dash)
		if len(parts) < 2 {
			continue
		}

		main := strings.TrimSpace(parts[0])
		if main == "" {
			continue
		}
		variant := strings.TrimSpace(parts[1])
		if suffixIndicators.MatchString(variant) || yearVersion.MatchString(variant) {
			return main
		}
	}
	return title
}

// VersionTerms returns the distinct version phrases found in title, lower
// cased, in the order the patterns are listed.
func VersionTerms(title string) []string {
	lower := strings.ToLower(title)

	var terms []string
	seen := make(map[string]struct{})
	for _, p := range versionTermPatterns {
		for _, m := range p.FindAllString(lower, -1) {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			terms = append(terms, m)
		}
	}
	return terms
}
