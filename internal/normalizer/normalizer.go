package normalizer

import (
	"regexp"
	"strconv"
	"strings"
)

// NormalizedTitle is the canonical form of a raw playlist title. Fields that
// could not be extracted are nil, never zero values.
type NormalizedTitle struct {
	Title   string
	Year    *string
	Season  *int
	Episode *int
	Quality *string
}

// qualityToken maps a token found in a title to its canonical quality label.
// Ordered longest-token first so "2160p" wins over "4k" and "hdr" over "hd".
var qualityTokens = []struct {
	token string
	label string
}{
	{"2160p", "2160p"},
	{"1080p", "1080p"},
	{"720p", "720p"},
	{"480p", "SD"},
	{"uhd", "4K"},
	{"hdr", "HDR"},
	{"fhd", "1080p"},
	{"4k", "4K"},
	{"sd", "SD"},
}

// Normalizer parses raw playlist titles into canonical (title, year,
// season/episode, quality) tuples. Pure and deterministic; safe for
// concurrent use once constructed.
type Normalizer struct {
	bracketPattern        *regexp.Regexp
	parenNoisePattern     *regexp.Regexp
	yearParenPattern      *regexp.Regexp
	yearBarePattern       *regexp.Regexp
	seasonEpisodePatterns []*regexp.Regexp
	seasonOnlyPatterns    []*regexp.Regexp
	qualityPatterns       []*regexp.Regexp
	separatorPattern      *regexp.Regexp
	spacePattern          *regexp.Regexp
	edgeTrimPattern       *regexp.Regexp
}

// New creates a Normalizer with precompiled patterns
func New() *Normalizer {
	return &Normalizer{
		bracketPattern:    regexp.MustCompile(`\[[^\]]*\]`),
		parenNoisePattern: regexp.MustCompile(`\([^)]*\)`),
		yearParenPattern:  regexp.MustCompile(`\(((?:19|20)\d{2})\)`),
		yearBarePattern:   regexp.MustCompile(`(^|[^0-9A-Za-z])((?:19|20)\d{2})([^0-9A-Za-z]|$)`),
		seasonEpisodePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bs\s?(\d{1,2})\s?[-. ]?\s?e\s?(\d{1,3})\b`),
			regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`),
			regexp.MustCompile(`(?i)\b(?:season|saison|temporada|staffel)\s*(\d{1,2})\s*(?:episode|episodio|folge|ep)\s*(\d{1,3})\b`),
		},
		seasonOnlyPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bs(\d{1,2})\b`),
			regexp.MustCompile(`(?i)\b(?:season|saison|temporada|staffel)\s*(\d{1,2})\b`),
		},
		qualityPatterns:  compileQualityPatterns(),
		separatorPattern: regexp.MustCompile(`[._]`),
		spacePattern:     regexp.MustCompile(`\s{2,}`),
		edgeTrimPattern:  regexp.MustCompile(`^[-:,\s]+|[-:,\s]+$`),
	}
}

func compileQualityPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(qualityTokens))
	for i, q := range qualityTokens {
		patterns[i] = regexp.MustCompile(`(?i)\b` + q.token + `\b`)
	}
	return patterns
}

// Normalize parses a raw title into its canonical form. Extraction order is
// season/episode, quality, then year, each token removed from the working
// string so the canonical title excludes everything extracted.
func (n *Normalizer) Normalize(raw string) NormalizedTitle {
	result := NormalizedTitle{}

	work := n.separatorPattern.ReplaceAllString(raw, " ")

	// Year inside parentheses, before parenthetical noise is dropped
	if m := n.yearParenPattern.FindStringSubmatch(work); m != nil {
		year := m[1]
		result.Year = &year
		work = strings.Replace(work, m[0], " ", 1)
	}

	// Release-group and language tags
	work = n.bracketPattern.ReplaceAllString(work, " ")
	work = n.parenNoisePattern.ReplaceAllString(work, " ")

	work, result.Season, result.Episode = n.extractSeasonEpisode(work)
	work, result.Quality = n.extractQuality(work)

	if result.Year == nil {
		work, result.Year = n.extractBareYear(work)
	}

	result.Title = n.collapse(work)
	return result
}

// extractSeasonEpisode pulls season/episode numbers out of the title. Paired
// forms (S01E02, 1x02, Season 1 Episode 2) are tried before season-only forms.
func (n *Normalizer) extractSeasonEpisode(title string) (string, *int, *int) {
	for _, pattern := range n.seasonEpisodePatterns {
		matches := pattern.FindStringSubmatch(title)
		if len(matches) >= 3 {
			season, err := strconv.Atoi(matches[1])
			if err != nil {
				continue
			}
			episode, err := strconv.Atoi(matches[2])
			if err != nil {
				continue
			}
			title = strings.Replace(title, matches[0], " ", 1)
			return title, &season, &episode
		}
	}

	for _, pattern := range n.seasonOnlyPatterns {
		matches := pattern.FindStringSubmatch(title)
		if len(matches) >= 2 {
			season, err := strconv.Atoi(matches[1])
			if err != nil {
				continue
			}
			title = strings.Replace(title, matches[0], " ", 1)
			return title, &season, nil
		}
	}

	return title, nil, nil
}

// extractQuality finds the first quality token, longest-token first, and
// removes every known quality token from the title.
func (n *Normalizer) extractQuality(title string) (string, *string) {
	var label *string
	for i, pattern := range n.qualityPatterns {
		if pattern.MatchString(title) {
			if label == nil {
				l := qualityTokens[i].label
				label = &l
			}
			title = pattern.ReplaceAllString(title, " ")
		}
	}
	return title, label
}

// extractBareYear takes the last plausible 4-digit year token (1900-2099).
// A title that is itself a number ("1984") is a known false positive; the
// only guard is that the year is never taken when it is the whole title.
func (n *Normalizer) extractBareYear(title string) (string, *string) {
	matches := n.yearBarePattern.FindAllStringSubmatchIndex(title, -1)
	if len(matches) == 0 {
		return title, nil
	}

	last := matches[len(matches)-1]
	year := title[last[4]:last[5]]

	remaining := n.collapse(title[:last[4]] + " " + title[last[5]:])
	if remaining == "" {
		return title, nil
	}
	return title[:last[4]] + " " + title[last[5]:], &year
}

// collapse squeezes repeated whitespace and trims separator debris at the edges
func (n *Normalizer) collapse(title string) string {
	title = n.spacePattern.ReplaceAllString(title, " ")
	title = strings.TrimSpace(title)
	title = n.edgeTrimPattern.ReplaceAllString(title, "")
	return strings.TrimSpace(title)
}
