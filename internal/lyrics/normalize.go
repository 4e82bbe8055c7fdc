package lyrics

import (
	"regexp"
	"strings"

	"github.com/jonesrussell/setlist/internal/domain"
)

const (
	maxArtistLen = 120
	maxTitleLen  = 200
	maxTitles    = 2
)

var (
	parenthetical = regexp.MustCompile(`\(.*?\)`)
	bracketed     = regexp.MustCompile(`\[.*?\]`)
	editSuffix    = regexp.MustCompile(`(?i)-+\s*(remaster|radio edit|clean|explicit).*`)
)

// NormalizeArtist keeps the lead artist of a credit such as "A, B" or
// "A & B" or "A feat. B".
func NormalizeArtist(artist string) string {
	lead, _, _ := strings.Cut(artist, ",")
	lead, _, _ = strings.Cut(lead, "&")
	lead, _, _ = strings.Cut(lead, " feat")
	return domain.Sanitize(lead, maxArtistLen)
}

// NormalizeTitle strips annotations like "(Live)", "[2011]" and trailing
// "- Remastered 2009" or "- Radio Edit" markers.
func NormalizeTitle(title string) string {
	t := domain.Sanitize(title, maxTitleLen)
	t = parenthetical.ReplaceAllString(t, "")
	t = bracketed.ReplaceAllString(t, "")
	t = editSuffix.ReplaceAllString(t, "")
	return domain.Sanitize(t, maxTitleLen)
}

// primaryArtist returns the first non-empty normalized artist.
func primaryArtist(artists []string) string {
	for _, a := range artists {
		if n := NormalizeArtist(a); n != "" {
			return n
		}
	}
	return ""
}

// titleCandidates returns the raw title and, when different, its normalized form.
func titleCandidates(trackName string) []string {
	raw := domain.Sanitize(trackName, maxTitleLen)
	titles := make([]string, 0, maxTitles)
	if raw != "" {
		titles = append(titles, raw)
	}
	if normalized := NormalizeTitle(raw); normalized != "" && normalized != raw {
		titles = append(titles, normalized)
	}
	return titles
}
