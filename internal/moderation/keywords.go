package moderation

import (
	"strings"
	"sync"
	"unicode/utf8"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"github.com/jonesrussell/setlist/internal/domain"
)

const (
	maxScannedText  = 30000
	maxTermLen      = 60
	trackNameLimit  = 200
	keywordPenalty  = 12
	cleanBaseScore  = 92
	explicitBase    = 8
	unknownBaseline = 62
)

// bannedTerms are matched against the track title and artist names.
var bannedTerms = []string{
	"explicit", "uncensored", "dirty", "parental advisory", "violence", "gun", "drug", "sex",
}

// Lyric theme vocabularies.
var (
	suggestiveTerms = []string{
		"sex", "sexy", "kiss", "touch", "bed", "naked", "body", "freak", "hook up", "make love", "twerk",
	}
	alcoholTerms = []string{
		"alcohol", "drink", "drunk", "whiskey", "vodka", "tequila", "beer", "wine", "shots", "bar", "bottle", "liquor",
	}
	drugTerms = []string{
		"drug", "drugs", "weed", "marijuana", "cocaine", "crack", "meth", "heroin", "xanax", "molly", "ecstasy", "lean", "pills",
	}
	violenceTerms = []string{
		"gun", "guns", "shoot", "murder", "kill", "blood", "knife", "fight", "dead", "die",
	}
	profanityTerms = []string{
		"fuck", "fucking", "shit", "bitch", "motherfucker", "asshole", "dick", "pussy", "nigga", "nigger", "cunt",
	}
)

var (
	bannedSet     = newTermSet(bannedTerms)
	suggestiveSet = newTermSet(suggestiveTerms)
	alcoholSet    = newTermSet(alcoholTerms)
	drugSet       = newTermSet(drugTerms)
	violenceSet   = newTermSet(violenceTerms)
	profanitySet  = newTermSet(profanityTerms)
)

// termSet finds which of its terms occur in a text in one pass.
type termSet struct {
	terms []string

	// Match keeps per-call state inside the automaton.
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
}

func newTermSet(terms []string) *termSet {
	normalized := make([]string, 0, len(terms))
	for _, term := range terms {
		if token := strings.ToLower(domain.Sanitize(term, maxTermLen)); token != "" {
			normalized = append(normalized, token)
		}
	}

	s := &termSet{terms: normalized}
	if len(normalized) > 0 {
		s.matcher = ahocorasick.NewStringMatcher(normalized)
	}
	return s
}

// present returns each term found anywhere in haystack, once.
func (s *termSet) present(haystack string) []string {
	if s.matcher == nil || haystack == "" {
		return nil
	}

	s.mu.Lock()
	hits := s.matcher.Match([]byte(haystack))
	s.mu.Unlock()

	found := make([]string, 0, len(hits))
	for _, i := range hits {
		if i < len(s.terms) {
			found = append(found, s.terms[i])
		}
	}
	return found
}

// count totals occurrences of the terms in text. Phrases count every
// substring occurrence; single words count only where they stand alone.
func (s *termSet) count(text string) int {
	haystack := strings.ToLower(domain.Sanitize(text, maxScannedText))

	total := 0
	for _, term := range s.present(haystack) {
		if strings.Contains(term, " ") {
			total += strings.Count(haystack, term)
			continue
		}
		total += countWord(haystack, term)
	}
	return total
}

// countWord counts standalone occurrences of word. The character on either
// side of a match belongs to that match, so "gun gun" counts once when the
// two are separated by a single character used by the first.
func countWord(haystack, word string) int {
	count, pos := 0, 0
	for from := 0; from <= len(haystack)-len(word); {
		i := strings.Index(haystack[from:], word)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(word)

		leading := start == 0 || (start-1 >= pos && !isWordByte(haystack[start-1]))
		trailing := end == len(haystack) || !isWordByte(haystack[end])
		if !leading || !trailing {
			from = start + 1
			continue
		}

		count++
		pos = end
		if end < len(haystack) {
			_, width := utf8.DecodeRuneInString(haystack[end:])
			pos = end + width
		}
		from = pos
	}
	return count
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// BaseScore is the keyword score of a track before lyrics are considered.
// Each banned term found in the title or artists costs a fixed penalty once.
func BaseScore(trackName string, artists []string, confidence domain.ContentConfidence) int {
	score := unknownBaseline
	switch confidence {
	case domain.ConfidenceClean:
		score = cleanBaseScore
	case domain.ConfidenceExplicit:
		score = explicitBase
	case domain.ConfidenceUnknown:
	}

	haystack := strings.ToLower(domain.Sanitize(trackName, trackNameLimit) + " " + strings.Join(artists, " "))
	score -= keywordPenalty * len(bannedSet.present(haystack))

	return domain.Clamp(score, 0, 100)
}

// CountKeywordHits counts occurrences of terms in text.
func CountKeywordHits(text string, terms []string) int {
	return newTermSet(terms).count(text)
}

// ContainsProfanity reports whether any profanity term appears as a word.
func ContainsProfanity(text string) bool {
	return profanitySet.count(text) > 0
}
