package moderation

import (
	"context"

	"github.com/jonesrussell/setlist/internal/classifier"
	"github.com/jonesrussell/setlist/internal/domain"
	"github.com/jonesrussell/setlist/internal/lyrics"
)

// RiskLevel grades a lyrics risk score.
type RiskLevel string

const (
	RiskUnknown RiskLevel = "unknown"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
)

const (
	highRiskThreshold   = 70
	mediumRiskThreshold = 35

	profanityPoints = 45
	maxThemeScore   = 45
	maxClassifier   = 65
)

// classifierPoints weights each category family the classifier may raise.
var classifierPoints = []struct {
	category string
	points   int
}{
	{"sexual", 16},
	{"violence", 18},
	{"hate", 22},
	{"illicit", 14},
	{"harassment", 10},
}

const classifierFlaggedPoints = 18

// LyricsFinder looks up lyrics for a track. A miss is an empty result.
type LyricsFinder interface {
	Find(ctx context.Context, trackName string, artists []string) lyrics.Result
}

// Classifier scores text against content categories.
type Classifier interface {
	Classify(ctx context.Context, text string) classifier.Result
}

// ThemeHits counts lyric theme vocabulary matches.
type ThemeHits struct {
	Suggestive int
	Alcohol    int
	Drugs      int
	Violence   int
}

func (h ThemeHits) score() int {
	return min(maxThemeScore, h.Suggestive*4+h.Alcohol*3+h.Drugs*7+h.Violence*6)
}

// LyricsAnalysis is the lyrics stage outcome. Found is false when lyrics
// were disabled or no provider had them; the risk is then zero.
type LyricsAnalysis struct {
	Found      bool
	Provider   string
	Profanity  bool
	Classifier classifier.Result
	Hits       ThemeHits
	RiskScore  int
	RiskLevel  RiskLevel
}

func noLyrics() LyricsAnalysis {
	return LyricsAnalysis{RiskLevel: RiskUnknown}
}

// AnalyzeLyrics scores lyrics text. cls may be nil.
func AnalyzeLyrics(ctx context.Context, text, provider string, cls Classifier) LyricsAnalysis {
	if text == "" {
		return noLyrics()
	}

	a := LyricsAnalysis{
		Found:     true,
		Provider:  provider,
		Profanity: ContainsProfanity(text),
		Hits: ThemeHits{
			Suggestive: suggestiveSet.count(text),
			Alcohol:    alcoholSet.count(text),
			Drugs:      drugSet.count(text),
			Violence:   violenceSet.count(text),
		},
	}
	if cls != nil {
		a.Classifier = cls.Classify(ctx, text)
	}

	risk := a.Hits.score() + classifierScore(a.Classifier)
	if a.Profanity {
		risk += profanityPoints
	}
	a.RiskScore = domain.Clamp(risk, 0, 100)
	a.RiskLevel = riskLevelFor(a.RiskScore)

	return a
}

func classifierScore(r classifier.Result) int {
	score := 0
	if r.Flagged {
		score += classifierFlaggedPoints
	}
	for _, cp := range classifierPoints {
		if r.HasCategory(cp.category) {
			score += cp.points
		}
	}
	return domain.Clamp(score, 0, maxClassifier)
}

func riskLevelFor(score int) RiskLevel {
	switch {
	case score >= highRiskThreshold:
		return RiskHigh
	case score >= mediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}
