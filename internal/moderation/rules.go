package moderation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jonesrussell/setlist/internal/domain"
)

const (
	rejectBelowScore  = 35
	approveAboveScore = 70
)

// reasonRule maps a lyrics signal to a rejection reason. Rules are tried in
// order and the first match wins.
type reasonRule struct {
	name    string
	matches func(a LyricsAnalysis) bool
	reason  domain.ModerationReason
}

func categoryRule(prefix string, reason domain.ModerationReason) reasonRule {
	return reasonRule{
		name: "category:" + prefix,
		matches: func(a LyricsAnalysis) bool {
			return slices.ContainsFunc(a.Classifier.Categories, func(c string) bool {
				return strings.HasPrefix(c, prefix)
			})
		},
		reason: reason,
	}
}

var reasonRules = []reasonRule{
	categoryRule("hate", domain.ReasonHateSpeech),
	categoryRule("violence", domain.ReasonViolence),
	categoryRule("sexual", domain.ReasonSexualContent),
	categoryRule("illicit", domain.ReasonPolicyViolation),
	{
		name:    "profanity",
		matches: func(a LyricsAnalysis) bool { return a.Profanity },
		reason:  domain.ReasonExplicitLyrics,
	},
	{
		name:    "theme:substances",
		matches: func(a LyricsAnalysis) bool { return a.Hits.Drugs > 0 || a.Hits.Alcohol > 0 },
		reason:  domain.ReasonPolicyViolation,
	},
	{
		name:    "theme:violence",
		matches: func(a LyricsAnalysis) bool { return a.Hits.Violence > 0 },
		reason:  domain.ReasonViolence,
	},
	{
		name:    "theme:suggestive",
		matches: func(a LyricsAnalysis) bool { return a.Hits.Suggestive > 0 },
		reason:  domain.ReasonSexualContent,
	},
}

// rejectionReason picks the reason for a rejection from the lyrics signals,
// falling back on the track's content confidence. It also returns the name
// of the rule that fired.
func rejectionReason(a LyricsAnalysis, confidence domain.ContentConfidence) (domain.ModerationReason, string) {
	if a.Found {
		for _, rule := range reasonRules {
			if rule.matches(a) {
				return rule.reason, rule.name
			}
		}
	}
	if confidence == domain.ConfidenceExplicit {
		return domain.ReasonExplicitLyrics, "confidence:explicit"
	}
	return domain.ReasonPolicyViolation, "fallback"
}

// signals are the inputs of a status decision.
type signals struct {
	confidence domain.ContentConfidence
	lyrics     LyricsAnalysis
	combined   int
}

// statusRule is one row of the decision table.
type statusRule struct {
	applies func(s signals) bool
	status  domain.Status
	note    string
}

var statusRules = []statusRule{
	{
		applies: func(s signals) bool {
			return s.confidence == domain.ConfidenceExplicit ||
				s.lyrics.Profanity ||
				s.lyrics.RiskLevel == RiskHigh ||
				s.combined < rejectBelowScore
		},
		status: domain.StatusRejected,
		note:   "Auto-marked explicit by moderation (%d).",
	},
	{
		applies: func(s signals) bool { return s.lyrics.RiskLevel == RiskMedium },
		status:  domain.StatusPending,
		note:    "Auto-flagged for review (%d).",
	},
	{
		applies: func(s signals) bool {
			return s.confidence == domain.ConfidenceClean && s.combined >= approveAboveScore
		},
		status: domain.StatusApproved,
		note:   "Auto-approved to queue (%d).",
	},
}

var fallbackRule = statusRule{status: domain.StatusPending, note: "Auto-flagged for review (%d)."}

func decideStatus(s signals) (domain.Status, string) {
	rule := fallbackRule
	for _, r := range statusRules {
		if r.applies(s) {
			rule = r
			break
		}
	}
	return rule.status, fmt.Sprintf(rule.note, s.combined)
}

// reviewNote summarizes the lyrics signals for the reviewer. Without lyrics
// it is the rule's own note.
func reviewNote(base, combined int, a LyricsAnalysis, fallback string) string {
	if !a.Found {
		return fallback
	}

	provider := a.Provider
	if provider == "" {
		provider = "unknown"
	}

	parts := []string{
		"Lyrics provider: " + provider,
		fmt.Sprintf("risk=%s/%d", a.RiskLevel, a.RiskScore),
	}

	switch {
	case !a.Classifier.Available:
		parts = append(parts, "openai=disabled")
	case a.Classifier.Failed:
		parts = append(parts, "openai=failed")
	default:
		parts = append(parts, "openai=ok")
	}

	if len(a.Classifier.Categories) > 0 {
		parts = append(parts, "openai_categories:"+strings.Join(a.Classifier.Categories, ","))
	}
	if a.Classifier.Flagged {
		parts = append(parts, "openai_flagged")
	}
	if a.Profanity {
		parts = append(parts, "profanity detected")
	}

	hits := []struct {
		label string
		n     int
	}{
		{"suggestive", a.Hits.Suggestive},
		{"alcohol", a.Hits.Alcohol},
		{"drugs", a.Hits.Drugs},
		{"violence", a.Hits.Violence},
	}
	for _, h := range hits {
		if h.n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", h.label, h.n))
		}
	}

	parts = append(parts, fmt.Sprintf("score %d -> %d", base, combined))
	return strings.Join(parts, " | ")
}
