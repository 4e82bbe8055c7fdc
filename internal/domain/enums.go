package domain

import (
	"slices"
	"strings"
)

// Status is the moderation state of a queue entry.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists every valid Status.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

// Active reports whether entries in this status hold a set order position.
func (s Status) Active() bool { return s != StatusRejected }

// Role is the self-declared role of a requester.
type Role string

const (
	RoleGuest     Role = "guest"
	RoleStudent   Role = "student"
	RoleStaff     Role = "staff"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

var roleWeights = map[Role]int{
	RoleGuest:     4,
	RoleStudent:   8,
	RoleStaff:     14,
	RoleOrganizer: 22,
	RoleAdmin:     30,
}

// Weight is the priority contribution of the role.
func (r Role) Weight() int { return roleWeights[r] }

// ContentConfidence classifies a track's lyrical content.
type ContentConfidence string

const (
	ConfidenceClean    ContentConfidence = "clean"
	ConfidenceExplicit ContentConfidence = "explicit"
	ConfidenceUnknown  ContentConfidence = "unknown"
)

// Confidences lists every valid ContentConfidence.
var Confidences = []ContentConfidence{ConfidenceClean, ConfidenceExplicit, ConfidenceUnknown}

// ConfidenceFromExplicit maps the streaming catalogue explicit flag.
func ConfidenceFromExplicit(explicit *bool) ContentConfidence {
	switch {
	case explicit == nil:
		return ConfidenceUnknown
	case *explicit:
		return ConfidenceExplicit
	default:
		return ConfidenceClean
	}
}

// DanceMoment is the programming slot a track suits.
type DanceMoment string

const (
	MomentAnytime       DanceMoment = "anytime"
	MomentGrandEntrance DanceMoment = "grand_entrance"
	MomentWarmup        DanceMoment = "warmup"
	MomentPeakHour      DanceMoment = "peak_hour"
	MomentSlowDance     DanceMoment = "slow_dance"
	MomentLastDance     DanceMoment = "last_dance"
)

var momentWeights = map[DanceMoment]int{
	MomentAnytime:       3,
	MomentGrandEntrance: 14,
	MomentWarmup:        6,
	MomentPeakHour:      18,
	MomentSlowDance:     8,
	MomentLastDance:     20,
}

// Weight is the priority contribution of the moment.
func (m DanceMoment) Weight() int { return momentWeights[m] }

// VibeTags is the closed set of vibe tags, in display order.
var VibeTags = []string{
	"throwback", "hiphop", "pop", "latin", "afrobeats",
	"country", "rnb", "edm", "line_dance", "singalong",
}

// MaxVibeTags caps the tags stored on one entry.
const MaxVibeTags = 5

// ModerationReason is a closed preset explaining a rejection.
type ModerationReason string

const (
	ReasonNone            ModerationReason = ""
	ReasonCleanVerified   ModerationReason = "clean_version_verified"
	ReasonDuplicateMerged ModerationReason = "duplicate_request_merged"
	ReasonExplicitLyrics  ModerationReason = "explicit_lyrics"
	ReasonViolence        ModerationReason = "violence"
	ReasonHateSpeech      ModerationReason = "hate_speech"
	ReasonSexualContent   ModerationReason = "sexual_content"
	ReasonPolicyViolation ModerationReason = "policy_violation"
	ReasonOther           ModerationReason = "other"
)

var moderationReasons = []ModerationReason{
	ReasonCleanVerified, ReasonDuplicateMerged, ReasonExplicitLyrics, ReasonViolence,
	ReasonHateSpeech, ReasonSexualContent, ReasonPolicyViolation, ReasonOther,
}

func normalizeToken(raw string, limit int) string {
	return strings.ToLower(Truncate(strings.TrimSpace(raw), limit))
}

// ParseStatus accepts a status in any case.
func ParseStatus(raw string) (Status, bool) {
	s := Status(normalizeToken(raw, 20))
	return s, slices.Contains(Statuses, s)
}

// ParseRole accepts a role in any case.
func ParseRole(raw string) (Role, bool) {
	r := Role(normalizeToken(raw, 20))
	_, ok := roleWeights[r]
	return r, ok
}

// NormalizeRole falls back to guest for unknown roles.
func NormalizeRole(raw string) Role {
	if r, ok := ParseRole(raw); ok {
		return r
	}
	return RoleGuest
}

// ParseConfidence accepts a confidence value in any case.
func ParseConfidence(raw string) (ContentConfidence, bool) {
	c := ContentConfidence(normalizeToken(raw, 20))
	return c, slices.Contains(Confidences, c)
}

// NormalizeConfidence falls back to unknown.
func NormalizeConfidence(raw string) ContentConfidence {
	if c, ok := ParseConfidence(raw); ok {
		return c
	}
	return ConfidenceUnknown
}

// ParseDanceMoment accepts a dance moment in any case.
func ParseDanceMoment(raw string) (DanceMoment, bool) {
	m := DanceMoment(normalizeToken(raw, 32))
	_, ok := momentWeights[m]
	return m, ok
}

// NormalizeDanceMoment falls back to anytime.
func NormalizeDanceMoment(raw string) DanceMoment {
	if m, ok := ParseDanceMoment(raw); ok {
		return m
	}
	return MomentAnytime
}

// ParseModerationReason accepts a preset or the empty string.
func ParseModerationReason(raw string) (ModerationReason, bool) {
	r := ModerationReason(normalizeToken(raw, 64))
	if r == ReasonNone {
		return r, true
	}
	return r, slices.Contains(moderationReasons, r)
}

// NormalizeVibeTags lower-cases, drops unknown and repeated tags and keeps at most MaxVibeTags.
func NormalizeVibeTags(tags []string) []string {
	out := make([]string, 0, min(len(tags), MaxVibeTags))
	for _, tag := range tags {
		t := normalizeToken(tag, 32)
		if !slices.Contains(VibeTags, t) || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
		if len(out) == MaxVibeTags {
			break
		}
	}
	return out
}

// HighestRole returns the heaviest role, defaulting to guest.
func HighestRole(roles []Role) Role {
	best := RoleGuest
	for _, r := range roles {
		if r.Weight() > best.Weight() {
			best = r
		}
	}
	return best
}

// HigherMoment returns incoming only when it outweighs current.
func HigherMoment(current, incoming DanceMoment) DanceMoment {
	if incoming.Weight() > current.Weight() {
		return incoming
	}
	return current
}
