package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/setlist/internal/database"
	"github.com/jonesrussell/setlist/internal/domain"
)

const (
	defaultPublicLimit = 24
	maxPublicLimit     = 60
	feedUpNextLimit    = 20
	feedArtistLimit    = 6
	feedMomentLimit    = 6
	feedVibeLimit      = 8
	maxQueryLen        = 80
)

// AdminFilter holds the raw admin list filters. Empty fields do not filter.
type AdminFilter struct {
	Status      string
	Confidence  string
	DanceMoment string
	Query       string
}

func (f AdminFilter) parse() (database.EntryFilter, error) {
	var out database.EntryFilter

	if raw := strings.TrimSpace(f.Status); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return out, domain.NewValidationError("status", "Invalid status filter")
		}
		out.Status = status
	}
	if raw := strings.TrimSpace(f.Confidence); raw != "" {
		confidence, ok := domain.ParseConfidence(raw)
		if !ok {
			return out, domain.NewValidationError("confidence", "Invalid confidence filter")
		}
		out.Confidence = confidence
	}
	if raw := strings.TrimSpace(f.DanceMoment); raw != "" {
		moment, ok := domain.ParseDanceMoment(raw)
		if !ok {
			return out, domain.NewValidationError("danceMoment", "Invalid dance moment filter")
		}
		out.DanceMoment = moment
	}
	out.Query = domain.Sanitize(f.Query, maxQueryLen)

	return out, nil
}

// ListAdmin returns the filtered admin view: active entries in set order,
// then rejected ones.
func (s *QueueService) ListAdmin(ctx context.Context, f AdminFilter) ([]*domain.Entry, error) {
	filter, err := f.parse()
	if err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

// ListActive returns the filtered active entries in set order.
func (s *QueueService) ListActive(ctx context.Context, f AdminFilter) ([]*domain.Entry, error) {
	filter, err := f.parse()
	if err != nil {
		return nil, err
	}
	filter.ActiveOnly = true
	return s.list(ctx, filter)
}

func (s *QueueService) list(ctx context.Context, filter database.EntryFilter) ([]*domain.Entry, error) {
	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// PublicQueue returns approved entries in play order. status may only be
// empty or "approved". A zero limit uses the default of 24.
func (s *QueueService) PublicQueue(ctx context.Context, status string, limit int) ([]*domain.Entry, error) {
	if raw := strings.TrimSpace(status); raw != "" {
		if parsed, ok := domain.ParseStatus(raw); !ok || parsed != domain.StatusApproved {
			return nil, domain.NewValidationError("status", "Public queue only supports approved tracks.")
		}
	}
	if limit == 0 {
		limit = defaultPublicLimit
	}
	limit = domain.Clamp(limit, 1, maxPublicLimit)

	entries, err := s.store.ListApproved(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list approved entries: %w", err)
	}
	return entries, nil
}

// Feed is the public dashboard.
type Feed struct {
	UpNext          []*domain.Entry
	Summary         FeedSummary
	TrendingArtists []ArtistVotes
	TrendingMoments []MomentVotes
	TrendingVibes   []TagVotes
}

// FeedSummary condenses the analytics for the public dashboard.
type FeedSummary struct {
	PendingVotes       int     `json:"pendingVotes"`
	ApprovedVotes      int     `json:"approvedVotes"`
	RejectedVotes      int     `json:"rejectedVotes"`
	AverageEnergyLevel float64 `json:"averageEnergyLevel"`
	ApprovalRate       float64 `json:"approvalRate"`
}

// Feed builds the public dashboard.
func (s *QueueService) Feed(ctx context.Context) (*Feed, error) {
	upNext, err := s.store.ListApproved(ctx, feedUpNextLimit)
	if err != nil {
		return nil, fmt.Errorf("list up next: %w", err)
	}

	analytics, err := s.Analytics(ctx)
	if err != nil {
		return nil, err
	}

	return &Feed{
		UpNext: upNext,
		Summary: FeedSummary{
			PendingVotes:       analytics.StatusBreakdown[domain.StatusPending],
			ApprovedVotes:      analytics.StatusBreakdown[domain.StatusApproved],
			RejectedVotes:      analytics.StatusBreakdown[domain.StatusRejected],
			AverageEnergyLevel: analytics.Totals.AverageEnergyLevel,
			ApprovalRate:       analytics.Totals.ApprovalRate,
		},
		TrendingArtists: head(analytics.TopArtists, feedArtistLimit),
		TrendingMoments: head(analytics.DanceMoments, feedMomentLimit),
		TrendingVibes:   head(analytics.VibeTags, feedVibeLimit),
	}, nil
}

// Analytics summarizes every entry, weighting each by its votes.
func (s *QueueService) Analytics(ctx context.Context) (*Analytics, error) {
	entries, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all entries: %w", err)
	}
	return BuildAnalytics(entries), nil
}

func head[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
