package api

import (
	"time"

	"github.com/jonesrussell/setlist/internal/domain"
	"github.com/jonesrussell/setlist/internal/service"
)

// EntryResponse is the admin view of a queue entry.
type EntryResponse struct {
	ID                int64                    `json:"id"`
	TrackID           string                   `json:"trackId"`
	TrackName         string                   `json:"trackName"`
	Artists           []string                 `json:"artists"`
	AlbumName         string                   `json:"albumName"`
	AlbumImage        string                   `json:"albumImage"`
	SpotifyURL        string                   `json:"spotifyUrl"`
	RequesterName     string                   `json:"requesterName"`
	RequesterRole     domain.Role              `json:"requesterRole"`
	Requesters        []domain.Requester       `json:"requesters"`
	CustomMessage     string                   `json:"customMessage"`
	DedicationMessage string                   `json:"dedicationMessage"`
	EventDate         *string                  `json:"eventDate"`
	Explicit          *bool                    `json:"explicit"`
	ContentConfidence domain.ContentConfidence `json:"contentConfidence"`
	DanceMoment       domain.DanceMoment       `json:"danceMoment"`
	EnergyLevel       int                      `json:"energyLevel"`
	VibeTags          []string                 `json:"vibeTags"`
	ModerationReason  domain.ModerationReason  `json:"moderationReason"`
	VoteCount         int                      `json:"voteCount"`
	PriorityScore     int                      `json:"priorityScore"`
	PriorityTier      domain.Tier              `json:"priorityTier"`
	Status            domain.Status            `json:"status"`
	ReviewNote        string                   `json:"reviewNote"`
	DJNotes           string                   `json:"djNotes"`
	SetOrder          *int                     `json:"setOrder"`
	SubmittedAt       time.Time                `json:"submittedAt"`
	UpdatedAt         *time.Time               `json:"updatedAt"`
}

// PublicEntryResponse leaves out requester identities, notes and moderation details.
type PublicEntryResponse struct {
	ID                int64                    `json:"id"`
	TrackID           string                   `json:"trackId"`
	TrackName         string                   `json:"trackName"`
	Artists           []string                 `json:"artists"`
	AlbumName         string                   `json:"albumName"`
	AlbumImage        string                   `json:"albumImage"`
	SpotifyURL        string                   `json:"spotifyUrl"`
	DedicationMessage string                   `json:"dedicationMessage"`
	ContentConfidence domain.ContentConfidence `json:"contentConfidence"`
	DanceMoment       domain.DanceMoment       `json:"danceMoment"`
	EnergyLevel       int                      `json:"energyLevel"`
	VibeTags          []string                 `json:"vibeTags"`
	VoteCount         int                      `json:"voteCount"`
	PriorityScore     int                      `json:"priorityScore"`
	PriorityTier      domain.Tier              `json:"priorityTier"`
	SetOrder          *int                     `json:"setOrder"`
	Status            domain.Status            `json:"status"`
}

// SubmitResponse is an accepted submission.
type SubmitResponse struct {
	EntryResponse

	DuplicateJoined bool      `json:"duplicateJoined,omitempty"`
	RetryAfterSec   int       `json:"retryAfterSec"`
	NextAllowedAt   time.Time `json:"nextAllowedAt"`
}

// RateLimitedResponse is returned with 429.
type RateLimitedResponse struct {
	Error         string    `json:"error"`
	RetryAfterSec int       `json:"retryAfterSec"`
	NextAllowedAt time.Time `json:"nextAllowedAt"`
}

// FeedResponse is the public dashboard.
type FeedResponse struct {
	UpNext          []PublicEntryResponse `json:"upNext"`
	Summary         service.FeedSummary   `json:"summary"`
	TrendingArtists []service.ArtistVotes `json:"trendingArtists"`
	TrendingMoments []service.MomentVotes `json:"trendingMoments"`
	TrendingVibes   []service.TagVotes    `json:"trendingVibes"`
}

func newEntryResponse(e *domain.Entry) EntryResponse {
	return EntryResponse{
		ID:                e.ID,
		TrackID:           e.TrackID,
		TrackName:         e.TrackName,
		Artists:           nonNil(e.Artists),
		AlbumName:         e.AlbumName,
		AlbumImage:        e.AlbumImage,
		SpotifyURL:        e.SpotifyURL,
		RequesterName:     e.RequesterName,
		RequesterRole:     e.RequesterRole,
		Requesters:        nonNil(e.Requesters),
		CustomMessage:     e.CustomMessage,
		DedicationMessage: e.DedicationMessage,
		EventDate:         e.EventDate,
		Explicit:          e.Explicit,
		ContentConfidence: e.ContentConfidence,
		DanceMoment:       e.DanceMoment,
		EnergyLevel:       e.EnergyLevel,
		VibeTags:          nonNil(e.VibeTags),
		ModerationReason:  e.ModerationReason,
		VoteCount:         e.VoteCount,
		PriorityScore:     e.PriorityScore,
		PriorityTier:      e.Tier(),
		Status:            e.Status,
		ReviewNote:        e.ReviewNote,
		DJNotes:           e.DJNotes,
		SetOrder:          e.SetOrder,
		SubmittedAt:       e.SubmittedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func newPublicEntryResponse(e *domain.Entry) PublicEntryResponse {
	return PublicEntryResponse{
		ID:                e.ID,
		TrackID:           e.TrackID,
		TrackName:         e.TrackName,
		Artists:           nonNil(e.Artists),
		AlbumName:         e.AlbumName,
		AlbumImage:        e.AlbumImage,
		SpotifyURL:        e.SpotifyURL,
		DedicationMessage: e.DedicationMessage,
		ContentConfidence: e.ContentConfidence,
		DanceMoment:       e.DanceMoment,
		EnergyLevel:       e.EnergyLevel,
		VibeTags:          nonNil(e.VibeTags),
		VoteCount:         e.VoteCount,
		PriorityScore:     e.PriorityScore,
		PriorityTier:      e.Tier(),
		SetOrder:          e.SetOrder,
		Status:            e.Status,
	}
}

func newEntryResponses(entries []*domain.Entry) []EntryResponse {
	out := make([]EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = newEntryResponse(e)
	}
	return out
}

func newPublicEntryResponses(entries []*domain.Entry) []PublicEntryResponse {
	out := make([]PublicEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = newPublicEntryResponse(e)
	}
	return out
}

func newFeedResponse(f *service.Feed) FeedResponse {
	return FeedResponse{
		UpNext:          newPublicEntryResponses(f.UpNext),
		Summary:         f.Summary,
		TrendingArtists: nonNil(f.TrendingArtists),
		TrendingMoments: nonNil(f.TrendingMoments),
		TrendingVibes:   nonNil(f.TrendingVibes),
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
