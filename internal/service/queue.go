// Package service hosts the song request queue: submission with duplicate
// merging, admin edits, set order maintenance and the read models.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	infraevents "github.com/jonesrussell/setlist/infrastructure/events"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/database"
	"github.com/jonesrussell/setlist/internal/domain"
	"github.com/jonesrussell/setlist/internal/intake"
	"github.com/jonesrussell/setlist/internal/lock"
	"github.com/jonesrussell/setlist/internal/moderation"
	"github.com/jonesrussell/setlist/internal/ratelimit"
	"github.com/jonesrussell/setlist/internal/telemetry"
)

// EntryStore is the persistence the queue needs. Every method that changes
// statuses or orders renumbers the active queue in the same transaction.
type EntryStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Entry, error)
	GetActiveByTrack(ctx context.Context, trackID string) (*domain.Entry, error)
	Create(ctx context.Context, e *domain.Entry) (*domain.Entry, error)
	Save(ctx context.Context, e *domain.Entry) (*domain.Entry, error)
	Reorder(ctx context.Context, plan func(active []int64) ([]int64, error)) error
	ApplyBulkUpdate(ctx context.Context, u database.BulkUpdate) ([]int64, error)
	DeleteNextApproved(ctx context.Context) (int64, bool, error)
	DeleteByStatus(ctx context.Context, statuses ...domain.Status) (int64, error)
	RenumberActive(ctx context.Context) error
	List(ctx context.Context, f database.EntryFilter) ([]*domain.Entry, error)
	ListApproved(ctx context.Context, limit int) ([]*domain.Entry, error)
	ListAll(ctx context.Context) ([]*domain.Entry, error)
}

// RateLimiter admits submissions per identity.
type RateLimiter interface {
	CheckAndConsume(ctx context.Context, identity string) (ratelimit.Decision, error)
}

// Moderator decides the automatic status of a track.
type Moderator interface {
	Decide(ctx context.Context, trackName string, artists []string, confidence domain.ContentConfidence) moderation.Decision
}

// EventPublisher receives committed queue changes.
type EventPublisher interface {
	PublishAsync(event infraevents.QueueEvent)
}

// Recorder counts queue outcomes.
type Recorder interface {
	Submission(outcome string)
	ModerationDecision(status string)
	Renumbered()
}

// Deps wires a QueueService. Events and Metrics are optional.
type Deps struct {
	Store     EntryStore
	Limiter   RateLimiter
	Moderator Moderator
	Locker    lock.Locker
	Events    EventPublisher
	Metrics   Recorder
	Logger    infralogger.Logger
}

// QueueService implements the request queue operations.
type QueueService struct {
	store     EntryStore
	limiter   RateLimiter
	moderator Moderator
	locker    lock.Locker
	events    EventPublisher
	metrics   Recorder
	logger    infralogger.Logger
	now       func() time.Time
}

// NewQueueService creates a QueueService.
func NewQueueService(deps Deps) *QueueService {
	log := deps.Logger
	if log == nil {
		log = infralogger.NewNop()
	}
	return &QueueService{
		store:     deps.Store,
		limiter:   deps.Limiter,
		moderator: deps.Moderator,
		locker:    deps.Locker,
		events:    deps.Events,
		metrics:   deps.Metrics,
		logger:    log,
		now:       time.Now,
	}
}

// SubmitResult is the outcome of Submit. When RateLimit.Allowed is false,
// Entry is nil and nothing was written.
type SubmitResult struct {
	Entry           *domain.Entry
	DuplicateJoined bool
	RateLimit       ratelimit.Decision
}

// Refused reports whether the submission was rate limited.
func (r *SubmitResult) Refused() bool {
	return !r.RateLimit.Allowed
}

// Submit validates a song request, applies the per-identity rate limit and
// either creates the track's entry or joins the active one.
func (s *QueueService) Submit(ctx context.Context, payload intake.Payload, identity string) (*SubmitResult, error) {
	sub, err := intake.Normalize(payload)
	if err != nil {
		s.recordSubmission(telemetry.OutcomeInvalid)
		return nil, err
	}

	limit, err := s.limiter.CheckAndConsume(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("check rate limit: %w", err)
	}
	if !limit.Allowed {
		s.recordSubmission(telemetry.OutcomeRateLimited)
		return &SubmitResult{RateLimit: limit}, nil
	}

	// An admitted submission always runs to completion.
	ctx = context.WithoutCancel(ctx)

	entry, joined, err := s.upsert(ctx, sub)
	if err != nil {
		return nil, err
	}

	outcome, eventType := telemetry.OutcomeCreated, infraevents.RequestCreated
	if joined {
		outcome, eventType = telemetry.OutcomeMerged, infraevents.RequestMerged
	}
	s.recordSubmission(outcome)
	s.renumbered()
	s.publish(eventType, requestPayload(entry, nil))

	s.logger.Info("Song request accepted",
		infralogger.Int64("entry_id", entry.ID),
		infralogger.String("track_id", entry.TrackID),
		infralogger.String("status", string(entry.Status)),
		infralogger.Int("votes", entry.VoteCount),
		infralogger.Int("priority", entry.PriorityScore),
		infralogger.Bool("duplicate_joined", joined),
	)

	return &SubmitResult{Entry: entry, DuplicateJoined: joined, RateLimit: limit}, nil
}

// upsert holds the track lock while it reads, merges and writes the entry.
func (s *QueueService) upsert(ctx context.Context, sub intake.Submission) (*domain.Entry, bool, error) {
	release, err := s.locker.Lock(ctx, "track:"+sub.TrackID)
	if err != nil {
		return nil, false, fmt.Errorf("lock track %s: %w", sub.TrackID, err)
	}
	defer release()

	existing, err := s.store.GetActiveByTrack(ctx, sub.TrackID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		created, createErr := s.create(ctx, sub)
		if !errors.Is(createErr, domain.ErrConflictingState) {
			return created, false, createErr
		}
		// Another writer created the entry first; join it instead.
		existing, err = s.store.GetActiveByTrack(ctx, sub.TrackID)
		if err != nil {
			return nil, false, fmt.Errorf("reload active entry: %w", err)
		}
	case err != nil:
		return nil, false, fmt.Errorf("get active entry: %w", err)
	}

	merged, err := s.merge(ctx, existing, sub)
	if err != nil {
		return nil, false, err
	}
	return merged, true, nil
}

func (s *QueueService) create(ctx context.Context, sub intake.Submission) (*domain.Entry, error) {
	now := s.now().UTC()

	e := &domain.Entry{
		TrackID:           sub.TrackID,
		TrackName:         sub.TrackName,
		Artists:           sub.Artists,
		AlbumName:         sub.AlbumName,
		AlbumImage:        sub.AlbumImage,
		SpotifyURL:        sub.SpotifyURL,
		RequesterName:     sub.RequesterName,
		RequesterRole:     sub.RequesterRole,
		Requesters:        []domain.Requester{sub.Requester(now)},
		CustomMessage:     sub.CustomMessage,
		DedicationMessage: sub.DedicationMessage,
		EventDate:         sub.EventDate,
		Explicit:          sub.Explicit,
		ContentConfidence: sub.ContentConfidence,
		DanceMoment:       sub.DanceMoment,
		EnergyLevel:       sub.EnergyLevel,
		VibeTags:          sub.VibeTags,
		VoteCount:         1,
	}
	e.PriorityScore = domain.ComputePriority(e.PriorityInputs(), now)
	s.applyDecision(e, s.moderator.Decide(ctx, e.TrackName, e.Artists, e.ContentConfidence))

	stored, err := s.store.Create(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	return stored, nil
}

// merge joins sub onto the active entry for its track. Approved entries keep
// their status; everything else is moderated again on the merged inputs.
func (s *QueueService) merge(ctx context.Context, existing *domain.Entry, sub intake.Submission) (*domain.Entry, error) {
	now := s.now().UTC()
	e := *existing

	requesters := slices.Clone(existing.Requesters)
	if len(requesters) == 0 && existing.RequesterName != "" {
		requesters = append(requesters, domain.Requester{
			Name:              existing.RequesterName,
			Role:              existing.RequesterRole,
			CustomMessage:     existing.CustomMessage,
			DedicationMessage: existing.DedicationMessage,
			SubmittedAt:       existing.SubmittedAt,
		})
	}
	e.Requesters = append(requesters, sub.Requester(now))
	e.VoteCount = max(existing.VoteCount, len(e.Requesters))
	e.RequesterRole = domain.HighestRole(e.RequesterRoles())

	e.EventDate = domain.EarlierDate(existing.EventDate, sub.EventDate)
	if existing.ContentConfidence == domain.ConfidenceUnknown {
		e.ContentConfidence = sub.ContentConfidence
	}
	if sub.Explicit != nil {
		e.Explicit = sub.Explicit
	}
	e.DanceMoment = domain.HigherMoment(existing.DanceMoment, sub.DanceMoment)
	e.EnergyLevel = max(existing.EnergyLevel, sub.EnergyLevel)
	e.VibeTags = domain.NormalizeVibeTags(append(slices.Clone(existing.VibeTags), sub.VibeTags...))
	if e.DedicationMessage == "" {
		e.DedicationMessage = sub.DedicationMessage
	}

	if existing.Status != domain.StatusApproved {
		artists := existing.Artists
		if len(artists) == 0 {
			artists = sub.Artists
		}
		s.applyDecision(&e, s.moderator.Decide(ctx, e.TrackName, artists, e.ContentConfidence))
	}
	if !e.Status.Active() {
		e.SetOrder = nil
	}
	e.PriorityScore = domain.ComputePriority(e.PriorityInputs(), now)

	stored, err := s.store.Save(ctx, &e)
	if err != nil {
		return nil, fmt.Errorf("save merged entry: %w", err)
	}
	return stored, nil
}

func (s *QueueService) applyDecision(e *domain.Entry, d moderation.Decision) {
	e.Status = d.Status
	e.ModerationReason = d.Reason
	e.ReviewNote = d.ReviewNote
	if s.metrics != nil {
		s.metrics.ModerationDecision(string(d.Status))
	}
}

func (s *QueueService) recordSubmission(outcome string) {
	if s.metrics != nil {
		s.metrics.Submission(outcome)
	}
}

func (s *QueueService) renumbered() {
	if s.metrics != nil {
		s.metrics.Renumbered()
	}
}

func (s *QueueService) publish(eventType infraevents.EventType, payload any) {
	if s.events == nil {
		return
	}
	s.events.PublishAsync(infraevents.NewQueueEvent(eventType, payload))
}

func requestPayload(e *domain.Entry, changed []string) infraevents.RequestPayload {
	return infraevents.RequestPayload{
		EntryID:  e.ID,
		TrackID:  e.TrackID,
		Track:    e.TrackName,
		Status:   string(e.Status),
		SetOrder: e.SetOrder,
		Votes:    e.VoteCount,
		Priority: e.PriorityScore,
		Changed:  changed,
	}
}
