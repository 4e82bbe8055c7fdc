package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	infraevents "github.com/jonesrussell/setlist/infrastructure/events"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/database"
	"github.com/jonesrussell/setlist/internal/domain"
)

const (
	maxNoteLen     = 500
	maxSetOrder    = 9999
	defaultBulkMax = 8
	maxBulkLimit   = 40
	maxActionLen   = 64
)

// Bulk action names.
const (
	BulkApproveCleanHighPriority = "approve_clean_high_priority"
	BulkRejectExplicit           = "reject_explicit"
)

const bulkApproveMinPriority = 55

// AdminPatch carries the fields of an admin update. Nil pointers are absent
// fields. SetOrderSet distinguishes an explicit null from an absent setOrder.
type AdminPatch struct {
	Status           *string
	ReviewNote       *string
	ModerationReason *string
	DanceMoment      *string
	EnergyLevel      *float64
	DJNotes          *string
	SetOrderSet      bool
	SetOrder         *float64
}

func (p AdminPatch) empty() bool {
	return p.Status == nil && p.ReviewNote == nil && p.ModerationReason == nil &&
		p.DanceMoment == nil && p.EnergyLevel == nil && p.DJNotes == nil && !p.SetOrderSet
}

func (p AdminPatch) changed() []string {
	var fields []string
	add := func(present bool, name string) {
		if present {
			fields = append(fields, name)
		}
	}
	add(p.Status != nil, "status")
	add(p.ReviewNote != nil, "reviewNote")
	add(p.ModerationReason != nil, "moderationReason")
	add(p.DanceMoment != nil, "danceMoment")
	add(p.EnergyLevel != nil, "energyLevel")
	add(p.DJNotes != nil, "djNotes")
	add(p.SetOrderSet, "setOrder")
	return fields
}

// AdminUpdate applies a reviewer's edit to one entry, recomputes its
// priority and renumbers the queue.
func (s *QueueService) AdminUpdate(ctx context.Context, id int64, patch AdminPatch) (*domain.Entry, error) {
	if patch.empty() {
		return nil, &domain.ValidationError{Field: "body", Message: "No admin updates were provided", Err: domain.ErrNoUpdates}
	}

	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	e := *existing
	if err = applyPatch(&e, existing, patch); err != nil {
		return nil, err
	}
	e.PriorityScore = domain.ComputePriority(e.PriorityInputs(), s.now().UTC())

	stored, err := s.store.Save(ctx, &e)
	if err != nil {
		return nil, fmt.Errorf("save entry %d: %w", id, err)
	}

	changed := patch.changed()
	s.renumbered()
	s.publish(infraevents.RequestUpdated, requestPayload(stored, changed))
	s.logger.Info("Queue entry updated",
		infralogger.Int64("entry_id", stored.ID),
		infralogger.String("status", string(stored.Status)),
		infralogger.Strings("changed", changed),
	)

	return stored, nil
}

func applyPatch(e, existing *domain.Entry, patch AdminPatch) error {
	if patch.Status != nil {
		status, ok := domain.ParseStatus(*patch.Status)
		if !ok {
			return domain.NewValidationError("status", "Invalid status value")
		}
		e.Status = status
	}

	if patch.ModerationReason != nil {
		reason, ok := domain.ParseModerationReason(*patch.ModerationReason)
		if !ok {
			return domain.NewValidationError("moderationReason", "Invalid moderation reason preset")
		}
		e.ModerationReason = reason
	}
	switch {
	case e.Status == domain.StatusRejected && e.ModerationReason == domain.ReasonNone:
		e.ModerationReason = existing.ModerationReason
		if e.ModerationReason == domain.ReasonNone {
			return domain.NewValidationError("moderationReason", "Choose a moderation preset when rejecting a track")
		}
	case e.Status != domain.StatusRejected && patch.ModerationReason == nil:
		e.ModerationReason = domain.ReasonNone
	}

	if patch.DanceMoment != nil {
		moment, ok := domain.ParseDanceMoment(*patch.DanceMoment)
		if !ok {
			return domain.NewValidationError("danceMoment", "Invalid dance moment value")
		}
		e.DanceMoment = moment
	}
	if patch.EnergyLevel != nil {
		e.EnergyLevel = domain.NormalizeEnergy(patch.EnergyLevel)
	}
	if patch.ReviewNote != nil {
		e.ReviewNote = domain.Sanitize(*patch.ReviewNote, maxNoteLen)
	}
	if patch.DJNotes != nil {
		e.DJNotes = domain.Sanitize(*patch.DJNotes, maxNoteLen)
	}

	order := existing.SetOrder
	if patch.SetOrderSet {
		parsed, err := parseSetOrder(patch.SetOrder)
		if err != nil {
			return err
		}
		order = parsed
	}
	e.SetOrder = nextSetOrder(existing, e.Status, order)

	return nil
}

// nextSetOrder applies the order transition rules. A nil result for an
// active entry means append at the tail.
func nextSetOrder(existing *domain.Entry, status domain.Status, requested *int) *int {
	switch {
	case !status.Active():
		return nil
	case !existing.Status.Active():
		return requested
	case requested != nil:
		return requested
	default:
		return existing.SetOrder
	}
}

func parseSetOrder(v *float64) (*int, error) {
	if v == nil {
		return nil, nil
	}
	if *v != math.Trunc(*v) || *v < 1 || *v > maxSetOrder {
		return nil, domain.NewValidationError("setOrder", "Invalid set order value")
	}
	return domain.IntPtr(int(*v)), nil
}

// BulkResult reports the entries a bulk action changed.
type BulkResult struct {
	UpdatedCount int     `json:"updatedCount"`
	UpdatedIDs   []int64 `json:"updatedIds"`
}

// Bulk applies a named bulk action to at most limit pending entries,
// highest priority first. A zero limit uses the default of 8.
func (s *QueueService) Bulk(ctx context.Context, action string, limit int) (*BulkResult, error) {
	if limit == 0 {
		limit = defaultBulkMax
	}
	limit = domain.Clamp(limit, 1, maxBulkLimit)

	var update database.BulkUpdate
	switch normalizeAction(action) {
	case BulkApproveCleanHighPriority:
		update = database.BulkUpdate{
			Confidence:  domain.ConfidenceClean,
			MinPriority: bulkApproveMinPriority,
			Status:      domain.StatusApproved,
			Reason:      domain.ReasonNone,
			ReviewNote:  "Bulk-approved clean/high-priority request.",
		}
	case BulkRejectExplicit:
		update = database.BulkUpdate{
			Confidence: domain.ConfidenceExplicit,
			Status:     domain.StatusRejected,
			Reason:     domain.ReasonExplicitLyrics,
			ReviewNote: "Bulk-rejected explicit track.",
		}
	default:
		return nil, fmt.Errorf("bulk action %q: %w", action, domain.ErrUnsupportedAction)
	}
	update.Limit = limit

	ids, err := s.store.ApplyBulkUpdate(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("apply bulk action: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}

	s.renumbered()
	if len(ids) > 0 {
		s.publish(infraevents.QueueBulkApplied, infraevents.BatchPayload{
			Action:   normalizeAction(action),
			EntryIDs: ids,
			Affected: int64(len(ids)),
		})
	}
	s.logger.Info("Bulk action applied",
		infralogger.String("action", normalizeAction(action)),
		infralogger.Int("updated", len(ids)),
	)

	return &BulkResult{UpdatedCount: len(ids), UpdatedIDs: ids}, nil
}

func normalizeAction(action string) string {
	return strings.ToLower(domain.Sanitize(action, maxActionLen))
}
