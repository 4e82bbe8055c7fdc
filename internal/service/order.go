package service

import (
	"context"
	"fmt"
	"slices"

	infraevents "github.com/jonesrussell/setlist/infrastructure/events"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/domain"
)

// Control action names.
const (
	ControlPlayNextApproved = "play_next_approved"
	ControlClearAll         = "clear_all"
	ControlClearApproved    = "clear_approved"
	ControlClearPending     = "clear_pending"
	ControlClearDenied      = "clear_denied"
	ControlRenumberActive   = "renumber_active"
)

// Reorder moves itemID immediately before beforeID, or to the tail when
// beforeID is nil, and renumbers the active queue.
func (s *QueueService) Reorder(ctx context.Context, itemID int64, beforeID *int64) error {
	var order []int64

	err := s.store.Reorder(ctx, func(active []int64) ([]int64, error) {
		planned, err := planReorder(active, itemID, beforeID)
		order = planned
		return planned, err
	})
	if err != nil {
		return err
	}

	s.renumbered()
	s.publish(infraevents.QueueReordered, infraevents.BatchPayload{
		Action:   "reorder",
		EntryIDs: order,
		Affected: int64(len(order)),
	})
	s.logger.Info("Queue reordered",
		infralogger.Int64("item_id", itemID),
		infralogger.Int("active", len(order)),
	)

	return nil
}

// planReorder returns active with itemID moved before beforeID, or to the
// end when beforeID is nil.
func planReorder(active []int64, itemID int64, beforeID *int64) ([]int64, error) {
	if !slices.Contains(active, itemID) {
		return nil, domain.NewConflictError("Item is not in the active queue")
	}
	if beforeID != nil && (*beforeID == itemID || !slices.Contains(active, *beforeID)) {
		return nil, domain.NewConflictError("Target position item not found in active queue")
	}

	next := slices.DeleteFunc(slices.Clone(active), func(id int64) bool { return id == itemID })
	if beforeID == nil {
		return append(next, itemID), nil
	}
	return slices.Insert(next, slices.Index(next, *beforeID), itemID), nil
}

// ControlResult reports a control action.
type ControlResult struct {
	Action       string `json:"action"`
	UpdatedCount int64  `json:"updatedCount"`
	PlayedItemID *int64 `json:"playedItemId,omitempty"`
}

// Control runs a DJ booth control action.
func (s *QueueService) Control(ctx context.Context, action string) (*ControlResult, error) {
	name := normalizeAction(action)
	if name == "" {
		return nil, domain.NewValidationError("action", "Control action is required")
	}

	result := &ControlResult{Action: name}
	var err error

	switch name {
	case ControlPlayNextApproved:
		var (
			id    int64
			found bool
		)
		id, found, err = s.store.DeleteNextApproved(ctx)
		if found {
			result.UpdatedCount = 1
			result.PlayedItemID = &id
		}
	case ControlClearAll:
		result.UpdatedCount, err = s.store.DeleteByStatus(ctx)
	case ControlClearApproved:
		result.UpdatedCount, err = s.store.DeleteByStatus(ctx, domain.StatusApproved)
	case ControlClearPending:
		result.UpdatedCount, err = s.store.DeleteByStatus(ctx, domain.StatusPending)
	case ControlClearDenied:
		result.UpdatedCount, err = s.store.DeleteByStatus(ctx, domain.StatusRejected)
	case ControlRenumberActive:
		err = s.store.RenumberActive(ctx)
	default:
		return nil, fmt.Errorf("control action %q: %w", name, domain.ErrUnsupportedAction)
	}
	if err != nil {
		return nil, fmt.Errorf("control %s: %w", name, err)
	}

	s.renumbered()
	batch := infraevents.BatchPayload{Action: name, Affected: result.UpdatedCount}
	if result.PlayedItemID != nil {
		batch.EntryIDs = []int64{*result.PlayedItemID}
	}
	s.publish(infraevents.QueueControlApplied, batch)
	s.logger.Info("Control action applied",
		infralogger.String("action", name),
		infralogger.Int64("updated", result.UpdatedCount),
	)

	return result, nil
}
