//nolint:testpackage // Testing internal service requires same package access
package service

import (
	"fmt"
	"testing"

	"github.com/jonesrussell/setlist/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedActive(h *testHarness, id int64, status domain.Status, order int) {
	h.store.seed(&domain.Entry{
		ID: id, TrackID: fmt.Sprintf("track-%d", id), TrackName: fmt.Sprintf("Song %d", id),
		Artists: []string{"Artist"}, RequesterName: "Sam", RequesterRole: domain.RoleGuest,
		ContentConfidence: domain.ConfidenceClean, DanceMoment: domain.MomentAnytime, EnergyLevel: 3,
		VoteCount: 1, PriorityScore: 19, Status: status, SetOrder: domain.IntPtr(order),
	})
}

func TestPlanReorder(t *testing.T) {
	t.Parallel()

	id := func(v int64) *int64 { return &v }

	tests := []struct {
		name    string
		active  []int64
		item    int64
		before  *int64
		want    []int64
		wantMsg string
	}{
		{name: "move before first", active: []int64{3, 5, 7}, item: 5, before: id(3), want: []int64{5, 3, 7}},
		{name: "move to tail", active: []int64{3, 5, 7}, item: 3, want: []int64{5, 7, 3}},
		{name: "move later", active: []int64{3, 5, 7}, item: 3, before: id(7), want: []int64{5, 3, 7}},
		{name: "already in place", active: []int64{3, 5, 7}, item: 5, before: id(7), want: []int64{3, 5, 7}},
		{name: "item inactive", active: []int64{3, 5}, item: 9, wantMsg: "Item is not in the active queue"},
		{name: "target missing", active: []int64{3, 5}, item: 3, before: id(9), wantMsg: "Target position item not found in active queue"},
		{name: "target is item", active: []int64{3, 5}, item: 3, before: id(3), wantMsg: "Target position item not found in active queue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := planReorder(tt.active, tt.item, tt.before)
			if tt.wantMsg != "" {
				require.ErrorIs(t, err, domain.ErrConflictingState)
				assert.Equal(t, tt.wantMsg, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReorder_MovesBeforeTarget(t *testing.T) {
	t.Parallel()

	h := newHarness()
	seedActive(h, 3, domain.StatusApproved, 1)
	seedActive(h, 5, domain.StatusPending, 2)
	seedActive(h, 7, domain.StatusApproved, 3)

	before := int64(3)
	require.NoError(t, h.svc.Reorder(t.Context(), 5, &before))

	assert.Equal(t, map[int64]int{5: 1, 3: 2, 7: 3}, h.store.activeOrders())
	assert.Equal(t, 1, h.recorder.renumbers)
}

func TestReorder_ConflictLeavesOrderUntouched(t *testing.T) {
	t.Parallel()

	h := newHarness()
	seedActive(h, 3, domain.StatusApproved, 1)
	seedActive(h, 5, domain.StatusApproved, 2)

	err := h.svc.Reorder(t.Context(), 42, nil)
	require.ErrorIs(t, err, domain.ErrConflictingState)

	assert.Equal(t, map[int64]int{3: 1, 5: 2}, h.store.activeOrders())
	assert.Empty(t, h.events.types())
}

func TestControl_PlayNextApproved(t *testing.T) {
	t.Parallel()

	h := newHarness()
	seedActive(h, 1, domain.StatusPending, 1)
	seedActive(h, 2, domain.StatusApproved, 2)
	seedActive(h, 3, domain.StatusApproved, 3)

	res, err := h.svc.Control(t.Context(), " Play_Next_Approved ")
	require.NoError(t, err)

	assert.Equal(t, ControlPlayNextApproved, res.Action)
	assert.Equal(t, int64(1), res.UpdatedCount)
	require.NotNil(t, res.PlayedItemID)
	assert.Equal(t, int64(2), *res.PlayedItemID)
	assert.Equal(t, map[int64]int{1: 1, 3: 2}, h.store.activeOrders())
}

func TestControl_PlayNextApprovedEmpty(t *testing.T) {
	t.Parallel()

	h := newHarness()

	res, err := h.svc.Control(t.Context(), ControlPlayNextApproved)
	require.NoError(t, err)

	assert.Zero(t, res.UpdatedCount)
	assert.Nil(t, res.PlayedItemID)
}

func TestControl_ClearPending(t *testing.T) {
	t.Parallel()

	h := newHarness()
	seedActive(h, 1, domain.StatusPending, 1)
	seedActive(h, 2, domain.StatusApproved, 2)
	seedActive(h, 3, domain.StatusPending, 3)

	res, err := h.svc.Control(t.Context(), ControlClearPending)
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.UpdatedCount)
	assert.Equal(t, map[int64]int{2: 1}, h.store.activeOrders())
}

func TestControl_Errors(t *testing.T) {
	t.Parallel()

	h := newHarness()

	_, err := h.svc.Control(t.Context(), "  ")
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Control action is required", validationErr.Message)

	_, err = h.svc.Control(t.Context(), "shuffle")
	require.ErrorIs(t, err, domain.ErrUnsupportedAction)
}

func TestOrderStaysDenseAcrossOperations(t *testing.T) {
	t.Parallel()

	h := newHarness()
	for i := 1; i <= 6; i++ {
		_, err := h.svc.Submit(t.Context(), payload(fmt.Sprintf("track-%d", i), "Sam"), "1.1.1.1")
		require.NoError(t, err)
	}

	_, err := h.svc.AdminUpdate(t.Context(), 2, AdminPatch{
		Status: strPtr("rejected"), ModerationReason: strPtr("other"),
	})
	require.NoError(t, err)

	before := int64(1)
	require.NoError(t, h.svc.Reorder(t.Context(), 6, &before))

	_, err = h.svc.AdminUpdate(t.Context(), 2, AdminPatch{Status: strPtr("approved")})
	require.NoError(t, err)

	_, err = h.svc.Control(t.Context(), ControlRenumberActive)
	require.NoError(t, err)

	orders := h.store.activeOrders()
	require.Len(t, orders, 6)
	seen := make(map[int]bool)
	for _, order := range orders {
		assert.False(t, seen[order], "duplicate order %d", order)
		seen[order] = true
		assert.True(t, order >= 1 && order <= 6, "order %d out of range", order)
	}
	assert.Equal(t, 1, orders[6])
	assert.Equal(t, 6, orders[2])
}

func TestControl_RenumberActiveTwiceIsStable(t *testing.T) {
	t.Parallel()

	h := newHarness()
	seedActive(h, 1, domain.StatusApproved, 7)
	seedActive(h, 2, domain.StatusPending, 3)
	seedActive(h, 3, domain.StatusPending, 3)
	seedActive(h, 4, domain.StatusRejected, 1)
	h.store.seed(&domain.Entry{
		ID: 5, TrackID: "track-5", TrackName: "Song 5", Artists: []string{"Artist"},
		RequesterName: "Sam", RequesterRole: domain.RoleGuest, Status: domain.StatusPending,
	})

	_, err := h.svc.Control(t.Context(), ControlRenumberActive)
	require.NoError(t, err)
	first := h.store.activeOrders()

	_, err = h.svc.Control(t.Context(), ControlRenumberActive)
	require.NoError(t, err)
	second := h.store.activeOrders()

	assert.Equal(t, map[int64]int{2: 1, 3: 2, 1: 3, 5: 4}, first)
	assert.Equal(t, first, second)
}
