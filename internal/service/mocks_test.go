//nolint:testpackage // Testing internal service requires same package access
package service

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	infraevents "github.com/jonesrussell/setlist/infrastructure/events"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/database"
	"github.com/jonesrussell/setlist/internal/domain"
	"github.com/jonesrussell/setlist/internal/lock"
	"github.com/jonesrussell/setlist/internal/moderation"
	"github.com/jonesrussell/setlist/internal/ratelimit"
)

type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...infralogger.Field)         {}
func (m *mockLogger) Info(_ string, _ ...infralogger.Field)          {}
func (m *mockLogger) Warn(_ string, _ ...infralogger.Field)          {}
func (m *mockLogger) Error(_ string, _ ...infralogger.Field)         {}
func (m *mockLogger) Fatal(_ string, _ ...infralogger.Field)         {}
func (m *mockLogger) With(_ ...infralogger.Field) infralogger.Logger { return m }
func (m *mockLogger) Sync() error                                    { return nil }

type mockLimiter struct {
	checkFunc func(ctx context.Context, identity string) (ratelimit.Decision, error)

	mu    sync.Mutex
	calls int
}

func (m *mockLimiter) CheckAndConsume(ctx context.Context, identity string) (ratelimit.Decision, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.checkFunc != nil {
		return m.checkFunc(ctx, identity)
	}
	return ratelimit.Decision{Allowed: true, RetryAfterSeconds: 600}, nil
}

type mockModerator struct {
	decideFunc func(trackName string, artists []string, confidence domain.ContentConfidence) moderation.Decision

	mu    sync.Mutex
	calls int
}

func (m *mockModerator) Decide(
	_ context.Context,
	trackName string,
	artists []string,
	confidence domain.ContentConfidence,
) moderation.Decision {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.decideFunc != nil {
		return m.decideFunc(trackName, artists, confidence)
	}
	return moderation.Decision{Status: domain.StatusPending, ReviewNote: "held"}
}

type mockRecorder struct {
	mu          sync.Mutex
	submissions []string
	decisions   []string
	renumbers   int
}

func (m *mockRecorder) Submission(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, outcome)
}

func (m *mockRecorder) ModerationDecision(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, status)
}

func (m *mockRecorder) Renumbered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renumbers++
}

type mockPublisher struct {
	mu     sync.Mutex
	events []infraevents.QueueEvent
}

func (m *mockPublisher) PublishAsync(event infraevents.QueueEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockPublisher) types() []infraevents.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]infraevents.EventType, len(m.events))
	for i, e := range m.events {
		out[i] = e.EventType
	}
	return out
}

// memoryStore keeps entries in memory with the same ordering rules as the
// Postgres repository.
type memoryStore struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]*domain.Entry

	approvedLimit int
	bulkUpdates   []database.BulkUpdate
}

func newMemoryStore() *memoryStore {
	return &memoryStore{nextID: 1, entries: make(map[int64]*domain.Entry)}
}

// seed stores e as-is, without renumbering.
func (m *memoryStore) seed(e *domain.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cloneEntry(e)
	m.entries[c.ID] = c
	m.nextID = max(m.nextID, c.ID+1)
}

func cloneEntry(e *domain.Entry) *domain.Entry {
	c := *e
	c.Artists = slices.Clone(e.Artists)
	c.Requesters = slices.Clone(e.Requesters)
	c.VibeTags = slices.Clone(e.VibeTags)
	if e.SetOrder != nil {
		c.SetOrder = domain.IntPtr(*e.SetOrder)
	}
	return &c
}

func (m *memoryStore) activeIDs() []int64 {
	var active []*domain.Entry
	for _, e := range m.entries {
		if e.Status.Active() {
			active = append(active, e)
		}
	}
	slices.SortFunc(active, func(a, b *domain.Entry) int {
		switch {
		case a.SetOrder == nil && b.SetOrder != nil:
			return 1
		case a.SetOrder != nil && b.SetOrder == nil:
			return -1
		case a.SetOrder != nil && *a.SetOrder != *b.SetOrder:
			return cmp.Compare(*a.SetOrder, *b.SetOrder)
		}
		return cmp.Compare(a.ID, b.ID)
	})
	ids := make([]int64, len(active))
	for i, e := range active {
		ids[i] = e.ID
	}
	return ids
}

func (m *memoryStore) renumber() {
	for _, e := range m.entries {
		if !e.Status.Active() {
			e.SetOrder = nil
		}
	}
	for i, id := range m.activeIDs() {
		m.entries[id].SetOrder = domain.IntPtr(i + 1)
	}
}

func (m *memoryStore) resolveOrder(e *domain.Entry) {
	if !e.Status.Active() {
		e.SetOrder = nil
		return
	}
	if e.SetOrder != nil {
		return
	}
	top := 0
	for _, other := range m.entries {
		if other.Status.Active() && other.SetOrder != nil {
			top = max(top, *other.SetOrder)
		}
	}
	e.SetOrder = domain.IntPtr(top + 1)
}

func (m *memoryStore) GetByID(_ context.Context, id int64) (*domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneEntry(e), nil
}

func (m *memoryStore) GetActiveByTrack(_ context.Context, trackID string) (*domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *domain.Entry
	for _, e := range m.entries {
		if e.TrackID == trackID && e.Status.Active() && (found == nil || e.ID > found.ID) {
			found = e
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return cloneEntry(found), nil
}

func (m *memoryStore) Create(_ context.Context, e *domain.Entry) (*domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cloneEntry(e)
	for _, other := range m.entries {
		if other.TrackID == c.TrackID && other.Status.Active() && c.Status.Active() {
			return nil, domain.ErrConflictingState
		}
	}
	m.resolveOrder(c)
	c.ID = m.nextID
	m.nextID++
	m.entries[c.ID] = c
	m.renumber()
	return cloneEntry(c), nil
}

func (m *memoryStore) Save(_ context.Context, e *domain.Entry) (*domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		return nil, domain.ErrNotFound
	}
	c := cloneEntry(e)
	m.resolveOrder(c)
	m.entries[c.ID] = c
	m.renumber()
	return cloneEntry(c), nil
}

func (m *memoryStore) Reorder(_ context.Context, plan func(active []int64) ([]int64, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ordered, err := plan(m.activeIDs())
	if err != nil {
		return err
	}
	for i, id := range ordered {
		m.entries[id].SetOrder = domain.IntPtr(i + 1)
	}
	return nil
}

func (m *memoryStore) ApplyBulkUpdate(_ context.Context, u database.BulkUpdate) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bulkUpdates = append(m.bulkUpdates, u)

	var picked []*domain.Entry
	for _, e := range m.entries {
		if e.Status == domain.StatusPending && e.ContentConfidence == u.Confidence && e.PriorityScore >= u.MinPriority {
			picked = append(picked, e)
		}
	}
	slices.SortFunc(picked, func(a, b *domain.Entry) int {
		return cmp.Or(
			cmp.Compare(b.PriorityScore, a.PriorityScore),
			cmp.Compare(b.VoteCount, a.VoteCount),
			cmp.Compare(b.ID, a.ID),
		)
	})
	picked = head(picked, u.Limit)

	ids := make([]int64, 0, len(picked))
	for _, e := range picked {
		e.Status = u.Status
		e.ModerationReason = u.Reason
		e.ReviewNote = u.ReviewNote
		ids = append(ids, e.ID)
	}
	m.renumber()
	return ids, nil
}

func (m *memoryStore) DeleteNextApproved(_ context.Context) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.activeIDs() {
		if m.entries[id].Status == domain.StatusApproved {
			delete(m.entries, id)
			m.renumber()
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (m *memoryStore) DeleteByStatus(_ context.Context, statuses ...domain.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, e := range m.entries {
		if len(statuses) == 0 || slices.Contains(statuses, e.Status) {
			delete(m.entries, id)
			deleted++
		}
	}
	m.renumber()
	return deleted, nil
}

func (m *memoryStore) RenumberActive(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renumber()
	return nil
}

func (m *memoryStore) List(_ context.Context, f database.EntryFilter) ([]*domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Entry
	for _, id := range m.activeIDs() {
		e := m.entries[id]
		if (f.Status == "" || e.Status == f.Status) &&
			(f.Query == "" || strings.Contains(strings.ToLower(e.TrackName), strings.ToLower(f.Query))) {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

func (m *memoryStore) ListApproved(_ context.Context, limit int) ([]*domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvedLimit = limit
	var out []*domain.Entry
	for _, id := range m.activeIDs() {
		if e := m.entries[id]; e.Status == domain.StatusApproved {
			out = append(out, cloneEntry(e))
		}
	}
	return head(out, limit), nil
}

func (m *memoryStore) ListAll(_ context.Context) ([]*domain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, cloneEntry(e))
	}
	slices.SortFunc(out, func(a, b *domain.Entry) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// activeOrders returns id -> set order for every active entry.
func (m *memoryStore) activeOrders() map[int64]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]int)
	for id, e := range m.entries {
		if e.Status.Active() && e.SetOrder != nil {
			out[id] = *e.SetOrder
		}
	}
	return out
}

type testHarness struct {
	svc       *QueueService
	store     *memoryStore
	limiter   *mockLimiter
	moderator *mockModerator
	recorder  *mockRecorder
	events    *mockPublisher
}

func newHarness() *testHarness {
	return newHarnessWithLocker(lock.NewLocal())
}

func newHarnessWithLocker(locker lock.Locker) *testHarness {
	h := &testHarness{
		store:     newMemoryStore(),
		limiter:   &mockLimiter{},
		moderator: &mockModerator{},
		recorder:  &mockRecorder{},
		events:    &mockPublisher{},
	}
	h.svc = NewQueueService(Deps{
		Store:     h.store,
		Limiter:   h.limiter,
		Moderator: h.moderator,
		Locker:    locker,
		Events:    h.events,
		Metrics:   h.recorder,
		Logger:    &mockLogger{},
	})
	return h
}
