// Package domain holds the queue entry model, its closed vocabularies and
// the priority scoring rules shared by intake, merging and admin edits.
package domain

import "time"

// Energy bounds.
const (
	MinEnergyLevel     = 1
	MaxEnergyLevel     = 5
	DefaultEnergyLevel = 3
)

// Requester is one person who asked for a track. Stored as JSON.
type Requester struct {
	Name              string    `json:"name"`
	Role              Role      `json:"role"`
	CustomMessage     string    `json:"customMessage"`
	DedicationMessage string    `json:"dedicationMessage"`
	SubmittedAt       time.Time `json:"submittedAt"`
}

// Entry is one track in the request queue.
type Entry struct {
	ID         int64
	TrackID    string
	TrackName  string
	Artists    []string
	AlbumName  string
	AlbumImage string
	SpotifyURL string

	// RequesterName and CustomMessage belong to the first requester.
	// RequesterRole is the highest role among all requesters.
	RequesterName     string
	RequesterRole     Role
	Requesters        []Requester
	CustomMessage     string
	DedicationMessage string

	EventDate         *string
	Explicit          *bool
	ContentConfidence ContentConfidence
	DanceMoment       DanceMoment
	EnergyLevel       int
	VibeTags          []string

	VoteCount        int
	PriorityScore    int
	Status           Status
	ModerationReason ModerationReason
	ReviewNote       string
	DJNotes          string
	SetOrder         *int

	SubmittedAt time.Time
	UpdatedAt   *time.Time
}

// RequesterRoles returns every requester's role, or the role of record when
// the requester list is empty.
func (e *Entry) RequesterRoles() []Role {
	if len(e.Requesters) == 0 {
		return []Role{e.RequesterRole}
	}
	roles := make([]Role, len(e.Requesters))
	for i, r := range e.Requesters {
		roles[i] = r.Role
	}
	return roles
}

// PriorityInputs collects the fields the priority score is derived from.
func (e *Entry) PriorityInputs() PriorityInputs {
	return PriorityInputs{
		VoteCount:  e.VoteCount,
		Roles:      e.RequesterRoles(),
		EventDate:  e.EventDate,
		Confidence: e.ContentConfidence,
		Moment:     e.DanceMoment,
		Energy:     e.EnergyLevel,
	}
}

// Tier returns the priority bucket of the current score.
func (e *Entry) Tier() Tier {
	return TierFor(e.PriorityScore)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
