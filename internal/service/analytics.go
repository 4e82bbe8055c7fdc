package service

import (
	"cmp"
	"math"
	"slices"

	"github.com/jonesrussell/setlist/internal/domain"
)

const topLimit = 10

// Analytics is the vote-weighted summary of the whole queue.
type Analytics struct {
	Totals            Totals                `json:"totals"`
	StatusBreakdown   map[domain.Status]int `json:"statusBreakdown"`
	TopArtists        []ArtistVotes         `json:"topRequestedArtists"`
	TopTracks         []TrackVotes          `json:"topRequestedTracks"`
	DanceMoments      []MomentVotes         `json:"danceMoments"`
	VibeTags          []TagVotes            `json:"vibeTags"`
	ModerationReasons []ReasonCount         `json:"moderationReasons"`
}

// Totals are the headline numbers. Rates and averages have one decimal.
type Totals struct {
	Requests             int     `json:"requests"`
	Votes                int     `json:"votes"`
	ApprovedVotes        int     `json:"approvedVotes"`
	ApprovalRate         float64 `json:"approvalRate"`
	AveragePriorityScore float64 `json:"averagePriorityScore"`
	AverageEnergyLevel   float64 `json:"averageEnergyLevel"`
	PendingHighPriority  int     `json:"pendingHighPriority"`
}

// ArtistVotes counts votes per artist.
type ArtistVotes struct {
	Artist string `json:"artist"`
	Votes  int    `json:"votes"`
}

// TrackVotes counts votes per track; Status is the latest entry's status.
type TrackVotes struct {
	TrackID   string        `json:"trackId"`
	TrackName string        `json:"trackName"`
	Votes     int           `json:"votes"`
	Status    domain.Status `json:"status"`
}

// MomentVotes counts votes per dance moment.
type MomentVotes struct {
	DanceMoment domain.DanceMoment `json:"danceMoment"`
	Votes       int                `json:"votes"`
}

// TagVotes counts votes per vibe tag.
type TagVotes struct {
	Tag   string `json:"tag"`
	Votes int    `json:"votes"`
}

// ReasonCount counts votes on rejected entries per moderation reason.
type ReasonCount struct {
	Reason domain.ModerationReason `json:"reason"`
	Count  int                     `json:"count"`
}

// tally sums votes per key and remembers first-seen order for stable ties.
type tally[K comparable] struct {
	order []K
	votes map[K]int
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{votes: make(map[K]int)}
}

func (t *tally[K]) add(key K, votes int) {
	if _, seen := t.votes[key]; !seen {
		t.order = append(t.order, key)
	}
	t.votes[key] += votes
}

// sorted returns the keys by votes descending, ties in first-seen order.
func (t *tally[K]) sorted() []K {
	keys := slices.Clone(t.order)
	slices.SortStableFunc(keys, func(a, b K) int {
		return cmp.Compare(t.votes[b], t.votes[a])
	})
	return keys
}

// BuildAnalytics computes the analytics over entries in id order.
func BuildAnalytics(entries []*domain.Entry) *Analytics {
	a := &Analytics{
		StatusBreakdown: map[domain.Status]int{
			domain.StatusPending:  0,
			domain.StatusApproved: 0,
			domain.StatusRejected: 0,
		},
	}

	artists := newTally[string]()
	moments := newTally[domain.DanceMoment]()
	vibes := newTally[string]()
	reasons := newTally[domain.ModerationReason]()
	tracks := newTally[string]()
	trackInfo := make(map[string]TrackVotes)

	var prioritySum, energySum int
	for _, e := range entries {
		votes := max(1, e.VoteCount)

		a.Totals.Votes += votes
		a.StatusBreakdown[e.Status] += votes
		prioritySum += e.PriorityScore * votes
		energySum += e.EnergyLevel * votes

		if e.Status == domain.StatusApproved {
			a.Totals.ApprovedVotes += votes
		}
		if e.Status == domain.StatusPending && e.Tier() == domain.TierHigh {
			a.Totals.PendingHighPriority += votes
		}

		for _, artist := range e.Artists {
			artists.add(artist, votes)
		}
		moments.add(e.DanceMoment, votes)
		for _, tag := range e.VibeTags {
			vibes.add(tag, votes)
		}

		key := e.TrackID
		if key == "" {
			key = e.TrackName
		}
		tracks.add(key, votes)
		trackInfo[key] = TrackVotes{TrackID: e.TrackID, TrackName: e.TrackName, Status: e.Status}

		if e.Status == domain.StatusRejected && e.ModerationReason != domain.ReasonNone {
			reasons.add(e.ModerationReason, votes)
		}
	}

	a.Totals.Requests = len(entries)
	if a.Totals.Votes > 0 {
		total := float64(a.Totals.Votes)
		a.Totals.ApprovalRate = oneDecimal(float64(a.Totals.ApprovedVotes) / total * 100)
		a.Totals.AveragePriorityScore = oneDecimal(float64(prioritySum) / total)
		a.Totals.AverageEnergyLevel = oneDecimal(float64(energySum) / total)
	}

	a.TopArtists = make([]ArtistVotes, 0, topLimit)
	for _, artist := range head(artists.sorted(), topLimit) {
		a.TopArtists = append(a.TopArtists, ArtistVotes{Artist: artist, Votes: artists.votes[artist]})
	}

	a.TopTracks = make([]TrackVotes, 0, topLimit)
	for _, key := range head(tracks.sorted(), topLimit) {
		info := trackInfo[key]
		info.Votes = tracks.votes[key]
		a.TopTracks = append(a.TopTracks, info)
	}

	a.DanceMoments = make([]MomentVotes, 0, len(moments.order))
	for _, m := range moments.sorted() {
		a.DanceMoments = append(a.DanceMoments, MomentVotes{DanceMoment: m, Votes: moments.votes[m]})
	}

	a.VibeTags = make([]TagVotes, 0, len(vibes.order))
	for _, tag := range vibes.sorted() {
		a.VibeTags = append(a.VibeTags, TagVotes{Tag: tag, Votes: vibes.votes[tag]})
	}

	a.ModerationReasons = make([]ReasonCount, 0, len(reasons.order))
	for _, r := range reasons.sorted() {
		a.ModerationReasons = append(a.ModerationReasons, ReasonCount{Reason: r, Count: reasons.votes[r]})
	}

	return a
}

func oneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
