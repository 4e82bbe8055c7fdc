// Package intake validates and normalizes raw song request submissions.
package intake

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/setlist/internal/domain"
)

// Field limits, in runes.
const (
	maxTrackIDLen       = 64
	maxTrackNameLen     = 200
	maxArtistLen        = 120
	maxArtists          = 8
	maxAlbumNameLen     = 200
	maxURLLen           = 400
	maxRequesterNameLen = 80
	maxCustomMessageLen = 500
	maxDedicationLen    = 140
)

// MissingFieldsMessage is returned when a required field is empty after trimming.
const MissingFieldsMessage = "Missing required fields"

// Payload is the raw submission body.
type Payload struct {
	TrackID           string   `json:"trackId"`
	TrackName         string   `json:"trackName"`
	Artists           []string `json:"artists"`
	AlbumName         string   `json:"albumName"`
	AlbumImage        string   `json:"albumImage"`
	SpotifyURL        string   `json:"spotifyUrl"`
	RequesterName     string   `json:"requesterName"`
	RequesterRole     string   `json:"requesterRole"`
	CustomMessage     string   `json:"customMessage"`
	DedicationMessage string   `json:"dedicationMessage"`
	EventDate         string   `json:"eventDate"`
	Explicit          *bool    `json:"explicit"`
	DanceMoment       string   `json:"danceMoment"`
	EnergyLevel       *float64 `json:"energyLevel"`
	VibeTags          []string `json:"vibeTags"`
}

// UnmarshalJSON decodes a submission leniently. energyLevel may be a number,
// a numeric string or a boolean; anything else decodes to NaN and takes the
// default energy. explicit is kept only when it is a JSON boolean.
func (p *Payload) UnmarshalJSON(data []byte) error {
	type plain Payload
	aux := struct {
		*plain

		Explicit    json.RawMessage `json:"explicit"`
		EnergyLevel json.RawMessage `json:"energyLevel"`
	}{plain: (*plain)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	p.Explicit = looseBool(aux.Explicit)
	p.EnergyLevel = looseNumber(aux.EnergyLevel)
	return nil
}

func looseBool(raw json.RawMessage) *bool {
	var b bool
	if isAbsent(raw) || json.Unmarshal(raw, &b) != nil {
		return nil
	}
	return &b
}

func looseNumber(raw json.RawMessage) *float64 {
	if isAbsent(raw) {
		return nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			n = 0
			return &n
		}
		if parsed, parseErr := strconv.ParseFloat(s, 64); parseErr == nil {
			return &parsed
		}
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			n = 1
		}
		return &n
	}

	n = math.NaN()
	return &n
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || strings.TrimSpace(string(raw)) == "null"
}

// Submission is a normalized payload. Every field is within its limits and
// every enum is a member of its allow-list.
type Submission struct {
	TrackID           string
	TrackName         string
	Artists           []string
	AlbumName         string
	AlbumImage        string
	SpotifyURL        string
	RequesterName     string
	RequesterRole     domain.Role
	CustomMessage     string
	DedicationMessage string
	EventDate         *string
	Explicit          *bool
	ContentConfidence domain.ContentConfidence
	DanceMoment       domain.DanceMoment
	EnergyLevel       int
	VibeTags          []string
}

// Normalize trims, truncates and defaults every field of p. It returns a
// *domain.ValidationError when trackId, trackName, artists or requesterName
// is missing.
func Normalize(p Payload) (Submission, error) {
	s := Submission{
		TrackID:           domain.Sanitize(p.TrackID, maxTrackIDLen),
		TrackName:         domain.Sanitize(p.TrackName, maxTrackNameLen),
		Artists:           normalizeArtists(p.Artists),
		AlbumName:         domain.Sanitize(p.AlbumName, maxAlbumNameLen),
		AlbumImage:        domain.Sanitize(p.AlbumImage, maxURLLen),
		SpotifyURL:        domain.Sanitize(p.SpotifyURL, maxURLLen),
		RequesterName:     domain.Sanitize(p.RequesterName, maxRequesterNameLen),
		RequesterRole:     domain.NormalizeRole(p.RequesterRole),
		CustomMessage:     domain.Sanitize(p.CustomMessage, maxCustomMessageLen),
		DedicationMessage: domain.Sanitize(p.DedicationMessage, maxDedicationLen),
		EventDate:         domain.NormalizeEventDate(p.EventDate),
		Explicit:          p.Explicit,
		ContentConfidence: domain.ConfidenceFromExplicit(p.Explicit),
		DanceMoment:       domain.NormalizeDanceMoment(p.DanceMoment),
		EnergyLevel:       domain.NormalizeEnergy(p.EnergyLevel),
		VibeTags:          domain.NormalizeVibeTags(p.VibeTags),
	}

	if s.TrackID == "" || s.TrackName == "" || len(s.Artists) == 0 || s.RequesterName == "" {
		return Submission{}, domain.NewValidationError("payload", MissingFieldsMessage)
	}

	return s, nil
}

// Requester builds the requester record for this submission.
func (s Submission) Requester(submittedAt time.Time) domain.Requester {
	return domain.Requester{
		Name:              s.RequesterName,
		Role:              s.RequesterRole,
		CustomMessage:     s.CustomMessage,
		DedicationMessage: s.DedicationMessage,
		SubmittedAt:       submittedAt,
	}
}

func normalizeArtists(raw []string) []string {
	artists := make([]string, 0, min(len(raw), maxArtists))
	for _, a := range raw {
		if name := domain.Sanitize(a, maxArtistLen); name != "" {
			artists = append(artists, name)
		}
		if len(artists) == maxArtists {
			break
		}
	}
	return artists
}
