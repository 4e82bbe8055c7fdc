package intake_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonesrussell/setlist/internal/domain"
	"github.com/jonesrussell/setlist/internal/intake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPayload() intake.Payload {
	return intake.Payload{
		TrackID:       "  4uLU6hMCjMI75M1A2tKUQC ",
		TrackName:     "Never Gonna Give You Up",
		Artists:       []string{"Rick Astley"},
		RequesterName: "Jordan",
	}
}

func TestNormalize_AppliesDefaults(t *testing.T) {
	t.Parallel()

	s, err := intake.Normalize(validPayload())
	require.NoError(t, err)

	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC", s.TrackID)
	assert.Equal(t, domain.RoleGuest, s.RequesterRole)
	assert.Equal(t, domain.ConfidenceUnknown, s.ContentConfidence)
	assert.Equal(t, domain.MomentAnytime, s.DanceMoment)
	assert.Equal(t, domain.DefaultEnergyLevel, s.EnergyLevel)
	assert.Nil(t, s.EventDate)
	assert.Empty(t, s.VibeTags)
}

func TestNormalize_MapsOptionalFields(t *testing.T) {
	t.Parallel()

	explicit := false
	energy := 4.6
	p := validPayload()
	p.RequesterRole = "Organizer"
	p.Explicit = &explicit
	p.DanceMoment = "PEAK_HOUR"
	p.EnergyLevel = &energy
	p.EventDate = "2026-06-20"
	p.VibeTags = []string{"pop", "Pop", "jazz", "edm"}
	p.DedicationMessage = strings.Repeat("x", 300)

	s, err := intake.Normalize(p)
	require.NoError(t, err)

	assert.Equal(t, domain.RoleOrganizer, s.RequesterRole)
	assert.Equal(t, domain.ConfidenceClean, s.ContentConfidence)
	assert.Equal(t, domain.MomentPeakHour, s.DanceMoment)
	assert.Equal(t, 5, s.EnergyLevel)
	require.NotNil(t, s.EventDate)
	assert.Equal(t, "2026-06-20", *s.EventDate)
	assert.Equal(t, []string{"pop", "edm"}, s.VibeTags)
	assert.Len(t, s.DedicationMessage, 140)
}

func TestNormalize_ArtistsTrimmedAndCapped(t *testing.T) {
	t.Parallel()

	p := validPayload()
	p.Artists = []string{" ", "A", "B", "C", "D", "E", "F", "G", "H", "I"}

	s, err := intake.Normalize(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F", "G", "H"}, s.Artists)
}

func TestNormalize_MissingRequiredFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*intake.Payload)
	}{
		{"track id", func(p *intake.Payload) { p.TrackID = "   " }},
		{"track name", func(p *intake.Payload) { p.TrackName = "" }},
		{"artists", func(p *intake.Payload) { p.Artists = []string{"", " "} }},
		{"requester", func(p *intake.Payload) { p.RequesterName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := validPayload()
			tt.mutate(&p)

			_, err := intake.Normalize(p)
			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, intake.MissingFieldsMessage, vErr.Message)
		})
	}
}

func TestSubmission_Requester(t *testing.T) {
	t.Parallel()

	s, err := intake.Normalize(validPayload())
	require.NoError(t, err)

	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	r := s.Requester(at)
	assert.Equal(t, "Jordan", r.Name)
	assert.Equal(t, domain.RoleGuest, r.Role)
	assert.Equal(t, at, r.SubmittedAt)
}

func TestPayload_UnmarshalJSON_LooseTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		fields       string
		wantExplicit *bool
		wantEnergy   int
	}{
		{name: "typed", fields: `"explicit":true,"energyLevel":2`, wantExplicit: boolPtr(true), wantEnergy: 2},
		{name: "numeric string energy", fields: `"energyLevel":"4"`, wantEnergy: 4},
		{name: "padded numeric string", fields: `"energyLevel":" 4.6 "`, wantEnergy: 5},
		{name: "empty string energy", fields: `"energyLevel":""`, wantEnergy: 1},
		{name: "boolean energy", fields: `"energyLevel":true`, wantEnergy: 1},
		{name: "word energy", fields: `"energyLevel":"loud"`, wantEnergy: domain.DefaultEnergyLevel},
		{name: "object energy", fields: `"energyLevel":{"v":4}`, wantEnergy: domain.DefaultEnergyLevel},
		{name: "null energy", fields: `"energyLevel":null`, wantEnergy: domain.DefaultEnergyLevel},
		{name: "string explicit", fields: `"explicit":"true"`, wantEnergy: domain.DefaultEnergyLevel},
		{name: "numeric explicit", fields: `"explicit":1`, wantEnergy: domain.DefaultEnergyLevel},
		{name: "null explicit", fields: `"explicit":null`, wantEnergy: domain.DefaultEnergyLevel},
		{name: "false explicit", fields: `"explicit":false`, wantExplicit: boolPtr(false), wantEnergy: domain.DefaultEnergyLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			body := `{"trackId":"trk-1","trackName":"Song","artists":["Band"],"requesterName":"Sam",` + tt.fields + `}`

			var p intake.Payload
			require.NoError(t, json.Unmarshal([]byte(body), &p))
			assert.Equal(t, "trk-1", p.TrackID)
			assert.Equal(t, []string{"Band"}, p.Artists)
			assert.Equal(t, tt.wantExplicit, p.Explicit)

			s, err := intake.Normalize(p)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEnergy, s.EnergyLevel)
		})
	}
}

func TestPayload_UnmarshalJSON_WrongShapeStillFails(t *testing.T) {
	t.Parallel()

	var p intake.Payload
	require.Error(t, json.Unmarshal([]byte(`{"trackId":`), &p))
	require.Error(t, json.Unmarshal([]byte(`{"artists":"Band"}`), &p))
}

func boolPtr(v bool) *bool { return &v }
