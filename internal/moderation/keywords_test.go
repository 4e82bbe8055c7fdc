package moderation_test

import (
	"sync"
	"testing"

	"github.com/jonesrussell/setlist/internal/domain"
	"github.com/jonesrussell/setlist/internal/moderation"
	"github.com/stretchr/testify/assert"
)

func TestBaseScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		track      string
		artists    []string
		confidence domain.ContentConfidence
		want       int
	}{
		{"clean", "Happy", []string{"Pharrell Williams"}, domain.ConfidenceClean, 92},
		{"unknown", "Happy", []string{"Pharrell Williams"}, domain.ConfidenceUnknown, 62},
		{"explicit", "Happy", []string{"Pharrell Williams"}, domain.ConfidenceExplicit, 8},
		{"two terms", "Dirty Gun", []string{"Someone"}, domain.ConfidenceUnknown, 38},
		{"term in artist", "Song", []string{"Parental Advisory Band"}, domain.ConfidenceClean, 80},
		{"floor", "Explicit", nil, domain.ConfidenceExplicit, 0},
		{"repeated term costs once", "Gun Gun Gun", []string{"Someone"}, domain.ConfidenceUnknown, 50},
		{"overlapping terms", "Sexy Drugs", []string{"Someone"}, domain.ConfidenceUnknown, 38},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, moderation.BaseScore(tt.track, tt.artists, tt.confidence))
		})
	}
}

func TestBaseScore_KeywordNeverRaisesScore(t *testing.T) {
	t.Parallel()

	for _, c := range domain.Confidences {
		plain := moderation.BaseScore("Summer Nights", []string{"Band"}, c)
		tagged := moderation.BaseScore("Summer Nights (Uncensored)", []string{"Band"}, c)
		assert.LessOrEqual(t, tagged, plain, c)
	}
}

func TestCountKeywordHits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		terms []string
		want  int
	}{
		{"word boundary", "shotgun wedding", []string{"gun"}, 0},
		{"separated words", "gun, gun", []string{"gun"}, 2},
		{"case folded", "Whiskey and BEER", []string{"whiskey", "beer"}, 2},
		{"phrase substring", "hook up, hook up", []string{"hook up"}, 2},
		{"digits are word characters", "gun9 9gun", []string{"gun"}, 0},
		{"empty text", "   ", []string{"gun"}, 0},
		{"shared boundary counts once", "gun gun", []string{"gun"}, 1},
		{"prefix and whole word", "sexy sex", []string{"sex", "sexy"}, 2},
		{"no terms", "gun", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, moderation.CountKeywordHits(tt.text, tt.terms))
		})
	}
}

func TestContainsProfanity(t *testing.T) {
	t.Parallel()

	assert.True(t, moderation.ContainsProfanity("oh SHIT here we go"))
	assert.False(t, moderation.ContainsProfanity("shitake mushrooms"))
	assert.False(t, moderation.ContainsProfanity("sunny day"))
}

func TestContainsProfanity_ConcurrentCallers(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Go(func() {
			if i%2 == 0 {
				assert.True(t, moderation.ContainsProfanity("what the fuck"))
				return
			}
			assert.False(t, moderation.ContainsProfanity("what a day"))
		})
	}
	wg.Wait()
}
