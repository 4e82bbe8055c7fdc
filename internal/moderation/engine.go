// Package moderation decides whether a requested track is approved, held for
// review or rejected. The decision combines a keyword score over the title
// and artists with an optional lyrics risk assessment.
package moderation

import (
	"context"
	"time"

	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/domain"
)

const riskWeight = 0.65

// Decision is the outcome of moderating one track.
type Decision struct {
	Status     domain.Status
	Reason     domain.ModerationReason
	ReviewNote string
	BaseScore  int
	Score      int
	Lyrics     LyricsAnalysis
}

// Config controls the lyrics stage.
type Config struct {
	LyricsEnabled bool
}

// Engine runs the moderation pipeline. The lyrics finder and classifier
// are optional.
type Engine struct {
	cfg        Config
	lyrics     LyricsFinder
	classifier Classifier
	logger     infralogger.Logger
}

// NewEngine creates an Engine. A nil finder disables the lyrics stage.
func NewEngine(cfg Config, finder LyricsFinder, cls Classifier, log infralogger.Logger) *Engine {
	if log == nil {
		log = infralogger.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		lyrics:     finder,
		classifier: cls,
		logger:     log,
	}
}

// Decide moderates a track. External lookups that fail or time out only
// weaken the signal; Decide always returns a decision.
func (e *Engine) Decide(
	ctx context.Context,
	trackName string,
	artists []string,
	confidence domain.ContentConfidence,
) Decision {
	base := BaseScore(trackName, artists, confidence)
	analysis := e.analyze(ctx, trackName, artists)

	combined := domain.Clamp(base-domain.RoundHalfUp(float64(analysis.RiskScore)*riskWeight), 0, 100)

	status, fallbackNote := decideStatus(signals{
		confidence: confidence,
		lyrics:     analysis,
		combined:   combined,
	})

	d := Decision{
		Status:     status,
		Reason:     domain.ReasonNone,
		ReviewNote: reviewNote(base, combined, analysis, fallbackNote),
		BaseScore:  base,
		Score:      combined,
		Lyrics:     analysis,
	}

	if status == domain.StatusRejected {
		reason, rule := rejectionReason(analysis, confidence)
		d.Reason = reason
		e.logger.Debug("Moderation rejected track",
			infralogger.String("track", trackName),
			infralogger.String("reason", string(reason)),
			infralogger.String("rule", rule),
			infralogger.Int("score", combined),
		)
	}

	return d
}

func (e *Engine) analyze(ctx context.Context, trackName string, artists []string) LyricsAnalysis {
	if !e.cfg.LyricsEnabled || e.lyrics == nil {
		return noLyrics()
	}

	start := time.Now()
	found := e.lyrics.Find(ctx, trackName, artists)
	if !found.Found() {
		e.logger.Debug("No lyrics found for track",
			infralogger.String("track", trackName),
			infralogger.Duration("duration", time.Since(start)),
		)
		return noLyrics()
	}

	analysis := AnalyzeLyrics(ctx, found.Text, found.Provider, e.classifier)
	if analysis.Classifier.Failed {
		e.logger.Warn("Content classifier unavailable, using local signals only",
			infralogger.String("track", trackName),
		)
	}

	return analysis
}
