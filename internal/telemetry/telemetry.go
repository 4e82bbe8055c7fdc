// Package telemetry exports the request queue's Prometheus metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every setlist metric.
const Namespace = "setlist"

// Submission outcomes.
const (
	OutcomeCreated     = "created"
	OutcomeMerged      = "merged"
	OutcomeRateLimited = "rate_limited"
	OutcomeInvalid     = "invalid"
)

// External call targets.
const (
	targetLyrics     = "lyrics"
	targetClassifier = "classifier"
)

// Metrics holds the queue collectors. A nil *Metrics records nothing.
type Metrics struct {
	submissions      *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	lyricsLookups    *prometheus.CounterVec
	classifierCalls  *prometheus.CounterVec
	externalDuration *prometheus.HistogramVec
	renumbers        prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "submissions_total",
			Help:      "Song request submissions by outcome.",
		}, []string{"outcome"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "moderation_decisions_total",
			Help:      "Automatic moderation decisions by resulting status.",
		}, []string{"status"}),
		lyricsLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lyrics_lookups_total",
			Help:      "Lyrics provider lookups by provider and result.",
		}, []string{"provider", "result"}),
		classifierCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "classifier_requests_total",
			Help:      "Content classifier requests by result.",
		}, []string{"result"}),
		externalDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "external_call_duration_seconds",
			Help:      "Latency of lyrics and classifier calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3.5, 5},
		}, []string{"target"}),
		renumbers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "renumber_total",
			Help:      "Set order renumber passes.",
		}),
	}
}

// Submission counts one submission outcome.
func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// ModerationDecision counts one automatic decision.
func (m *Metrics) ModerationDecision(status string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(status).Inc()
}

// LyricsLookup records one provider lookup.
func (m *Metrics) LyricsLookup(provider, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.lyricsLookups.WithLabelValues(provider, result).Inc()
	m.externalDuration.WithLabelValues(targetLyrics).Observe(d.Seconds())
}

// ClassifierRequest records one classifier call.
func (m *Metrics) ClassifierRequest(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.classifierCalls.WithLabelValues(result).Inc()
	m.externalDuration.WithLabelValues(targetClassifier).Observe(d.Seconds())
}

// Renumbered counts one renumber pass.
func (m *Metrics) Renumbered() {
	if m == nil {
		return
	}
	m.renumbers.Inc()
}
