package telemetry_test

import (
	"testing"
	"time"

	"github.com/jonesrussell/setlist/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)

	m.Submission(telemetry.OutcomeCreated)
	m.Submission(telemetry.OutcomeCreated)
	m.Submission(telemetry.OutcomeRateLimited)
	m.ModerationDecision("approved")
	m.LyricsLookup("lrclib", "found", 120*time.Millisecond)
	m.ClassifierRequest("ok", 300*time.Millisecond)
	m.Renumbered()

	count, err := testutil.GatherAndCount(reg, "setlist_submissions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "setlist_external_call_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "setlist_renumber_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilIsNoOp(t *testing.T) {
	t.Parallel()

	var m *telemetry.Metrics

	assert.NotPanics(t, func() {
		m.Submission(telemetry.OutcomeMerged)
		m.ModerationDecision("pending")
		m.LyricsLookup("lyrics.ovh", "miss", time.Second)
		m.ClassifierRequest("error", time.Second)
		m.Renumbered()
	})
}
