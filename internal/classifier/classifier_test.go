package classifier_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonesrussell/setlist/internal/classifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunks(t *testing.T) {
	t.Parallel()

	assert.Empty(t, classifier.SplitChunks("   ", 10))

	chunks := classifier.SplitChunks("  abcdefghij klm  ", 5)
	assert.Equal(t, []string{"abcde", "fghij", " klm"}, chunks)

	chunks = classifier.SplitChunks(strings.Repeat("x", 100), 10)
	assert.Len(t, chunks, 8)
}

func TestResult_HasCategory(t *testing.T) {
	t.Parallel()

	r := classifier.Result{Categories: []string{"hate/threatening", "violence"}}
	assert.True(t, r.HasCategory("hate"))
	assert.True(t, r.HasCategory("violence"))
	assert.False(t, r.HasCategory("sexual"))
	assert.False(t, classifier.Result{Categories: []string{"hateful"}}.HasCategory("hate"))
}

func TestClassify_DisabledWithoutKey(t *testing.T) {
	t.Parallel()

	c := classifier.New(classifier.Config{}, http.DefaultClient, nil, nil)
	got := c.Classify(t.Context(), "some lyrics")

	assert.False(t, c.Enabled())
	assert.False(t, got.Available)
	assert.False(t, got.Failed)
}

func TestClient_Budget(t *testing.T) {
	t.Parallel()

	c := classifier.New(classifier.Config{Timeout: time.Second}, http.DefaultClient, nil, nil)
	assert.Equal(t, 2*time.Second, c.Budget())

	defaults := classifier.New(classifier.Config{}, http.DefaultClient, nil, nil)
	assert.Equal(t, 2*classifier.DefaultTimeout, defaults.Budget())
}

func TestClassify_MergesChunks(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, classifier.DefaultModel, req.Model)

		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"results":[{"flagged":false,"categories":{"violence":true,"sexual":false}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"flagged":true,"categories":{"hate/threatening":true,"violence":true}}]}`))
	}))
	defer srv.Close()

	c := classifier.New(classifier.Config{APIKey: "sk-test", URL: srv.URL}, srv.Client(), nil, nil)
	got := c.Classify(t.Context(), strings.Repeat("a", 5000))

	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, got.Available)
	assert.False(t, got.Failed)
	assert.True(t, got.Flagged)
	assert.Equal(t, []string{"hate/threatening", "violence"}, got.Categories)
}

func TestClassify_AllChunksFailing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	c := classifier.New(classifier.Config{APIKey: "sk-test", URL: srv.URL}, srv.Client(), nil, nil)
	got := c.Classify(t.Context(), "short lyrics")

	require.True(t, got.Available)
	assert.True(t, got.Failed)
	assert.False(t, got.Flagged)
	assert.Empty(t, got.Categories)
}

func TestClassify_EmptyTextIsAvailableAndClean(t *testing.T) {
	t.Parallel()

	c := classifier.New(classifier.Config{APIKey: "sk-test", URL: "http://127.0.0.1:1"}, http.DefaultClient, nil, nil)
	got := c.Classify(t.Context(), "  ")

	assert.True(t, got.Available)
	assert.False(t, got.Failed)
}
