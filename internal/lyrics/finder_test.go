package lyrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/setlist/infrastructure/circuitbreaker"
	"github.com/jonesrussell/setlist/internal/lyrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name   string
	lookup func(artist, title string) (string, error)

	mu    sync.Mutex
	calls []string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Lookup(_ context.Context, artist, title string) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, artist+"|"+title)
	p.mu.Unlock()
	return p.lookup(artist, title)
}

type recordedLookup struct {
	provider string
	result   string
}

type fakeRecorder struct {
	mu      sync.Mutex
	lookups []recordedLookup
}

func (r *fakeRecorder) LyricsLookup(provider, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, recordedLookup{provider, result})
}

func TestFinder_FallsBackToSecondProvider(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "first", lookup: func(_, _ string) (string, error) { return "", nil }}
	secondary := &stubProvider{name: "second", lookup: func(_, _ string) (string, error) { return "la la la", nil }}
	rec := &fakeRecorder{}

	finder := lyrics.NewFinderWithProviders(lyrics.Config{}, rec, nil, primary, secondary)
	got := finder.Find(t.Context(), "Song", []string{"Artist, Other"})

	require.True(t, got.Found())
	assert.Equal(t, "la la la", got.Text)
	assert.Equal(t, "second", got.Provider)
	assert.Equal(t, []string{"Artist|Song"}, primary.calls)
	assert.Equal(t, []recordedLookup{{"first", lyrics.ResultMiss}, {"second", lyrics.ResultFound}}, rec.lookups)
}

func TestFinder_TriesNormalizedTitleSecond(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{name: "only", lookup: func(_, title string) (string, error) {
		if title == "Song" {
			return "words", nil
		}
		return "", nil
	}}

	finder := lyrics.NewFinderWithProviders(lyrics.Config{}, nil, nil, provider)
	got := finder.Find(t.Context(), "Song (Live)", []string{"", "Artist"})

	assert.Equal(t, "words", got.Text)
	assert.Equal(t, []string{"Artist|Song (Live)", "Artist|Song"}, provider.calls)
}

func TestFinder_ErrorsAreMisses(t *testing.T) {
	t.Parallel()

	failing := &stubProvider{name: "down", lookup: func(_, _ string) (string, error) {
		return "", errors.New("connection refused")
	}}

	finder := lyrics.NewFinderWithProviders(lyrics.Config{}, nil, nil, failing)
	got := finder.Find(t.Context(), "Song", []string{"Artist"})

	assert.False(t, got.Found())
}

func TestFinder_BudgetCoversEveryCandidate(t *testing.T) {
	t.Parallel()

	a := &stubProvider{name: "a", lookup: func(_, _ string) (string, error) { return "", nil }}
	b := &stubProvider{name: "b", lookup: func(_, _ string) (string, error) { return "", nil }}

	finder := lyrics.NewFinderWithProviders(lyrics.Config{Timeout: time.Second}, nil, nil, a, b)

	// two title candidates for each of two providers
	assert.Equal(t, 4*time.Second, finder.Budget())
}

func TestFinder_OpenCircuitSkipsProvider(t *testing.T) {
	t.Parallel()

	failing := &stubProvider{name: "down", lookup: func(_, _ string) (string, error) {
		return "", errors.New("connection refused")
	}}
	rec := &fakeRecorder{}

	cfg := lyrics.Config{Breaker: circuitbreaker.Config{FailureThreshold: 1, Timeout: time.Hour}}
	finder := lyrics.NewFinderWithProviders(cfg, rec, nil, failing)

	finder.Find(t.Context(), "Song", []string{"Artist"})
	finder.Find(t.Context(), "Other", []string{"Artist"})

	assert.Len(t, failing.calls, 1)
	require.Len(t, rec.lookups, 2)
	assert.Equal(t, lyrics.ResultSkipped, rec.lookups[1].result)
}

func TestFinder_NoArtistSkipsLookup(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{name: "only", lookup: func(_, _ string) (string, error) { return "x", nil }}

	finder := lyrics.NewFinderWithProviders(lyrics.Config{}, nil, nil, provider)
	got := finder.Find(t.Context(), "Song", []string{" "})

	assert.False(t, got.Found())
	assert.Empty(t, provider.calls)
}

func TestLyricsOVH_Lookup(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/Daft Punk/One More Time":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"lyrics":"one more time"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := lyrics.NewLyricsOVH(srv.URL+"/v1/", srv.Client())

	text, err := p.Lookup(t.Context(), "Daft Punk", "One More Time (Radio Edit)")
	require.NoError(t, err)
	assert.Equal(t, "one more time", text)

	text, err = p.Lookup(t.Context(), "Daft Punk", "Unknown")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestLRCLib_LookupPrefersPlainLyrics(t *testing.T) {
	t.Parallel()

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"plainLyrics":"plain","syncedLyrics":"[00:01] synced"}`))
	}))
	defer srv.Close()

	p := lyrics.NewLRCLib(srv.URL, srv.Client())

	text, err := p.Lookup(t.Context(), "Queen & David Bowie", "Under Pressure")
	require.NoError(t, err)
	assert.Equal(t, "plain", text)
	assert.Equal(t, "artist_name=Queen&track_name=Under+Pressure", gotQuery)
}

func TestLRCLib_ServerErrorIsReturned(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := lyrics.NewLRCLib(srv.URL, srv.Client())
	_, err := p.Lookup(t.Context(), "Queen", "Under Pressure")
	require.Error(t, err)
}
