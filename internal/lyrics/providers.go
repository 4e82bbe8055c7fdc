package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	infraerrors "github.com/jonesrussell/setlist/infrastructure/errors"
)

// Provider names.
const (
	ProviderLyricsOVH = "lyrics.ovh"
	ProviderLRCLib    = "lrclib"
)

// Default provider endpoints.
const (
	DefaultLyricsOVHBaseURL = "https://api.lyrics.ovh/v1"
	DefaultLRCLibBaseURL    = "https://lrclib.net/api/get"
)

// Provider fetches lyrics text. A miss is "" with a nil error.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, artist, title string) (string, error)
}

// LyricsOVH queries api.lyrics.ovh.
type LyricsOVH struct {
	baseURL string
	client  *http.Client
}

// NewLyricsOVH creates a LyricsOVH provider.
func NewLyricsOVH(baseURL string, client *http.Client) *LyricsOVH {
	if baseURL == "" {
		baseURL = DefaultLyricsOVHBaseURL
	}
	return &LyricsOVH{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *LyricsOVH) Name() string { return ProviderLyricsOVH }

func (p *LyricsOVH) Lookup(ctx context.Context, artist, title string) (string, error) {
	artist, title = NormalizeArtist(artist), NormalizeTitle(title)
	if artist == "" || title == "" {
		return "", nil
	}

	endpoint := fmt.Sprintf("%s/%s/%s", p.baseURL, url.PathEscape(artist), url.PathEscape(title))

	var body struct {
		Lyrics string `json:"lyrics"`
	}
	if err := getJSON(ctx, p.client, endpoint, &body); err != nil {
		return "", err
	}
	return body.Lyrics, nil
}

// LRCLib queries lrclib.net.
type LRCLib struct {
	baseURL string
	client  *http.Client
}

// NewLRCLib creates an LRCLib provider.
func NewLRCLib(baseURL string, client *http.Client) *LRCLib {
	if baseURL == "" {
		baseURL = DefaultLRCLibBaseURL
	}
	return &LRCLib{baseURL: baseURL, client: client}
}

func (p *LRCLib) Name() string { return ProviderLRCLib }

func (p *LRCLib) Lookup(ctx context.Context, artist, title string) (string, error) {
	artist, title = NormalizeArtist(artist), NormalizeTitle(title)
	if artist == "" || title == "" {
		return "", nil
	}

	params := url.Values{}
	params.Set("artist_name", artist)
	params.Set("track_name", title)

	var body struct {
		PlainLyrics  string `json:"plainLyrics"`
		SyncedLyrics string `json:"syncedLyrics"`
	}
	if err := getJSON(ctx, p.client, p.baseURL+"?"+params.Encode(), &body); err != nil {
		return "", err
	}
	if body.PlainLyrics != "" {
		return body.PlainLyrics, nil
	}
	return body.SyncedLyrics, nil
}

// getJSON decodes a 2xx response into out. A 404 leaves out untouched and
// returns nil.
func getJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request lyrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if httpErr := infraerrors.ParseHTTPError(resp); httpErr != nil {
		return httpErr
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return fmt.Errorf("decode lyrics: %w", decodeErr)
	}
	return nil
}
