// Package classifier submits lyrics to a hosted moderation endpoint and
// merges the per-category flags it returns.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/jonesrussell/setlist/infrastructure/circuitbreaker"
	infraerrors "github.com/jonesrussell/setlist/infrastructure/errors"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/domain"
)

// Defaults.
const (
	DefaultURL     = "https://api.openai.com/v1/moderations"
	DefaultModel   = "omni-moderation-latest"
	DefaultTimeout = 3200 * time.Millisecond

	chunkSize      = 1200
	maxChunks      = 8
	submitChunks   = 2
	maxInputLen    = 30000
	maxCategoryLen = 64
)

// Request outcomes reported to the Recorder.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Result is the merged verdict over every submitted chunk.
type Result struct {
	// Available is false when no API key is configured.
	Available bool
	// Failed is true when no chunk got a usable response.
	Failed  bool
	Flagged bool
	// Categories are the raised category names, sorted.
	Categories []string
}

// HasCategory reports whether prefix or any "prefix/..." subcategory was raised.
func (r Result) HasCategory(prefix string) bool {
	prefix = strings.ToLower(prefix)
	return slices.ContainsFunc(r.Categories, func(c string) bool {
		c = strings.ToLower(c)
		return c == prefix || strings.HasPrefix(c, prefix+"/")
	})
}

// Recorder observes classifier calls.
type Recorder interface {
	ClassifierRequest(result string, d time.Duration)
}

// Config configures a Client.
type Config struct {
	APIKey  string
	URL     string
	Model   string
	Timeout time.Duration
	Breaker circuitbreaker.Config
}

// Client calls the moderation endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	recorder   Recorder
	logger     infralogger.Logger
}

// New creates a Client. Without an API key Classify reports the classifier
// as unavailable.
func New(cfg Config, httpClient *http.Client, recorder Recorder, log infralogger.Logger) *Client {
	if log == nil {
		log = infralogger.NewNop()
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.APIKey = domain.Sanitize(cfg.APIKey, 300)

	bcfg := cfg.Breaker
	bcfg.IsFailure = func(err error) bool { return err != nil && !errors.Is(err, context.Canceled) }
	bcfg.OnStateChange = func(from, to circuitbreaker.State) {
		log.Warn("Classifier circuit changed state",
			infralogger.String("from", from.String()),
			infralogger.String("to", to.String()),
		)
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		breaker:    circuitbreaker.New(bcfg),
		recorder:   recorder,
		logger:     log,
	}
}

// Budget is the longest Classify can take with every chunk timing out.
func (c *Client) Budget() time.Duration {
	return submitChunks * c.cfg.Timeout
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.cfg.APIKey != ""
}

// Classify submits up to two chunks of text and OR-merges the verdicts.
// Errors never escape; a call with no usable response is marked Failed.
func (c *Client) Classify(ctx context.Context, text string) Result {
	if !c.Enabled() {
		return Result{}
	}

	chunks := SplitChunks(text, chunkSize)
	if len(chunks) > submitChunks {
		chunks = chunks[:submitChunks]
	}
	if len(chunks) == 0 {
		return Result{Available: true}
	}

	merged := map[string]bool{}
	flagged, anySuccess := false, false

	for _, chunk := range chunks {
		verdict, err := c.moderate(ctx, chunk)
		if err != nil {
			c.logger.Warn("Classifier request failed",
				infralogger.Int("chunk_len", len(chunk)),
				infralogger.Error(err),
			)
			continue
		}
		if verdict == nil {
			continue
		}

		anySuccess = true
		flagged = flagged || verdict.Flagged
		for name, raised := range verdict.Categories {
			if raised {
				merged[domain.Sanitize(name, maxCategoryLen)] = true
			}
		}
	}

	categories := make([]string, 0, len(merged))
	for name := range merged {
		if name != "" {
			categories = append(categories, name)
		}
	}
	slices.Sort(categories)

	return Result{
		Available:  true,
		Failed:     !anySuccess,
		Flagged:    flagged,
		Categories: categories,
	}
}

type moderationRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type moderationVerdict struct {
	Flagged    bool            `json:"flagged"`
	Categories map[string]bool `json:"categories"`
}

type moderationResponse struct {
	Results []moderationVerdict `json:"results"`
}

// moderate returns the first verdict of the response, or nil when the
// response carried none.
func (c *Client) moderate(ctx context.Context, chunk string) (*moderationVerdict, error) {
	start := time.Now()

	var verdict *moderationVerdict
	err := c.breaker.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		resp, callErr := c.post(callCtx, chunk)
		if callErr != nil {
			return callErr
		}
		if len(resp.Results) > 0 {
			verdict = &resp.Results[0]
		}
		return nil
	})

	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		c.record(ResultSkipped, time.Since(start))
	case err != nil:
		c.record(ResultError, time.Since(start))
	default:
		c.record(ResultOK, time.Since(start))
	}

	return verdict, err
}

func (c *Client) post(ctx context.Context, chunk string) (*moderationResponse, error) {
	body, err := json.Marshal(moderationRequest{Model: c.cfg.Model, Input: chunk})
	if err != nil {
		return nil, fmt.Errorf("marshal moderation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build moderation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moderation request: %w", err)
	}
	defer resp.Body.Close()

	if httpErr := infraerrors.ParseHTTPError(resp); httpErr != nil {
		return nil, httpErr
	}

	var out moderationResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil {
		return nil, fmt.Errorf("decode moderation response: %w", decodeErr)
	}
	return &out, nil
}

func (c *Client) record(result string, d time.Duration) {
	if c.recorder != nil {
		c.recorder.ClassifierRequest(result, d)
	}
}

// SplitChunks trims text and cuts it into at most eight runs of size runes.
func SplitChunks(text string, size int) []string {
	runes := []rune(domain.Sanitize(text, maxInputLen))
	chunks := make([]string, 0, min(maxChunks, (len(runes)+size-1)/size))
	for start := 0; start < len(runes) && len(chunks) < maxChunks; start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
