// Package lyrics looks up song lyrics from public providers, falling back
// from one provider to the next until one has the track.
package lyrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jonesrussell/setlist/infrastructure/circuitbreaker"
	infraerrors "github.com/jonesrussell/setlist/infrastructure/errors"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/domain"
)

const (
	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 3500 * time.Millisecond

	maxLyricsLen = 30000
)

// Lookup outcomes reported to the Recorder.
const (
	ResultFound   = "found"
	ResultMiss    = "miss"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Result is the lyrics of a track and the provider that had them.
type Result struct {
	Text     string
	Provider string
}

// Found reports whether any provider returned lyrics.
func (r Result) Found() bool { return r.Text != "" }

// Recorder observes provider lookups.
type Recorder interface {
	LyricsLookup(provider, result string, d time.Duration)
}

// Config configures a Finder.
type Config struct {
	Timeout          time.Duration
	LyricsOVHBaseURL string
	LRCLibBaseURL    string
	Breaker          circuitbreaker.Config
}

type guardedProvider struct {
	Provider
	breaker *circuitbreaker.Breaker
}

// Finder tries each provider for each title candidate in order.
type Finder struct {
	providers []guardedProvider
	timeout   time.Duration
	recorder  Recorder
	logger    infralogger.Logger
}

// NewFinder creates a Finder over lyrics.ovh then lrclib.
func NewFinder(cfg Config, client *http.Client, recorder Recorder, log infralogger.Logger) *Finder {
	return NewFinderWithProviders(cfg, recorder, log,
		NewLyricsOVH(cfg.LyricsOVHBaseURL, client),
		NewLRCLib(cfg.LRCLibBaseURL, client),
	)
}

// NewFinderWithProviders creates a Finder over the given providers. Each
// provider gets its own circuit breaker.
func NewFinderWithProviders(cfg Config, recorder Recorder, log infralogger.Logger, providers ...Provider) *Finder {
	if log == nil {
		log = infralogger.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	guarded := make([]guardedProvider, 0, len(providers))
	for _, p := range providers {
		bcfg := cfg.Breaker
		bcfg.IsFailure = isUpstreamFailure
		name := p.Name()
		bcfg.OnStateChange = func(from, to circuitbreaker.State) {
			log.Warn("Lyrics provider circuit changed state",
				infralogger.String("provider", name),
				infralogger.String("from", from.String()),
				infralogger.String("to", to.String()),
			)
		}
		guarded = append(guarded, guardedProvider{Provider: p, breaker: circuitbreaker.New(bcfg)})
	}

	return &Finder{
		providers: guarded,
		timeout:   cfg.Timeout,
		recorder:  recorder,
		logger:    log,
	}
}

// Find returns the first lyrics any provider has for the track. Provider
// errors are logged and treated as misses.
func (f *Finder) Find(ctx context.Context, trackName string, artists []string) Result {
	artist := primaryArtist(artists)
	if artist == "" {
		return Result{}
	}

	for _, title := range titleCandidates(trackName) {
		for _, p := range f.providers {
			if text := f.lookup(ctx, p, artist, title); text != "" {
				return Result{Text: text, Provider: p.Name()}
			}
		}
	}

	return Result{}
}

// Budget is the longest Find can take: every provider timing out on every
// title candidate.
func (f *Finder) Budget() time.Duration {
	return time.Duration(maxTitles*len(f.providers)) * f.timeout
}

func (f *Finder) lookup(ctx context.Context, p guardedProvider, artist, title string) string {
	start := time.Now()

	var text string
	err := p.breaker.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		found, lookupErr := p.Lookup(callCtx, artist, title)
		text = found
		return lookupErr
	})

	elapsed := time.Since(start)
	text = domain.Sanitize(text, maxLyricsLen)

	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		f.record(p.Name(), ResultSkipped, elapsed)
		return ""
	case err != nil:
		f.logger.Warn("Lyrics lookup failed",
			infralogger.String("provider", p.Name()),
			infralogger.String("artist", artist),
			infralogger.String("title", title),
			infralogger.Duration("duration", elapsed),
			infralogger.Error(err),
		)
		f.record(p.Name(), ResultError, elapsed)
		return ""
	case text == "":
		f.record(p.Name(), ResultMiss, elapsed)
		return ""
	default:
		f.record(p.Name(), ResultFound, elapsed)
		return text
	}
}

func (f *Finder) record(provider, result string, d time.Duration) {
	if f.recorder != nil {
		f.recorder.LyricsLookup(provider, result, d)
	}
}

// isUpstreamFailure ignores client errors other than throttling and the
// caller's own cancellation.
func isUpstreamFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	code := infraerrors.StatusCode(err)
	if code >= http.StatusBadRequest && code < http.StatusInternalServerError {
		return code == http.StatusTooManyRequests
	}
	return true
}
