// Package fetcher downloads individual tiles with bounded retries and
// rate-limit backoff, recording confirmed-absent tiles in the negative
// cache.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/maptile"

	"github.com/mapfeed/tilewalk/internal/cache"
	"github.com/mapfeed/tilewalk/internal/model"
	"github.com/mapfeed/tilewalk/internal/storage"
	"github.com/mapfeed/tilewalk/internal/tiles"
)

// Options configures the fetch policy. The retry budgets and backoffs
// are fixed in production and only overridden by tests.
type Options struct {
	// URLTemplate is the tile endpoint with {x} and {y} placeholders.
	// The upstream serves a single zoom level, so z is not part of it.
	URLTemplate string

	// UserAgent identifies this client to the tile service.
	UserAgent string

	// RateLimitWaits is how many 429 backoff waits are spent on one
	// tile before giving up.
	RateLimitWaits int

	// RateLimitBackoff is the pause after each 429.
	RateLimitBackoff time.Duration

	// TransientRetries is how many times a transport or server error
	// is retried.
	TransientRetries int

	// TransientBackoff is the pause before each transient retry.
	TransientBackoff time.Duration
}

// DefaultOptions returns the production fetch policy.
func DefaultOptions(urlTemplate, userAgent string) Options {
	return Options{
		URLTemplate:      urlTemplate,
		UserAgent:        userAgent,
		RateLimitWaits:   3,
		RateLimitBackoff: 5 * time.Second,
		TransientRetries: 2,
		TransientBackoff: time.Second,
	}
}

// Fetcher retrieves tiles one at a time. It consults the negative cache
// and the tile store before touching the network, and waits on the
// shared limiter only when a request will actually be made.
type Fetcher struct {
	client  *http.Client
	cache   *cache.Negative
	store   *storage.TileStore
	limiter *Limiter
	opts    Options
}

// New creates a Fetcher. limiter may be nil (tests).
func New(client *http.Client, neg *cache.Negative, store *storage.TileStore, limiter *Limiter, opts Options) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		client:  client,
		cache:   neg,
		store:   store,
		limiter: limiter,
		opts:    opts,
	}
}

// Fetch retrieves one tile and reports what happened. Every terminal
// state is an outcome, never a panic or a dropped error; the pipeline
// always proceeds to the next tile.
func (f *Fetcher) Fetch(ctx context.Context, t maptile.Tile) model.Result {
	key := tiles.Key(t)

	if f.cache.Contains(key) {
		return model.Result{Outcome: model.OutcomeCachedNegative}
	}

	path := tiles.Path(t)
	exists, err := f.store.Exists(ctx, path)
	if err != nil {
		return model.Result{Outcome: model.OutcomeFailed, Detail: fmt.Sprintf("checking local tile: %v", err)}
	}
	if exists {
		return model.Result{Outcome: model.OutcomeAlreadyPresent}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return model.Result{Outcome: model.OutcomeFailed, Detail: fmt.Sprintf("rate limiter: %v", err)}
		}
	}

	url := f.tileURL(t)

	// One small state machine per tile: attempt, rate-limit backoff,
	// transient backoff, terminal. Counters bound both backoff paths.
	rateWaits := 0
	transientRetries := 0
	for {
		status, body, err := f.attempt(ctx, url)

		switch {
		case err == nil && status >= 200 && status < 300:
			if werr := f.store.Write(ctx, path, body); werr != nil {
				return model.Result{Outcome: model.OutcomeFailed, Detail: fmt.Sprintf("writing tile %s: %v", key, werr)}
			}
			return model.Result{Outcome: model.OutcomeDownloaded}

		case err == nil && status == http.StatusNotFound:
			f.cache.Add(key)
			return model.Result{Outcome: model.OutcomeAbsent}

		case err == nil && status == http.StatusTooManyRequests:
			rateWaits++
			if serr := sleep(ctx, f.opts.RateLimitBackoff); serr != nil {
				return model.Result{Outcome: model.OutcomeFailed, Detail: fmt.Sprintf("interrupted during backoff: %v", serr)}
			}
			if rateWaits >= f.opts.RateLimitWaits {
				return model.Result{
					Outcome: model.OutcomeFailed,
					Detail:  fmt.Sprintf("tile %s: rate limit retries exhausted after %d waits", key, rateWaits),
				}
			}

		default:
			// Transport failures and every remaining status share the
			// transient path.
			if transientRetries >= f.opts.TransientRetries {
				detail := fmt.Sprintf("tile %s: giving up after %d retries", key, transientRetries)
				if err != nil {
					detail += ": " + err.Error()
				} else {
					detail += fmt.Sprintf(": status %d", status)
				}
				return model.Result{Outcome: model.OutcomeFailed, Detail: detail}
			}
			transientRetries++
			if serr := sleep(ctx, f.opts.TransientBackoff); serr != nil {
				return model.Result{Outcome: model.OutcomeFailed, Detail: fmt.Sprintf("interrupted during backoff: %v", serr)}
			}
		}
	}
}

// attempt performs one GET for the tile. The body is only read on 200.
func (f *Fetcher) attempt(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "image/png,image/*;q=0.8")
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading tile body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (f *Fetcher) tileURL(t maptile.Tile) string {
	r := strings.NewReplacer(
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(t.Y), 10),
	)
	return r.Replace(f.opts.URLTemplate)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
