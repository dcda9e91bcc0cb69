package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb/maptile"

	"github.com/mapfeed/tilewalk/internal/cache"
	"github.com/mapfeed/tilewalk/internal/model"
	"github.com/mapfeed/tilewalk/internal/storage"
)

func testOptions(srvURL string) Options {
	opts := DefaultOptions(srvURL+"/{x}/{y}", "tilewalk-test")
	opts.RateLimitBackoff = time.Millisecond
	opts.TransientBackoff = time.Millisecond
	return opts
}

func testCache(t *testing.T) *cache.Negative {
	t.Helper()
	n, err := cache.Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("loading cache: %v", err)
	}
	return n
}

func TestFetchDownloads(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("User-Agent") != "tilewalk-test" {
			t.Errorf("missing user agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("png"))
	}))
	defer srv.Close()

	store := storage.OpenMem()
	defer store.Close()

	f := New(srv.Client(), testCache(t), store, nil, testOptions(srv.URL))
	res := f.Fetch(context.Background(), maptile.New(3, 4, 11))

	if res.Outcome != model.OutcomeDownloaded {
		t.Fatalf("expected downloaded, got %s (%s)", res.Outcome, res.Detail)
	}
	if hits != 1 {
		t.Errorf("expected 1 request, got %d", hits)
	}

	data, err := store.Read(context.Background(), "3/4.png")
	if err != nil {
		t.Fatalf("reading stored tile: %v", err)
	}
	if string(data) != "png" {
		t.Errorf("unexpected stored bytes %q", data)
	}
}

func TestFetchNotFoundCachesAndShortCircuits(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	neg := testCache(t)
	store := storage.OpenMem()
	defer store.Close()

	f := New(srv.Client(), neg, store, nil, testOptions(srv.URL))
	tile := maptile.New(5, 5, 11)

	res := f.Fetch(context.Background(), tile)
	if res.Outcome != model.OutcomeAbsent {
		t.Fatalf("expected confirmed-absent, got %s", res.Outcome)
	}
	if !neg.Contains("5/5") {
		t.Fatal("expected 5/5 in the negative cache")
	}

	// Second fetch in the same run must not touch the network.
	res = f.Fetch(context.Background(), tile)
	if res.Outcome != model.OutcomeCachedNegative {
		t.Fatalf("expected cached-negative, got %s", res.Outcome)
	}
	if hits != 1 {
		t.Errorf("expected exactly 1 request, got %d", hits)
	}
}

func TestFetchExistingTileSkipsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected network call for a locally present tile")
	}))
	defer srv.Close()

	store := storage.OpenMem()
	defer store.Close()
	if err := store.Write(context.Background(), "7/9.png", []byte("x")); err != nil {
		t.Fatal(err)
	}

	f := New(srv.Client(), testCache(t), store, nil, testOptions(srv.URL))
	res := f.Fetch(context.Background(), maptile.New(7, 9, 11))
	if res.Outcome != model.OutcomeAlreadyPresent {
		t.Fatalf("expected already-present, got %s", res.Outcome)
	}
}

func TestFetchRateLimitExhaustion(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	store := storage.OpenMem()
	defer store.Close()

	f := New(srv.Client(), testCache(t), store, nil, testOptions(srv.URL))
	res := f.Fetch(context.Background(), maptile.New(2, 2, 11))

	if res.Outcome != model.OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	// Three 429 responses, one backoff wait each, then terminal.
	if hits != 3 {
		t.Errorf("expected 3 requests before giving up, got %d", hits)
	}
}

func TestFetchTransientRetryThenSuccess(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("png"))
	}))
	defer srv.Close()

	store := storage.OpenMem()
	defer store.Close()

	f := New(srv.Client(), testCache(t), store, nil, testOptions(srv.URL))
	res := f.Fetch(context.Background(), maptile.New(1, 1, 11))

	if res.Outcome != model.OutcomeDownloaded {
		t.Fatalf("expected downloaded after retry, got %s (%s)", res.Outcome, res.Detail)
	}
	if hits != 2 {
		t.Errorf("expected 2 requests, got %d", hits)
	}
}

func TestFetchTransientExhaustion(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := storage.OpenMem()
	defer store.Close()

	f := New(srv.Client(), testCache(t), store, nil, testOptions(srv.URL))
	res := f.Fetch(context.Background(), maptile.New(8, 8, 11))

	if res.Outcome != model.OutcomeFailed {
		t.Fatalf("expected failed, got %s", res.Outcome)
	}
	if res.Detail == "" {
		t.Error("expected a diagnostic detail on failure")
	}
	// Initial attempt plus two retries.
	if hits != 3 {
		t.Errorf("expected 3 requests, got %d", hits)
	}
}

func TestFetchNotFoundIsNeverRetried(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store := storage.OpenMem()
	defer store.Close()

	f := New(srv.Client(), testCache(t), store, nil, testOptions(srv.URL))
	f.Fetch(context.Background(), maptile.New(6, 6, 11))

	if hits != 1 {
		t.Errorf("404 must be authoritative, got %d requests", hits)
	}
}
