// Package feed retrieves the GeoJSON feature collection that drives a run.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Fetch performs one GET against feedURL and parses the body as a
// GeoJSON FeatureCollection. A timestamp query parameter is appended so
// intermediate caches cannot serve a stale collection.
func Fetch(ctx context.Context, client *http.Client, feedURL string) (*geojson.FeatureCollection, error) {
	if client == nil {
		client = http.DefaultClient
	}

	u, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("parsing feed URL: %w", err)
	}
	q := u.Query()
	q.Set("ts", strconv.FormatInt(time.Now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating feed request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading feed body: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("parsing feature collection: %w", err)
	}

	return fc, nil
}
