// Package pipeline drives one download run: sample the tiles covering
// the feed's line features, fetch each one sequentially, and keep the
// negative cache durable along the way.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/schollz/progressbar/v3"

	"github.com/mapfeed/tilewalk/internal/cache"
	"github.com/mapfeed/tilewalk/internal/fetcher"
	"github.com/mapfeed/tilewalk/internal/model"
	"github.com/mapfeed/tilewalk/internal/sampler"
	"github.com/mapfeed/tilewalk/internal/store"
	"github.com/mapfeed/tilewalk/internal/tiles"
)

// Options configures a run.
type Options struct {
	Zoom maptile.Zoom

	// FlushEvery is how many processed tiles pass between periodic
	// negative-cache flushes.
	FlushEvery int

	// Progress enables the per-run progress bar.
	Progress bool

	// Verbose, when non-nil, receives a line per processed tile.
	Verbose func(format string, args ...any)
}

// Pipeline wires the sampler, fetcher, negative cache and journal into
// the sequential download loop. Journal may be nil.
type Pipeline struct {
	Cache   *cache.Negative
	Fetcher *fetcher.Fetcher
	Journal *store.Store
	Opts    Options
}

// Worklist samples fc and returns the covering tiles in deterministic
// (x, y) order.
func Worklist(fc *geojson.FeatureCollection, z maptile.Zoom) []maptile.Tile {
	set := sampler.Cover(fc, z)

	list := make([]maptile.Tile, 0, len(set))
	for t := range set {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].X != list[j].X {
			return list[i].X < list[j].X
		}
		return list[i].Y < list[j].Y
	})
	return list
}

// Run processes every tile covering fc and returns the final tally.
// On interruption the cache is flushed and the partial tally returned
// together with the context error; fetch failures never stop the loop.
func (p *Pipeline) Run(ctx context.Context, fc *geojson.FeatureCollection) (model.Tally, error) {
	worklist := Worklist(fc, p.Opts.Zoom)

	var tally model.Tally
	if len(worklist) == 0 {
		return tally, nil
	}

	runID := 0
	if p.Journal != nil {
		id, err := p.Journal.BeginRun(len(fc.Features), len(worklist))
		if err != nil {
			warnf("journal unavailable: %v", err)
		} else {
			runID = id
		}
	}

	var bar *progressbar.ProgressBar
	if p.Opts.Progress {
		bar = progressbar.Default(int64(len(worklist)), "downloading tiles")
	}

	flushEvery := p.Opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 20
	}

	interrupted := false
	for i, tile := range worklist {
		select {
		case <-ctx.Done():
			interrupted = true
		default:
		}
		if interrupted {
			break
		}

		res := p.Fetcher.Fetch(ctx, tile)
		tally.Add(res.Outcome)

		if p.Opts.Verbose != nil {
			p.Opts.Verbose("  [%d/%d] %s: %s", i+1, len(worklist), tiles.Key(tile), res.Outcome)
		}
		if res.Outcome == model.OutcomeFailed {
			warnf("tile %s failed: %s", tiles.Key(tile), res.Detail)
		}
		if bar != nil {
			bar.Add(1)
		}

		if runID != 0 {
			err := p.Journal.RecordOutcome(model.TileOutcome{
				RunID:   runID,
				X:       tile.X,
				Y:       tile.Y,
				Outcome: res.Outcome,
				Detail:  res.Detail,
			})
			if err != nil {
				warnf("journal write failed: %v", err)
			}
		}

		if (i+1)%flushEvery == 0 {
			if err := p.Cache.Flush(); err != nil {
				warnf("negative cache flush failed: %v", err)
			}
		}
	}

	if err := p.Cache.Flush(); err != nil {
		warnf("negative cache flush failed: %v", err)
	}
	if runID != 0 {
		if err := p.Journal.FinishRun(runID, tally); err != nil {
			warnf("journal finish failed: %v", err)
		}
	}

	if interrupted {
		return tally, ctx.Err()
	}
	return tally, nil
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "WARNING: "+format+"\n", args...)
}
