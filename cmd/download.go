package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/paulmach/orb/maptile"
	"github.com/spf13/cobra"

	"github.com/mapfeed/tilewalk/internal/cache"
	"github.com/mapfeed/tilewalk/internal/feed"
	"github.com/mapfeed/tilewalk/internal/fetcher"
	"github.com/mapfeed/tilewalk/internal/model"
	"github.com/mapfeed/tilewalk/internal/pipeline"
	"github.com/mapfeed/tilewalk/internal/storage"
	"github.com/mapfeed/tilewalk/internal/store"
)

var (
	downloadZoom   int
	downloadDryRun bool
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Fetch the feed and download every tile covering its line features",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Feed.URL == "" {
			return fmt.Errorf("no feed URL configured (set [feed] url in %s)", configPath)
		}
		if cfg.Tiles.URLTemplate == "" {
			return fmt.Errorf("no tile URL template configured (set [tiles] url_template in %s)", configPath)
		}

		zoom := cfg.Tiles.Zoom
		if cmd.Flags().Changed("zoom") {
			zoom = downloadZoom
		}
		if zoom < 0 || zoom > 22 {
			return fmt.Errorf("zoom %d out of range", zoom)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		neg, err := cache.Load(filepath.Join(dataDir, "missing.json"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: starting with an empty negative cache: %v\n", err)
		}
		// The cache must reach disk on every exit path, including a
		// fatal feed error below. Flush is a no-op when clean.
		defer func() {
			if err := neg.Flush(); err != nil {
				fmt.Fprintf(os.Stderr, "WARNING: final cache flush failed: %v\n", err)
			}
		}()

		fc, err := feed.Fetch(ctx, nil, cfg.Feed.URL)
		if err != nil {
			printTally(cmd, "Aborted.", model.Tally{})
			return fmt.Errorf("fetching feature collection: %w", err)
		}
		logVerbose("feed: %d features", len(fc.Features))

		if downloadDryRun {
			worklist := pipeline.Worklist(fc, maptile.Zoom(zoom))
			fmt.Fprintf(cmd.OutOrStdout(), "%d features -> %d tiles at zoom %d (dry run, nothing fetched)\n",
				len(fc.Features), len(worklist), zoom)
			return nil
		}

		tileStore, err := storage.OpenDir(cfg.Tiles.Dir)
		if err != nil {
			return err
		}
		defer tileStore.Close()

		journal, err := store.New(dataDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARNING: running without a journal: %v\n", err)
			journal = nil
		} else {
			defer journal.Close()
		}

		f := fetcher.New(nil, neg, tileStore,
			fetcher.NewLimiter(cfg.Fetch.RateLimit),
			fetcher.DefaultOptions(cfg.Tiles.URLTemplate, cfg.Fetch.UserAgent))

		var perTile func(string, ...any)
		if verbose {
			perTile = logVerbose
		}

		p := &pipeline.Pipeline{
			Cache:   neg,
			Fetcher: f,
			Journal: journal,
			Opts: pipeline.Options{
				Zoom:       maptile.Zoom(zoom),
				FlushEvery: cfg.Fetch.FlushEvery,
				Progress:   !verbose,
				Verbose:    perTile,
			},
		}

		tally, err := p.Run(ctx, fc)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "\nInterrupted after %d tiles.\n", tally.Total())
			printTally(cmd, "Interrupted.", tally)
			return nil
		}

		printTally(cmd, "Done.", tally)
		return nil
	},
}

func printTally(cmd *cobra.Command, prefix string, t model.Tally) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s downloaded: %d  skipped: %d  confirmed-absent: %d  failed: %d\n",
		prefix, t.Downloaded, t.Skipped, t.Absent, t.Failed)
}

func init() {
	downloadCmd.Flags().IntVar(&downloadZoom, "zoom", 11, "Tile zoom level (overrides config)")
	downloadCmd.Flags().BoolVar(&downloadDryRun, "dry-run", false, "Sample the feed and report the worklist size without fetching")
	rootCmd.AddCommand(downloadCmd)
}
