package cmd

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mapfeed/tilewalk/internal/cache"
	"github.com/mapfeed/tilewalk/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show download progress and cache state",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.New(dataDir)
		if err != nil {
			return err
		}
		defer s.Close()

		neg, err := cache.Load(filepath.Join(dataDir, "missing.json"))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: negative cache unreadable: %v\n", err)
		}

		onDisk := countTiles(cfg.Tiles.Dir)

		fmt.Printf("Pipeline Status\n")
		fmt.Printf("===============\n")
		fmt.Printf("Runs journaled:    %d\n", s.RunCount())
		fmt.Printf("Tiles on disk:     %d\n", onDisk)
		fmt.Printf("Confirmed absent:  %d\n", neg.Len())

		last, err := s.LastRun()
		if err != nil {
			return fmt.Errorf("reading last run: %w", err)
		}
		if last == nil {
			fmt.Println("\nNo runs recorded yet.")
			return nil
		}

		fmt.Printf("\nLast Run (#%d)\n", last.ID)
		fmt.Printf("--------------\n")
		fmt.Printf("Started:           %s\n", last.StartedAt)
		if last.FinishedAt != "" {
			fmt.Printf("Finished:          %s\n", last.FinishedAt)
		} else {
			fmt.Printf("Finished:          (interrupted)\n")
		}
		fmt.Printf("Features:          %d\n", last.Features)
		fmt.Printf("Tiles wanted:      %d\n", last.TilesWanted)
		fmt.Printf("  downloaded: %d  skipped: %d  absent: %d  failed: %d\n",
			last.Tally.Downloaded, last.Tally.Skipped, last.Tally.Absent, last.Tally.Failed)

		return nil
	},
}

// countTiles walks the output directory counting tile images. A missing
// directory simply counts as zero.
func countTiles(dir string) int {
	var n int
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(path, ".png") {
			n++
		}
		return nil
	})
	return n
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
