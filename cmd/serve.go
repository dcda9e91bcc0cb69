package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mapfeed/tilewalk/internal/cache"
	"github.com/mapfeed/tilewalk/internal/store"
	"github.com/mapfeed/tilewalk/internal/web"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tile directory and status APIs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("host") {
			serveHost = cfg.Server.Host
		}
		if !cmd.Flags().Changed("port") {
			servePort = cfg.Server.Port
		}

		s, err := store.New(dataDir)
		if err != nil {
			return err
		}
		defer s.Close()

		neg, err := cache.Load(filepath.Join(dataDir, "missing.json"))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: negative cache unreadable: %v\n", err)
		}

		srv := &web.Server{
			Store:   s,
			Cache:   neg,
			TileDir: cfg.Tiles.Dir,
			Addr:    fmt.Sprintf("%s:%d", serveHost, servePort),
		}
		return srv.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "Host to listen on")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}
