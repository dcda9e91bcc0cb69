// Package web serves the downloaded tile directory and read-only status
// APIs over HTTP.
package web

import (
	"fmt"
	"net/http"

	"github.com/mapfeed/tilewalk/internal/cache"
	"github.com/mapfeed/tilewalk/internal/store"
)

// Server serves tiles and journal/cache state.
type Server struct {
	Store   *store.Store
	Cache   *cache.Negative
	TileDir string
	Addr    string
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/missing", s.handleMissing)

	mux.Handle("/tiles/", http.StripPrefix("/tiles/", http.FileServer(http.Dir(s.TileDir))))

	return mux
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	fmt.Printf("Serving at http://%s\n", s.Addr)
	return http.ListenAndServe(s.Addr, s.Handler())
}
