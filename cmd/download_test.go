package cmd

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func testFeedServer(t *testing.T) *httptest.Server {
	t.Helper()

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{0, 0}, {0.01, 0}}))
	body, err := fc.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, dir, feedURL, tileTemplate string) string {
	t.Helper()

	path := filepath.Join(dir, "config.toml")
	body := fmt.Sprintf("[feed]\nurl = %q\n\n[tiles]\nurl_template = %q\ndir = %q\n",
		feedURL, tileTemplate, filepath.Join(dir, "tiles"))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// runCommand executes the root command with captured output and
// restores the shared command state afterwards.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		downloadDryRun = false
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestDownloadDryRun(t *testing.T) {
	feedSrv := testFeedServer(t)
	tileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("a dry run must not fetch tiles, got a request for %s", r.URL.Path)
	}))
	t.Cleanup(tileSrv.Close)

	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, feedSrv.URL, tileSrv.URL+"/{x}/{y}")
	dataPath := filepath.Join(dir, "data")

	out, err := runCommand(t, "download", "--dry-run", "--config", cfgPath, "--data-dir", dataPath)
	if err != nil {
		t.Fatalf("download --dry-run: %v", err)
	}

	if !strings.Contains(out, "dry run") {
		t.Errorf("expected a dry-run summary, got %q", out)
	}
	if _, err := os.Stat(filepath.Join(dataPath, "tilewalk.duckdb")); !os.IsNotExist(err) {
		t.Error("a dry run must not open the run journal")
	}
	if _, err := os.Stat(filepath.Join(dataPath, "missing.json")); !os.IsNotExist(err) {
		t.Error("a dry run must not write the negative cache")
	}
}

func TestDownloadFeedFailurePrintsAbortSummary(t *testing.T) {
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(feedSrv.Close)
	tileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no tiles should be fetched when the feed is unavailable")
	}))
	t.Cleanup(tileSrv.Close)

	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, feedSrv.URL, tileSrv.URL+"/{x}/{y}")

	out, err := runCommand(t, "download", "--config", cfgPath, "--data-dir", filepath.Join(dir, "data"))
	if err == nil {
		t.Fatal("expected an error when the feed fetch fails")
	}

	if !strings.Contains(out, "Aborted.") {
		t.Errorf("expected an aborted summary, got %q", out)
	}
	if strings.Contains(out, "Done.") {
		t.Errorf("a failed run must not read as success, got %q", out)
	}
}
