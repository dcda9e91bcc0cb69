package model

// Outcome classifies what happened to a single tile during a run.
type Outcome string

const (
	// OutcomeDownloaded means the tile was fetched and written to the store.
	OutcomeDownloaded Outcome = "downloaded"
	// OutcomeAlreadyPresent means the tile file already existed locally.
	OutcomeAlreadyPresent Outcome = "already-present"
	// OutcomeCachedNegative means the negative cache short-circuited the fetch.
	OutcomeCachedNegative Outcome = "cached-negative"
	// OutcomeAbsent means upstream confirmed the tile does not exist.
	OutcomeAbsent Outcome = "confirmed-absent"
	// OutcomeFailed means retries were exhausted or the local write failed.
	OutcomeFailed Outcome = "failed"
)

// Result is the per-tile outcome of a fetch, with an optional diagnostic.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}

// Tally accumulates per-outcome counts over a run. Cached-negative and
// already-present tiles both count as skipped.
type Tally struct {
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Absent     int `json:"absent"`
	Failed     int `json:"failed"`
}

// Add records one outcome.
func (t *Tally) Add(o Outcome) {
	switch o {
	case OutcomeDownloaded:
		t.Downloaded++
	case OutcomeAlreadyPresent, OutcomeCachedNegative:
		t.Skipped++
	case OutcomeAbsent:
		t.Absent++
	case OutcomeFailed:
		t.Failed++
	}
}

// Total returns the number of tiles processed so far.
func (t *Tally) Total() int {
	return t.Downloaded + t.Skipped + t.Absent + t.Failed
}

// Run is one journal entry describing a full pipeline run.
type Run struct {
	ID          int    `json:"id"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at,omitempty"`
	Features    int    `json:"features"`
	TilesWanted int    `json:"tiles_wanted"`
	Tally       Tally  `json:"tally"`
}

// TileOutcome is one journal row: what happened to tile (x, y) in a run.
type TileOutcome struct {
	RunID   int     `json:"run_id"`
	X       uint32  `json:"x"`
	Y       uint32  `json:"y"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}
