package domain

import "time"

// Stage is the pipeline step an outcome belongs to.
type Stage string

const (
	StageDownload Stage = "download"
	StageRender   Stage = "render"
)

// Outcome classifies what happened to one scan in one stage.
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeRendered   Outcome = "rendered"
	OutcomeSkipped    Outcome = "skipped" // output already present
	OutcomeNotFound   Outcome = "not_found"
	OutcomeError      Outcome = "error"
)

// ScanEvent records one per-scan outcome for downstream consumers.
type ScanEvent struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Scan       string    `json:"scan"`
	Stage      Stage     `json:"stage"`
	Outcome    Outcome   `json:"outcome"`
	Product    string    `json:"product,omitempty"` // "array" or "dualpol" for renders
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
