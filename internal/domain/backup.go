package domain

import "time"

// Outcome classifies how a backup attempt ended.
type Outcome string

const (
	// OutcomeCommitted means a new snapshot was committed to the
	// version-control backend.
	OutcomeCommitted Outcome = "committed"
	// OutcomeUnchanged means the upstream payload was identical to the
	// previous snapshot; the attempt was recorded but nothing was
	// written to the version-control backend.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeFailed means the attempt aborted with an error.
	OutcomeFailed Outcome = "failed"
	// OutcomeCancelled means the caller cancelled the attempt mid-flight.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeDryRun means the attempt stopped after validation and was
	// never recorded in the ledger.
	OutcomeDryRun Outcome = "dry_run"
)

// Phase names a stage of the backup state machine. Failure records carry
// the phase that was active when the attempt aborted.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseExporting  Phase = "exporting"
	PhaseValidating Phase = "validating"
	PhaseCommitting Phase = "committing"
	PhaseRecording  Phase = "recording"
)

// BackupRecord is one entry in the append-only backup ledger. Records are
// never mutated after creation.
type BackupRecord struct {
	ID          string    `json:"id"`
	WorkflowID  string    `json:"workflow_id"`
	Outcome     Outcome   `json:"outcome"`
	Version     Version   `json:"version"`
	ContentHash string    `json:"content_hash,omitempty"`
	CommitRef   string    `json:"commit_ref,omitempty"`
	Phase       Phase     `json:"phase,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Succeeded reports whether the attempt produced or confirmed a snapshot.
func (r BackupRecord) Succeeded() bool {
	return r.Outcome == OutcomeCommitted || r.Outcome == OutcomeUnchanged
}
