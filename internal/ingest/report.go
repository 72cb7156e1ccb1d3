package ingest

import (
	"fmt"

	"github.com/google/uuid"
)

// BatchFailure records one failed ingestion batch: which batch, how
// big it was, and the identity range it covered. The error keeps its
// chain so callers can errors.Is against store and embedder sentinels.
type BatchFailure struct {
	Batch    int
	Size     int
	FirstKey string
	LastKey  string
	Err      error
}

func (f BatchFailure) String() string {
	return fmt.Sprintf("batch %d (%d records, %s..%s): %v",
		f.Batch, f.Size, f.FirstKey, f.LastKey, f.Err)
}

// Report summarizes a Seed run. Records counts only records that were
// actually upserted; a failed batch contributes nothing to it. RunID
// correlates the report with the run's log lines.
type Report struct {
	RunID     uuid.UUID
	Batches   int
	Succeeded int
	Failed    int
	Records   int
	Failures  []BatchFailure
}

// Ok reports whether every batch succeeded.
func (r *Report) Ok() bool { return r.Failed == 0 }
