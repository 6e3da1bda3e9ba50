package entry

import (
	"time"

	"github.com/ValerySidorin/eadpipe/pkg/record"
)

// Entry is the durable outcome of one record in one run.
type Entry struct {
	RunID        string
	Seq          int
	RepositoryID string
	ResourceID   string
	Stage        record.Stage
	Status       record.Status
	FilePath     string
	Detail       string
	Violations   int
	RecordedAt   time.Time
}

func New(runID string, res *record.Result, recordedAt time.Time) *Entry {
	e := &Entry{
		RunID:        runID,
		Seq:          res.Seq,
		RepositoryID: res.Ref.RepositoryID,
		ResourceID:   res.Ref.ResourceID,
		Stage:        res.Stage,
		Status:       res.Status,
		FilePath:     res.FilePath(),
		Detail:       res.Detail(),
		RecordedAt:   recordedAt.UTC(),
	}
	if res.Outcome != nil {
		e.Violations = len(res.Outcome.Violations)
	}
	return e
}

// Run holds the totals of a finished run. Total counts every input
// reference, including those never reached.
type Run struct {
	RunID       string
	Total       int
	Interrupted bool
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Skipped is the number of references without an entry.
func (r *Run) Skipped(entries int) int {
	if entries >= r.Total {
		return 0
	}
	return r.Total - entries
}
