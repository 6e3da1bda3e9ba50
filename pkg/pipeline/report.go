package pipeline

import (
	"time"

	"github.com/samber/lo"

	"github.com/ValerySidorin/eadpipe/pkg/record"
)

// Report is the outcome of one batch run.
type Report struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Total       int
	Results     []*record.Result
	Interrupted bool
}

func (r *Report) Succeeded() int {
	return lo.CountBy(r.Results, func(res *record.Result) bool {
		return res.Succeeded()
	})
}

func (r *Report) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Skipped is the number of references never reached, because the run was
// interrupted.
func (r *Report) Skipped() int {
	return r.Total - len(r.Results)
}

// OK reports whether every reference was processed and validated.
func (r *Report) OK() bool {
	return !r.Interrupted && r.Skipped() == 0 && r.Failed() == 0
}

func (r *Report) CountByStatus() map[record.Status]int {
	groups := lo.GroupBy(r.Results, func(res *record.Result) record.Status {
		return res.Status
	})
	return lo.MapValues(groups, func(rs []*record.Result, _ record.Status) int {
		return len(rs)
	})
}
