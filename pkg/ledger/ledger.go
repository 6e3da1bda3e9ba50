package ledger

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/ValerySidorin/eadpipe/pkg/ledger/entry"
	"github.com/ValerySidorin/eadpipe/pkg/ledger/pg"
	"github.com/ValerySidorin/eadpipe/pkg/pipeline"
	"github.com/ValerySidorin/eadpipe/pkg/record"
)

type Store interface {
	InsertEntry(ctx context.Context, e *entry.Entry) error
	GetRunEntries(ctx context.Context, runID string) ([]*entry.Entry, error)
	InsertRun(ctx context.Context, r *entry.Run) error
	GetRun(ctx context.Context, runID string) (*entry.Run, bool, error)
	GetLatestRunID(ctx context.Context) (string, bool, error)
	Dispose(ctx context.Context) error
}

func NewStore(ctx context.Context, cfg Config, logger log.Logger) (Store, error) {
	switch cfg.Store {
	case StorePg:
		return pg.NewStore(ctx, cfg.Pg, logger)
	default:
		return nil, errors.Errorf("invalid ledger store in config: %q", cfg.Store)
	}
}

var _ pipeline.RunSink = (*Ledger)(nil)

// Ledger records every finished record of a run in a Store.
type Ledger struct {
	store Store
	now   func() time.Time
	log   log.Logger
}

func New(store Store, logger log.Logger) *Ledger {
	return &Ledger{
		store: store,
		now:   time.Now,
		log:   log.With(logger, "component", "ledger"),
	}
}

func (l *Ledger) Record(ctx context.Context, runID string, res *record.Result) error {
	if err := l.store.InsertEntry(ctx, entry.New(runID, res, l.now())); err != nil {
		return errors.Wrapf(err, "ledger record %s", res.Ref)
	}
	return nil
}

// Finish stores the totals of report, so that interrupted runs can be told
// apart from complete ones when read back.
func (l *Ledger) Finish(ctx context.Context, report *pipeline.Report) error {
	r := &entry.Run{
		RunID:       report.RunID,
		Total:       report.Total,
		Interrupted: report.Interrupted,
		StartedAt:   report.StartedAt.UTC(),
		FinishedAt:  report.FinishedAt.UTC(),
	}
	if err := l.store.InsertRun(ctx, r); err != nil {
		return errors.Wrapf(err, "ledger finish run %s", report.RunID)
	}
	return nil
}

func (l *Ledger) Close(ctx context.Context) error {
	return l.store.Dispose(ctx)
}

// Load returns the totals and the entries (ordered by seq) of runID. An
// empty runID selects the latest run. A run without totals never finished
// and is reported as interrupted.
func (l *Ledger) Load(ctx context.Context, runID string) (*entry.Run, []*entry.Entry, error) {
	if runID == "" {
		latest, found, err := l.store.GetLatestRunID(ctx)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			return nil, nil, errors.New("ledger holds no runs")
		}
		runID = latest
	}

	entries, err := l.store.GetRunEntries(ctx, runID)
	if err != nil {
		return nil, nil, err
	}

	run, found, err := l.store.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		if len(entries) == 0 {
			return nil, nil, errors.Errorf("ledger holds no run %s", runID)
		}
		_ = level.Warn(l.log).Log("msg", "run has no totals, it did not finish", "run_id", runID)
		run = &entry.Run{RunID: runID, Total: len(entries), Interrupted: true}
	}

	_ = level.Debug(l.log).Log("msg", "loaded run", "run_id", runID, "entries", len(entries), "total", run.Total)
	return run, entries, nil
}
