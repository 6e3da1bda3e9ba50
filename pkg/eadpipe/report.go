package eadpipe

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ValerySidorin/eadpipe/pkg/ledger"
	"github.com/ValerySidorin/eadpipe/pkg/ledger/entry"
	"github.com/ValerySidorin/eadpipe/pkg/pipeline"
	"github.com/ValerySidorin/eadpipe/pkg/record"
)

// Summary is a finished run as read back from the ledger or the manifest.
type Summary struct {
	RunID       string
	Interrupted bool
	Skipped     int
	Rows        []SummaryRow
}

type SummaryRow struct {
	Seq          int
	RepositoryID string
	ResourceID   string
	Status       record.Status
	File         string
	Detail       string
}

func (s *Summary) Failed() []SummaryRow {
	return lo.Filter(s.Rows, func(row SummaryRow, _ int) bool {
		return row.Status != record.VALID
	})
}

func (s *Summary) OK() bool {
	return !s.Interrupted && s.Skipped == 0 && len(s.Failed()) == 0
}

func summaryFromLedger(run *entry.Run, entries []*entry.Entry) *Summary {
	return &Summary{
		RunID:       run.RunID,
		Interrupted: run.Interrupted,
		Skipped:     run.Skipped(len(entries)),
		Rows: lo.Map(entries, func(e *entry.Entry, _ int) SummaryRow {
			return SummaryRow{
				Seq:          e.Seq,
				RepositoryID: e.RepositoryID,
				ResourceID:   e.ResourceID,
				Status:       e.Status,
				File:         e.FilePath,
				Detail:       e.Detail,
			}
		}),
	}
}

func summaryFromManifest(m *pipeline.Manifest) *Summary {
	return &Summary{
		RunID:       m.RunID,
		Interrupted: m.Interrupted,
		Skipped:     m.Skipped,
		Rows: lo.Map(m.Records, func(r pipeline.ManifestRecord, _ int) SummaryRow {
			return SummaryRow{
				Seq:          r.Seq,
				RepositoryID: r.RepositoryID,
				ResourceID:   r.ResourceID,
				Status:       r.Status,
				File:         r.File,
				Detail:       r.Detail,
			}
		}),
	}
}

// Write prints per-status totals followed by every failed record.
func (s *Summary) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "run\t%s\n", s.RunID)
	fmt.Fprintf(tw, "records\t%d\n", len(s.Rows))
	for _, status := range []record.Status{
		record.VALID, record.EXPORT_FAILED, record.TRANSFORM_FAILED, record.SCHEMA_INVALID,
		record.SYNTAX_INVALID, record.IO_INVALID, record.UNKNOWN_ERROR,
	} {
		n := lo.CountBy(s.Rows, func(row SummaryRow) bool { return row.Status == status })
		if n > 0 {
			fmt.Fprintf(tw, "%s\t%d\n", status, n)
		}
	}
	if s.Skipped > 0 {
		fmt.Fprintf(tw, "SKIPPED\t%d\n", s.Skipped)
	}
	if s.Interrupted {
		fmt.Fprintf(tw, "interrupted\ttrue\n")
	}

	if failed := s.Failed(); len(failed) > 0 {
		fmt.Fprintf(tw, "\nseq\trecord\tstatus\tfile\tdetail\n")
		for _, row := range failed {
			fmt.Fprintf(tw, "%d\t%s/%s\t%s\t%s\t%s\n", row.Seq, row.RepositoryID, row.ResourceID, row.Status, row.File, row.Detail)
		}
	}

	return tw.Flush()
}

// Reporter prints the summary of a finished run.
type Reporter struct {
	services.Service

	cfg Config
	out io.Writer
	log log.Logger

	summary *Summary
}

func NewReporter(cfg Config, out io.Writer, logger log.Logger) *Reporter {
	r := &Reporter{
		cfg: cfg,
		out: out,
		log: log.With(logger, "service", "reporter"),
	}
	r.Service = services.NewBasicService(nil, r.running, nil)
	return r
}

// Summary is nil until the report was printed.
func (r *Reporter) Summary() *Summary {
	return r.summary
}

func (r *Reporter) running(ctx context.Context) error {
	s, err := r.load(ctx)
	if err != nil {
		return err
	}

	if err := s.Write(r.out); err != nil {
		return errors.Wrap(err, "write report")
	}

	_ = level.Info(r.log).Log("msg", "report printed", "run_id", s.RunID, "records", len(s.Rows), "failed", len(s.Failed()))
	r.summary = s
	return nil
}

func (r *Reporter) load(ctx context.Context) (*Summary, error) {
	if !r.cfg.Ledger.Enabled() {
		m, err := pipeline.ReadManifest(r.cfg.ManifestPath)
		if err != nil {
			return nil, err
		}
		if r.cfg.RunID != "" && r.cfg.RunID != m.RunID {
			return nil, errors.Errorf("manifest %s holds run %s, not %s", r.cfg.ManifestPath, m.RunID, r.cfg.RunID)
		}
		return summaryFromManifest(m), nil
	}

	store, err := ledger.NewStore(ctx, r.cfg.Ledger, r.log)
	if err != nil {
		return nil, errors.Wrap(err, "reporter connect to ledger")
	}
	l := ledger.New(store, r.log)
	defer func() {
		_ = l.Close(context.Background())
	}()

	run, entries, err := l.Load(ctx, r.cfg.RunID)
	if err != nil {
		return nil, err
	}
	return summaryFromLedger(run, entries), nil
}
