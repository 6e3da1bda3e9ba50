package eadpipe

import (
	"context"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/ValerySidorin/eadpipe/pkg/archive"
	"github.com/ValerySidorin/eadpipe/pkg/aspace"
	"github.com/ValerySidorin/eadpipe/pkg/fetch"
	"github.com/ValerySidorin/eadpipe/pkg/ledger"
	"github.com/ValerySidorin/eadpipe/pkg/notify"
	"github.com/ValerySidorin/eadpipe/pkg/pipeline"
	"github.com/ValerySidorin/eadpipe/pkg/record"
	"github.com/ValerySidorin/eadpipe/pkg/transform"
	util_log "github.com/ValerySidorin/eadpipe/pkg/util/log"
	"github.com/ValerySidorin/eadpipe/pkg/validate"
)

// Batch is a single pipeline run: setup in starting, the per-record loop
// in running, sinks and artifacts flushed in stopping.
type Batch struct {
	services.Service

	cfg   Config
	runID string
	reg   prometheus.Registerer
	log   log.Logger

	audit   log.Logger
	closers []io.Closer

	refs   []record.Reference
	runner *pipeline.Runner
	report *pipeline.Report

	// Published for Progress, which runs on the signal handler goroutine.
	total  *atomic.Int64
	active atomic.Pointer[pipeline.Runner]
}

func NewBatch(cfg Config, runID string, reg prometheus.Registerer, logger log.Logger) *Batch {
	b := &Batch{
		cfg:   cfg,
		runID: runID,
		reg:   reg,
		log:   log.With(logger, "service", "batch", "run_id", runID),
		total: atomic.NewInt64(0),
	}
	b.Service = services.NewBasicService(b.starting, b.running, b.stopping)
	return b
}

// Report is nil until the run loop has finished.
func (b *Batch) Report() *pipeline.Report {
	return b.report
}

// Progress is safe to call while the batch is running.
func (b *Batch) Progress() (processed, failed int64, total int) {
	total = int(b.total.Load())
	runner := b.active.Load()
	if runner == nil {
		return 0, 0, total
	}
	processed, failed = runner.Progress()
	return processed, failed, total
}

func (b *Batch) starting(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			b.closeAll()
		}
	}()

	audit, closer, err := util_log.OpenAuditLog(b.cfg.Log.AuditFile)
	if err != nil {
		return err
	}
	b.audit = audit
	b.closers = append(b.closers, closer)

	_ = level.Info(b.audit).Log("msg", "session start", "run_id", b.runID,
		"api_url", b.cfg.ASpace.URL, "input", b.cfg.InputCSV)

	b.refs, err = record.ReadCSVFile(b.cfg.InputCSV)
	if err != nil {
		return b.fatal(err)
	}
	b.total.Store(int64(len(b.refs)))
	_ = level.Info(b.log).Log("msg", "input loaded", "records", len(b.refs), "file", b.cfg.InputCSV)

	fetcher := fetch.New(b.cfg.Fetch, b.log)
	stylesheet, err := fetcher.Resolve(ctx, b.cfg.Transform.Stylesheet)
	if err != nil {
		return b.fatal(errors.Wrap(err, "resolve stylesheet"))
	}
	schemaPath, err := fetcher.Resolve(ctx, b.cfg.Validation.Schema)
	if err != nil {
		return b.fatal(errors.Wrap(err, "resolve schema"))
	}

	schema, err := validate.LoadSchema(schemaPath)
	if err != nil {
		return b.fatal(err)
	}

	client := aspace.NewClient(b.cfg.ASpace, b.log)
	session, err := client.Authenticate(ctx, b.cfg.ASpace.Username, b.cfg.ASpace.Password.String())
	if err != nil {
		return b.fatal(err)
	}
	exporter, err := aspace.NewExporter(client, session, b.log)
	if err != nil {
		return b.fatal(err)
	}

	errs, err := transform.OpenErrorStream(b.cfg.Transform.ErrorsFile)
	if err != nil {
		return b.fatal(err)
	}
	b.closers = append(b.closers, errs)

	tcfg := b.cfg.Transform
	tcfg.Stylesheet = stylesheet
	transformer := transform.New(tcfg, errs, b.log)

	validator := validate.New(schema, b.audit)

	sinks, err := b.newSinks(ctx)
	if err != nil {
		return b.fatal(err)
	}

	b.runner = pipeline.NewRunner(b.runID, exporter, transformer, validator, sinks, b.reg, b.log, b.audit)
	b.active.Store(b.runner)
	return nil
}

func (b *Batch) newSinks(ctx context.Context) (sinks []pipeline.Sink, err error) {
	defer func() {
		if err != nil {
			for _, s := range sinks {
				_ = s.Close(ctx)
			}
		}
	}()

	if b.cfg.Ledger.Enabled() {
		store, err := ledger.NewStore(ctx, b.cfg.Ledger, b.log)
		if err != nil {
			return sinks, errors.Wrap(err, "batch connect to ledger")
		}
		sinks = append(sinks, ledger.New(store, b.log))
	}

	if b.cfg.Archive.Enabled() {
		writer, err := archive.NewWriter(ctx, b.cfg.Archive)
		if err != nil {
			return sinks, errors.Wrap(err, "batch connect to archive")
		}
		sinks = append(sinks, archive.New(writer, b.log))
	}

	if b.cfg.Notify.Enabled() {
		pub, err := notify.NewPublisher(b.cfg.Notify, b.log)
		if err != nil {
			return sinks, errors.Wrap(err, "batch connect to queue")
		}
		sinks = append(sinks, notify.New(pub, b.cfg.Notify.Subject))
	}

	return sinks, nil
}

func (b *Batch) running(ctx context.Context) error {
	b.report = b.runner.Run(ctx, b.refs)
	return nil
}

func (b *Batch) stopping(_ error) error {
	defer b.closeAll()
	ctx := context.Background()

	if err := b.runner.Close(ctx); err != nil {
		_ = level.Warn(b.log).Log("msg", "failed to close sinks", "err", err)
	}

	if b.report == nil {
		return nil
	}

	_ = level.Info(b.audit).Log("msg", "session end", "run_id", b.runID,
		"succeeded", b.report.Succeeded(), "failed", b.report.Failed(),
		"skipped", b.report.Skipped(), "interrupted", b.report.Interrupted)

	if err := pipeline.WriteManifest(b.cfg.ManifestPath, b.report); err != nil {
		return err
	}
	_ = level.Info(b.log).Log("msg", "manifest written", "file", b.cfg.ManifestPath)

	if b.cfg.MetricsPath != "" {
		g, ok := b.reg.(prometheus.Gatherer)
		if !ok {
			return errors.New("metrics registerer can not be gathered")
		}
		if err := prometheus.WriteToTextfile(b.cfg.MetricsPath, g); err != nil {
			return errors.Wrap(err, "write metrics")
		}
	}

	return nil
}

// fatal records a setup failure in the audit log. The run does not start.
func (b *Batch) fatal(err error) error {
	_ = level.Error(b.audit).Log("msg", "session aborted", "run_id", b.runID, "err", err)
	return err
}

func (b *Batch) closeAll() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			_ = level.Warn(b.log).Log("msg", "failed to close file", "err", err)
		}
	}
	b.closers = nil
}
