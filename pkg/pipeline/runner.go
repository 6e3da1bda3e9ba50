package pipeline

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/ValerySidorin/eadpipe/pkg/record"
	"github.com/ValerySidorin/eadpipe/pkg/validate"
)

type Exporter interface {
	Export(ctx context.Context, ref record.Reference) (string, error)
}

type Transformer interface {
	Transform(ctx context.Context, source string) (string, error)
}

type Validator interface {
	Validate(path string) validate.Outcome
}

// Sink receives every finished record. Sink errors are logged and never
// change the record's status.
type Sink interface {
	Record(ctx context.Context, runID string, res *record.Result) error
	Close(ctx context.Context) error
}

// RunSink is a Sink that also keeps the totals of every finished run,
// interrupted ones included.
type RunSink interface {
	Sink
	Finish(ctx context.Context, report *Report) error
}

// Runner drives export, transform and validate for each reference in
// order. A failing record never stops the batch.
type Runner struct {
	runID string

	exporter    Exporter
	transformer Transformer
	validator   Validator
	sinks       []Sink

	metrics   *metrics
	processed *atomic.Int64
	failed    *atomic.Int64

	log   log.Logger
	audit log.Logger
}

func NewRunner(runID string, e Exporter, t Transformer, v Validator, sinks []Sink,
	reg prometheus.Registerer, logger, audit log.Logger) *Runner {
	return &Runner{
		runID:       runID,
		exporter:    e,
		transformer: t,
		validator:   v,
		sinks:       sinks,
		metrics:     newMetrics(reg),
		processed:   atomic.NewInt64(0),
		failed:      atomic.NewInt64(0),
		log:         log.With(logger, "component", "runner", "run_id", runID),
		audit:       log.With(audit, "component", "runner", "run_id", runID),
	}
}

// Progress returns how many records were processed so far and how many of
// them failed. Safe to call from other goroutines.
func (r *Runner) Progress() (processed, failed int64) {
	return r.processed.Load(), r.failed.Load()
}

// Run processes refs sequentially. Cancelling ctx stops the batch before
// the next record and marks the report interrupted; the in-flight record
// still gets a result.
func (r *Runner) Run(ctx context.Context, refs []record.Reference) *Report {
	report := &Report{
		RunID:     r.runID,
		StartedAt: time.Now(),
		Total:     len(refs),
		Results:   make([]*record.Result, 0, len(refs)),
	}

	_ = level.Info(r.log).Log("msg", "starting batch", "records", len(refs))

	for i, ref := range refs {
		if ctx.Err() != nil {
			break
		}

		res := r.process(ctx, i+1, ref)
		report.Results = append(report.Results, res)

		r.processed.Inc()
		if !res.Succeeded() {
			r.failed.Inc()
		}
		r.metrics.records.WithLabelValues(string(res.Status)).Inc()

		_ = level.Info(r.log).Log("msg", "record processed", "seq", res.Seq, "total", len(refs),
			"record", res.Ref, "status", res.Status, "duration", res.Duration)

		r.emit(context.WithoutCancel(ctx), res)
	}

	report.Interrupted = ctx.Err() != nil
	report.FinishedAt = time.Now()

	if report.Interrupted {
		_ = level.Warn(r.log).Log("msg", "batch interrupted", "processed", len(report.Results), "total", report.Total)
	}
	_ = level.Info(r.log).Log("msg", "batch finished", "succeeded", report.Succeeded(), "failed", report.Failed())

	r.finish(context.WithoutCancel(ctx), report)
	return report
}

// Close closes every sink. It returns the first error.
func (r *Runner) Close(ctx context.Context) error {
	var first error
	for _, s := range r.sinks {
		if err := s.Close(ctx); err != nil {
			_ = level.Error(r.log).Log("msg", "failed to close sink", "err", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (r *Runner) process(ctx context.Context, seq int, ref record.Reference) *record.Result {
	start := time.Now()
	res := &record.Result{Seq: seq, Ref: ref, Stage: record.StageExport}
	defer func() {
		res.Duration = time.Since(start)
	}()

	stageStart := time.Now()
	exportPath, err := r.exporter.Export(ctx, ref)
	r.metrics.observe(record.StageExport, stageStart)
	if err != nil {
		res.Status = record.EXPORT_FAILED
		res.Err = err
		r.auditFailure(res)
		return res
	}
	res.ExportPath = exportPath

	res.Stage = record.StageTransform
	stageStart = time.Now()
	outputPath, err := r.transformer.Transform(ctx, exportPath)
	r.metrics.observe(record.StageTransform, stageStart)
	if err != nil {
		res.Status = record.TRANSFORM_FAILED
		res.Err = err
		r.auditFailure(res)
		return res
	}
	res.OutputPath = outputPath

	res.Stage = record.StageValidate
	stageStart = time.Now()
	out := r.validator.Validate(outputPath)
	r.metrics.observe(record.StageValidate, stageStart)
	res.Outcome = &out
	res.Status = record.StatusFromOutcome(out)

	return res
}

// auditFailure writes the single audit entry of a failed export or
// transform. Validation outcomes are audited by the validator itself.
func (r *Runner) auditFailure(res *record.Result) {
	_ = level.Error(r.audit).Log(
		"msg", "stage failed",
		"status", res.Status,
		"stage", res.Stage,
		"repo_id", res.Ref.RepositoryID,
		"resource_id", res.Ref.ResourceID,
		"file", res.FilePath(),
		"err", res.Err,
	)
}

func (r *Runner) emit(ctx context.Context, res *record.Result) {
	for _, s := range r.sinks {
		if err := s.Record(ctx, r.runID, res); err != nil {
			_ = level.Warn(r.log).Log("msg", "sink failed", "record", res.Ref, "err", err)
		}
	}
}

func (r *Runner) finish(ctx context.Context, report *Report) {
	for _, s := range r.sinks {
		rs, ok := s.(RunSink)
		if !ok {
			continue
		}
		if err := rs.Finish(ctx, report); err != nil {
			_ = level.Warn(r.log).Log("msg", "sink failed to finish run", "err", err)
		}
	}
}
