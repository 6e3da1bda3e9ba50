package eadpipe

import (
	"context"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/weaveworks/common/logging"
	"github.com/weaveworks/common/signals"
)

type EADPipe struct {
	Cfg      Config
	RunID    string
	Registry *prometheus.Registry
	Logger   log.Logger
	Out      io.Writer

	// set during initialization
	ServiceMap    map[string]services.Service
	ModuleManager *modules.Manager

	Batch    *Batch
	Reporter *Reporter
}

func New(cfg Config, logger log.Logger) (*EADPipe, error) {
	runID := cfg.RunID
	if runID == "" && cfg.Target == Pipeline {
		runID = uuid.NewString()
	}

	e := &EADPipe{
		Cfg:      cfg,
		RunID:    runID,
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
		Out:      os.Stdout,
	}

	if err := e.setupModuleManager(); err != nil {
		return nil, errors.Wrap(err, "setup module manager")
	}
	return e, nil
}

// Run starts the target module and blocks until it stops on its own or
// on SIGINT/SIGTERM. ok is false when any record failed or the run was
// interrupted.
func (e *EADPipe) Run(ctx context.Context) (ok bool, err error) {
	serviceMap, err := e.ModuleManager.InitModuleServices(e.Cfg.Target)
	if err != nil {
		return false, errors.Wrap(err, "init module services")
	}
	e.ServiceMap = serviceMap

	sm, err := services.NewManager(lo.Values(serviceMap)...)
	if err != nil {
		return false, errors.Wrap(err, "init service manager")
	}

	handler := signals.NewHandler(logging.GoKit(e.Logger), &stopper{e: e, sm: sm})
	go handler.Loop()
	defer handler.Stop()

	if err := sm.StartAsync(ctx); err != nil {
		return false, errors.Wrap(err, "start services")
	}
	if err := sm.AwaitStopped(ctx); err != nil {
		return false, errors.Wrap(err, "await services")
	}

	if err := e.failureCase(sm); err != nil {
		return false, err
	}

	return e.ok(), nil
}

// failureCase prefers the error of the target itself over the module
// wrapper around it.
func (e *EADPipe) failureCase(sm *services.Manager) error {
	switch {
	case e.Batch != nil && e.Batch.State() == services.Failed:
		return e.Batch.FailureCase()
	case e.Reporter != nil && e.Reporter.State() == services.Failed:
		return e.Reporter.FailureCase()
	}

	if failed := sm.ServicesByState()[services.Failed]; len(failed) > 0 {
		return failed[0].FailureCase()
	}
	return nil
}

func (e *EADPipe) ok() bool {
	switch {
	case e.Batch != nil:
		report := e.Batch.Report()
		return report != nil && report.OK()
	case e.Reporter != nil:
		s := e.Reporter.Summary()
		return s != nil && s.OK()
	}
	return false
}

type stopper struct {
	e  *EADPipe
	sm *services.Manager
}

func (s *stopper) Stop() error {
	if s.e.Batch != nil {
		processed, failed, total := s.e.Batch.Progress()
		_ = level.Warn(s.e.Logger).Log("msg", "stopping batch", "processed", processed, "failed", failed, "total", total)
	}
	s.sm.StopAsync()
	return nil
}
