package eadpipe

import (
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/services"
)

const (
	Pipeline = "pipeline"
	Report   = "report"
)

func (e *EADPipe) initBatch() (services.Service, error) {
	e.Batch = NewBatch(e.Cfg, e.RunID, e.Registry, e.Logger)
	return e.Batch, nil
}

func (e *EADPipe) initReporter() (services.Service, error) {
	cfg := e.Cfg
	cfg.RunID = e.RunID
	e.Reporter = NewReporter(cfg, e.Out, e.Logger)
	return e.Reporter, nil
}

func (e *EADPipe) setupModuleManager() error {
	mm := modules.NewManager(e.Logger)

	mm.RegisterModule(Pipeline, e.initBatch)
	mm.RegisterModule(Report, e.initReporter)

	e.ModuleManager = mm
	return nil
}
