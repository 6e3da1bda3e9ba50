package eadpipe

import (
	"flag"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/ValerySidorin/eadpipe/pkg/archive"
	"github.com/ValerySidorin/eadpipe/pkg/aspace"
	"github.com/ValerySidorin/eadpipe/pkg/fetch"
	"github.com/ValerySidorin/eadpipe/pkg/ledger"
	"github.com/ValerySidorin/eadpipe/pkg/notify"
	"github.com/ValerySidorin/eadpipe/pkg/transform"
	util_log "github.com/ValerySidorin/eadpipe/pkg/util/log"
	"github.com/ValerySidorin/eadpipe/pkg/validate"
)

type Config struct {
	Target       string `yaml:"target"`
	RunID        string `yaml:"run_id"`
	InputCSV     string `yaml:"input_csv"`
	ManifestPath string `yaml:"manifest_path"`
	MetricsPath  string `yaml:"metrics_path"`

	Log        util_log.Config  `yaml:"log"`
	ASpace     aspace.Config    `yaml:"aspace"`
	Transform  transform.Config `yaml:"transform"`
	Validation validate.Config  `yaml:"validate"`
	Fetch      fetch.Config     `yaml:"fetch"`
	Ledger     ledger.Config    `yaml:"ledger"`
	Archive    archive.Config   `yaml:"archive"`
	Notify     notify.Config    `yaml:"notify"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&c.Target, "target", Pipeline, `Module to run: pipeline or report.`)
	f.StringVar(&c.RunID, "run-id", "", `Run id. Generated for pipeline runs, when empty. For report, selects the run; empty means the latest.`)
	f.StringVar(&c.InputCSV, "input.csv", "", `CSV file with repo_id and resource_id columns.`)
	f.StringVar(&c.ManifestPath, "manifest.path", "manifest.yaml", `File, where the run manifest is written.`)
	f.StringVar(&c.MetricsPath, "metrics.path", "", `File, where run metrics are written in Prometheus text format. Empty disables it.`)

	c.Log.RegisterFlags(f)
	c.ASpace.RegisterFlags("aspace.", f)
	c.Transform.RegisterFlags("transform.", f)
	c.Validation.RegisterFlags("validate.", f)
	c.Fetch.RegisterFlags("fetch.", f)
	c.Ledger.RegisterFlags("ledger.", f)
	c.Archive.RegisterFlags("archive.", f)
	c.Notify.RegisterFlags("notify.", f)
}

func (c *Config) Validate() error {
	switch c.Target {
	case Pipeline:
		return c.validatePipeline()
	case Report:
		if !c.Ledger.Enabled() && c.ManifestPath == "" {
			return errors.New("report requires a ledger store or a manifest path")
		}
		return c.validateLedger()
	default:
		return errors.Errorf("unknown target %q", c.Target)
	}
}

func (c *Config) validatePipeline() error {
	if c.InputCSV == "" {
		return errors.New("input csv is required")
	}
	if c.Log.AuditFile == "" {
		return errors.New("audit file is required")
	}
	if err := c.ASpace.Validate(); err != nil {
		return err
	}
	if err := c.Transform.Validate(); err != nil {
		return err
	}
	if err := c.Validation.Validate(); err != nil {
		return err
	}
	if c.Transform.ErrorsFile == "" {
		return errors.New("transform errors file is required")
	}
	if c.Transform.ErrorsFile == c.Log.AuditFile {
		return errors.New("transform errors file and audit file must differ")
	}
	if c.Archive.Enabled() && c.Archive.Bucket == "" {
		return errors.New("archive bucket is required")
	}
	if c.Notify.Enabled() && c.Notify.Subject == "" {
		return errors.New("notify subject is required")
	}
	return c.validateLedger()
}

func (c *Config) validateLedger() error {
	if c.Ledger.Store == ledger.StorePg && c.Ledger.Pg.Conn == "" {
		return errors.New("ledger pg conn is required")
	}
	return nil
}

// LoadConfig reads a yaml file over cfg. Keys missing from the file keep
// the values cfg already holds.
func LoadConfig(path string, cfg *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}

	if err := yaml.UnmarshalStrict(buf, cfg); err != nil {
		return errors.Wrap(err, "parse config file")
	}
	return nil
}
