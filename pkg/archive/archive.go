package archive

import (
	"context"
	"flag"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/ValerySidorin/eadpipe/pkg/archive/minio"
	"github.com/ValerySidorin/eadpipe/pkg/record"
)

const (
	StoreNone  = ""
	StoreMinio = "minio"
)

type Config struct {
	Store  string       `yaml:"store"`
	Bucket string       `yaml:"bucket"`
	Minio  minio.Config `yaml:"minio"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Store, flagPrefix+"store", StoreNone, `Object storage, where valid transformed files are archived. Supported: minio. Empty disables archiving.`)
	f.StringVar(&c.Bucket, flagPrefix+"bucket", "eadpipe", `Bucket of archived files.`)
	c.Minio.RegisterFlags(flagPrefix, f)
}

func (c *Config) Enabled() bool {
	return c.Store != StoreNone
}

type Writer interface {
	Store(ctx context.Context, objName string, r io.Reader) error
}

func NewWriter(ctx context.Context, cfg Config) (Writer, error) {
	switch cfg.Store {
	case StoreMinio:
		return minio.NewWriter(ctx, cfg.Minio, cfg.Bucket)
	}

	return nil, errors.Errorf("invalid store for archive writer: %q", cfg.Store)
}

// Archiver uploads the output of every valid record as
// {repo_id}/{file name}. Failed records are not archived.
type Archiver struct {
	writer Writer
	log    log.Logger
}

func New(writer Writer, logger log.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		log:    log.With(logger, "component", "archiver"),
	}
}

func ObjectName(res *record.Result) string {
	return path.Join(res.Ref.RepositoryID, filepath.Base(res.OutputPath))
}

func (a *Archiver) Record(ctx context.Context, runID string, res *record.Result) error {
	if !res.Succeeded() {
		return nil
	}

	f, err := os.Open(res.OutputPath)
	if err != nil {
		return errors.Wrap(err, "archive open output")
	}
	defer f.Close()

	objName := ObjectName(res)
	if err := a.writer.Store(ctx, objName, f); err != nil {
		return errors.Wrapf(err, "archive %s", objName)
	}

	_ = level.Debug(a.log).Log("msg", "archived", "object", objName, "run_id", runID)
	return nil
}

func (a *Archiver) Close(context.Context) error {
	return nil
}
