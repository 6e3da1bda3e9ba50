package log

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/weaveworks/common/logging"
)

type Config struct {
	LogFormat logging.Format `yaml:"log_format"`
	LogLevel  logging.Level  `yaml:"log_level"`
	AuditFile string         `yaml:"audit_file"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.LogFormat.RegisterFlags(f)
	c.LogLevel.RegisterFlags(f)

	f.StringVar(&c.AuditFile, "log.audit-file", "validation_errors.log", `File, that receives timestamped per-record outcomes and validation diagnostics. Opened in append mode.`)
}

// NewLogger builds the operator-facing logger. Only progress and stage
// completion should go through it; diagnostics belong to the audit logger.
func NewLogger(cfg Config, w io.Writer) log.Logger {
	l := newBasicLogger(cfg.LogFormat, w)
	l = log.With(l, "caller", log.Caller(5))

	allow := cfg.LogLevel.Gokit
	if allow == nil {
		allow = level.AllowInfo()
	}

	return level.NewFilter(l, allow)
}

// NewAuditLogger builds the durable logger. It is never level-filtered.
func NewAuditLogger(w io.Writer) log.Logger {
	return log.With(log.NewLogfmtLogger(log.NewSyncWriter(w)), "ts", log.DefaultTimestampUTC)
}

// OpenAuditLog opens (or creates) the audit file in append mode, so
// consecutive runs accumulate in one file separated by their session entries.
func OpenAuditLog(path string) (log.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open audit log")
	}

	return NewAuditLogger(f), f, nil
}

func newBasicLogger(format logging.Format, w io.Writer) log.Logger {
	var logger log.Logger
	if format.String() == "json" {
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	} else {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	}

	return log.With(logger, "ts", log.DefaultTimestampUTC)
}

func CheckFatal(logger log.Logger, location string, err error) {
	if err != nil {
		l := level.Error(logger)
		if location != "" {
			l = log.With(l, "msg", "error "+location)
		}

		_ = l.Log("err", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}
