package notify

import (
	"context"
	"flag"

	"github.com/go-kit/log"
	"github.com/pkg/errors"

	"github.com/ValerySidorin/eadpipe/pkg/notify/message"
	"github.com/ValerySidorin/eadpipe/pkg/notify/nats"
	"github.com/ValerySidorin/eadpipe/pkg/record"
)

const (
	TypeNone = ""
	TypeNats = "nats"
)

type Config struct {
	Type    string      `yaml:"type"`
	Subject string      `yaml:"subject"`
	Nats    nats.Config `yaml:"nats"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Type, flagPrefix+"type", TypeNone, `Queue, where record outcomes are published. Supported: nats. Empty disables notifications.`)
	f.StringVar(&c.Subject, flagPrefix+"subject", "eadpipe.outcomes", `Subject of outcome messages.`)
	c.Nats.RegisterFlags(flagPrefix, f)
}

func (c *Config) Enabled() bool {
	return c.Type != TypeNone
}

type Publisher interface {
	Publish(channel string, msg string) error
	Close() error
}

func NewPublisher(cfg Config, logger log.Logger) (Publisher, error) {
	switch cfg.Type {
	case TypeNats:
		return nats.NewNatsClient(cfg.Nats, logger)
	default:
		return nil, errors.Errorf("invalid queue type: %q", cfg.Type)
	}
}

// Notifier publishes one message per finished record.
type Notifier struct {
	pub     Publisher
	subject string
}

func New(pub Publisher, subject string) *Notifier {
	return &Notifier{
		pub:     pub,
		subject: subject,
	}
}

func (n *Notifier) Record(_ context.Context, runID string, res *record.Result) error {
	if err := n.pub.Publish(n.subject, message.New(runID, res).String()); err != nil {
		return errors.Wrapf(err, "notify %s", res.Ref)
	}
	return nil
}

func (n *Notifier) Close(context.Context) error {
	return n.pub.Close()
}
