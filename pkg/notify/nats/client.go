package nats

import (
	"flag"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

type Config struct {
	Url string `yaml:"url"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Url, flagPrefix+"nats.url", nats.DefaultURL, `NATS server URL.`)
}

type NatsClient struct {
	conn *nats.Conn
	log  log.Logger
}

func NewNatsClient(cfg Config, logger log.Logger) (*NatsClient, error) {
	conn, err := nats.Connect(cfg.Url, nats.Name("eadpipe"))
	if err != nil {
		return nil, errors.Wrap(err, "initialize nats connection")
	}

	return &NatsClient{
		conn: conn,
		log:  log.With(logger, "queue", "nats"),
	}, nil
}

func (n *NatsClient) Publish(channel string, msg string) error {
	if err := n.conn.Publish(channel, []byte(msg)); err != nil {
		return errors.Wrap(err, "nats publish")
	}

	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NatsClient) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return errors.Wrap(err, "nats drain")
	}

	_ = level.Debug(n.log).Log("msg", "connection drained")
	return nil
}
