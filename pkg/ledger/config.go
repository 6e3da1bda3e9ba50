package ledger

import (
	"flag"

	"github.com/ValerySidorin/eadpipe/pkg/ledger/pg"
)

const (
	StoreNone = ""
	StorePg   = "pg"
)

type Config struct {
	Store       string `yaml:"store"`
	StoreConfig `yaml:",inline"`
}

type StoreConfig struct {
	Pg pg.Config `yaml:"pg"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	c.Pg.RegisterFlags(flagPrefix, f)

	f.StringVar(&c.Store, flagPrefix+"store", StoreNone, `Store, that will be used to persist record outcomes. Supported: pg. Empty disables the ledger.`)
}

func (c *Config) Enabled() bool {
	return c.Store != StoreNone
}
