package validate

import (
	"flag"

	"github.com/pkg/errors"
)

type Config struct {
	Schema string `yaml:"schema"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Schema, flagPrefix+"schema", "", `XML Schema path or http(s) URL, that transformed files are validated against.`)
}

func (c *Config) Validate() error {
	if c.Schema == "" {
		return errors.New("validate schema is required")
	}
	return nil
}
