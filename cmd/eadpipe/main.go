package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/ValerySidorin/eadpipe/pkg/eadpipe"
	util_log "github.com/ValerySidorin/eadpipe/pkg/util/log"
)

const configFileOption = "config.file"

func main() {
	cfg, err := loadConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := util_log.NewLogger(cfg.Log, os.Stderr)
	util_log.CheckFatal(logger, "validating config", cfg.Validate())

	e, err := eadpipe.New(*cfg, logger)
	util_log.CheckFatal(logger, "initializing eadpipe", err)

	ok, err := e.Run(context.Background())
	util_log.CheckFatal(logger, "running eadpipe", err)

	if !ok {
		os.Exit(1)
	}
}

// loadConfig applies flag defaults, then the config file named by
// -config.file, then the command-line flags.
func loadConfig(fs *flag.FlagSet, args []string) (*eadpipe.Config, error) {
	var (
		cfg        eadpipe.Config
		configFile string
	)

	cfg.RegisterFlags(fs)
	fs.StringVar(&configFile, configFileOption, "", `YAML configuration file.`)

	if path := parseConfigFileParameter(args); path != "" {
		if err := eadpipe.LoadConfig(path, &cfg); err != nil {
			return nil, errors.Wrapf(err, "load config from %s", path)
		}
	}

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "parse flags")
	}
	return &cfg, nil
}

// parseConfigFileParameter finds -config.file before the real flag set is
// parsed, skipping over any arguments it does not know.
func parseConfigFileParameter(args []string) (configFile string) {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configFile, configFileOption, "", "")

	for len(args) > 0 {
		_ = fs.Parse(args)
		args = args[1:]
	}

	return
}
