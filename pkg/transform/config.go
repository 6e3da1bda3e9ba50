package transform

import (
	"flag"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	SourcePlaceholder     = "{source}"
	StylesheetPlaceholder = "{stylesheet}"
	OutputPlaceholder     = "{output}"
	ClasspathPlaceholder  = "{classpath}"
)

// DefaultCommand runs Saxon HE from the jar at {classpath}.
var DefaultCommand = Argv{
	"java", "-cp", ClasspathPlaceholder, "net.sf.saxon.Transform",
	"-s:" + SourcePlaceholder,
	"-xsl:" + StylesheetPlaceholder,
	"-o:" + OutputPlaceholder,
}

// Argv is an engine command line. As a flag it is split on whitespace,
// in yaml it is a list.
type Argv []string

func (a *Argv) String() string {
	if a == nil {
		return ""
	}
	return strings.Join(*a, " ")
}

func (a *Argv) Set(s string) error {
	*a = strings.Fields(s)
	return nil
}

type Config struct {
	Stylesheet        string        `yaml:"stylesheet"`
	SaxonPath         string        `yaml:"saxon_path"`
	Command           Argv          `yaml:"command"`
	Suffix            string        `yaml:"suffix"`
	ErrorsFile        string        `yaml:"errors_file"`
	Timeout           time.Duration `yaml:"timeout"`
	StrictDiagnostics bool          `yaml:"strict_diagnostics"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	c.Command = append(Argv(nil), DefaultCommand...)

	f.StringVar(&c.Stylesheet, flagPrefix+"stylesheet", "", `XSLT stylesheet path or http(s) URL.`)
	f.StringVar(&c.SaxonPath, flagPrefix+"saxon-path", "saxon-he.jar", `Saxon jar, substituted for {classpath} in the engine command.`)
	f.Var(&c.Command, flagPrefix+"command", `Engine command line. Placeholders: {source}, {stylesheet}, {output}, {classpath}.`)
	f.StringVar(&c.Suffix, flagPrefix+"suffix", "_out", `Suffix appended to the export file name to build the output file name.`)
	f.StringVar(&c.ErrorsFile, flagPrefix+"errors-file", "transformation_errors.log", `File, where engine output is appended.`)
	f.DurationVar(&c.Timeout, flagPrefix+"timeout", 5*time.Minute, `Timeout of a single engine run. 0 disables it.`)
	f.BoolVar(&c.StrictDiagnostics, flagPrefix+"strict-diagnostics", true, `Fail a transform, when the engine writes anything to stderr.`)
}

func (c *Config) Validate() error {
	if c.Stylesheet == "" {
		return errors.New("transform stylesheet is required")
	}
	if c.Suffix == "" {
		return errors.New("transform suffix can not be empty")
	}
	if len(c.Command) == 0 {
		return errors.New("transform command can not be empty")
	}
	usesClasspath := lo.SomeBy(c.Command, func(arg string) bool {
		return strings.Contains(arg, ClasspathPlaceholder)
	})
	if usesClasspath && c.SaxonPath == "" {
		return errors.New("transform saxon path is required by the engine command")
	}
	return nil
}
