package transform

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFlags(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags("transform.", fs)

	assert.Equal(t, DefaultCommand, cfg.Command)
	assert.Equal(t, "_out", cfg.Suffix)
	assert.True(t, cfg.StrictDiagnostics)

	require.NoError(t, fs.Parse([]string{
		"-transform.stylesheet=ead.xsl",
		"-transform.command=xsltproc -o {output} {stylesheet} {source}",
	}))
	assert.Equal(t, Argv{"xsltproc", "-o", "{output}", "{stylesheet}", "{source}"}, cfg.Command)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Stylesheet: "ead.xsl",
		SaxonPath:  "saxon.jar",
		Command:    DefaultCommand,
		Suffix:     "_out",
	}
	assert.NoError(t, valid.Validate())

	noStylesheet := valid
	noStylesheet.Stylesheet = ""
	assert.Error(t, noStylesheet.Validate())

	noSuffix := valid
	noSuffix.Suffix = ""
	assert.Error(t, noSuffix.Validate())

	noCommand := valid
	noCommand.Command = nil
	assert.Error(t, noCommand.Validate())

	noClasspath := valid
	noClasspath.SaxonPath = ""
	assert.Error(t, noClasspath.Validate())

	noClasspath.Command = Argv{"xsltproc", "{stylesheet}", "{source}"}
	assert.NoError(t, noClasspath.Validate())
}
