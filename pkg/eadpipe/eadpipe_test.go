package eadpipe

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/grafana/dskit/flagext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ValerySidorin/eadpipe/pkg/aspace"
	"github.com/ValerySidorin/eadpipe/pkg/pipeline"
	"github.com/ValerySidorin/eadpipe/pkg/record"
	"github.com/ValerySidorin/eadpipe/pkg/transform"
)

const testSchema = `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="ead">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="eadheader" type="xs:string"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`

func fakeArchivesSpace(t *testing.T, password string, docs map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/users/admin/login":
			if r.URL.Query().Get("password") != password {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			_, _ = w.Write([]byte(`{"session":"tok"}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/repositories/"):
			if r.Header.Get(aspace.SessionHeader) != "tok" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			doc, ok := docs[strings.TrimSuffix(filepath.Base(r.URL.Path), ".xml")]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(doc))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func pipelineConfig(t *testing.T, apiURL, csv string) Config {
	t.Helper()
	dir := t.TempDir()
	cfg, _ := defaultConfig(t)

	cfg.InputCSV = writeFile(t, filepath.Join(dir, "resources.csv"), csv)
	cfg.ManifestPath = filepath.Join(dir, "out", "manifest.yaml")
	cfg.MetricsPath = filepath.Join(dir, "out", "metrics.prom")
	cfg.Log.AuditFile = filepath.Join(dir, "validation_errors.log")

	cfg.ASpace.URL = apiURL
	cfg.ASpace.Username = "admin"
	cfg.ASpace.Password = flagext.SecretWithValue("admin")
	cfg.ASpace.WorkDir = filepath.Join(dir, "ead")
	cfg.ASpace.RetryMax = 0

	cfg.Transform.Stylesheet = writeFile(t, filepath.Join(dir, "ead.xsl"), "<xsl:stylesheet/>")
	cfg.Transform.Command = transform.Argv{"sh", "-c", `cp "$1" "$2"`, "engine", transform.SourcePlaceholder, transform.OutputPlaceholder}
	cfg.Transform.ErrorsFile = filepath.Join(dir, "transformation_errors.log")

	cfg.Validation.Schema = writeFile(t, filepath.Join(dir, "ead.xsd"), testSchema)
	cfg.Fetch.CacheDir = filepath.Join(dir, "cache")

	require.NoError(t, cfg.Validate())
	return *cfg
}

func TestRunPipeline(t *testing.T) {
	srv := fakeArchivesSpace(t, "admin", map[string]string{
		"abc123": `<ead><eadheader>Papers</eadheader></ead>`,
	})
	cfg := pipelineConfig(t, srv.URL, "repo_id,resource_id\n2,abc123\n")

	e, err := New(cfg, log.NewNopLogger())
	require.NoError(t, err)
	require.NotEmpty(t, e.RunID)

	ok, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	report := e.Batch.Report()
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, e.RunID, report.RunID)

	m, err := pipeline.ReadManifest(cfg.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, e.RunID, m.RunID)
	assert.True(t, m.OK())
	require.Len(t, m.Records, 1)
	assert.Equal(t, record.VALID, m.Records[0].Status)

	audit, err := os.ReadFile(cfg.Log.AuditFile)
	require.NoError(t, err)
	assert.Contains(t, string(audit), `msg="session start"`)
	assert.Contains(t, string(audit), "api_url="+srv.URL)
	assert.Contains(t, string(audit), "outcome=valid")

	metrics, err := os.ReadFile(cfg.MetricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `eadpipe_records_total{status="VALID"} 1`)
}

func TestBatchProgressWhileRunning(t *testing.T) {
	srv := fakeArchivesSpace(t, "admin", map[string]string{
		"a": `<ead><eadheader>Papers</eadheader></ead>`,
		"b": `<ead><eadheader>Letters</eadheader></ead>`,
	})
	cfg := pipelineConfig(t, srv.URL, "repo_id,resource_id\n2,a\n2,b\n")
	ctx := context.Background()

	b := NewBatch(cfg, "run-1", prometheus.NewRegistry(), log.NewNopLogger())

	processed, failed, total := b.Progress()
	assert.Equal(t, int64(0), processed)
	assert.Equal(t, int64(0), failed)
	assert.Equal(t, 0, total)

	// Polls the way the signal handler does, from another goroutine.
	done := make(chan struct{})
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		for {
			select {
			case <-done:
				return
			default:
				b.Progress()
			}
		}
	}()

	require.NoError(t, b.StartAsync(ctx))
	require.NoError(t, b.AwaitTerminated(ctx))
	close(done)
	<-polled

	processed, failed, total = b.Progress()
	assert.Equal(t, int64(2), processed)
	assert.Equal(t, int64(0), failed)
	assert.Equal(t, 2, total)
	assert.True(t, b.Report().OK())
}

func TestRunPipelineWithFailures(t *testing.T) {
	srv := fakeArchivesSpace(t, "admin", map[string]string{
		"good":    `<ead><eadheader>Papers</eadheader></ead>`,
		"invalid": `<ead><unittitle>Papers</unittitle></ead>`,
	})
	cfg := pipelineConfig(t, srv.URL, "repo_id,resource_id\n2,good\n2,missing\n2,invalid\n")

	e, err := New(cfg, log.NewNopLogger())
	require.NoError(t, err)

	ok, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	report := e.Batch.Report()
	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, 2, report.Failed())
	assert.Equal(t, map[record.Status]int{
		record.VALID:          1,
		record.EXPORT_FAILED:  1,
		record.SCHEMA_INVALID: 1,
	}, report.CountByStatus())
}

func TestRunPipelineAuthenticationFailure(t *testing.T) {
	srv := fakeArchivesSpace(t, "other", nil)
	cfg := pipelineConfig(t, srv.URL, "repo_id,resource_id\n2,abc123\n")

	e, err := New(cfg, log.NewNopLogger())
	require.NoError(t, err)

	ok, err := e.Run(context.Background())
	assert.False(t, ok)

	var authErr *aspace.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)

	_, statErr := os.Stat(cfg.ManifestPath)
	assert.True(t, os.IsNotExist(statErr), "no manifest for a run that never started")

	audit, err := os.ReadFile(cfg.Log.AuditFile)
	require.NoError(t, err)
	assert.Contains(t, string(audit), `msg="session aborted"`)
}

func TestRunPipelineMissingInput(t *testing.T) {
	srv := fakeArchivesSpace(t, "admin", nil)
	cfg := pipelineConfig(t, srv.URL, "repo_id,resource_id\n")
	cfg.InputCSV = filepath.Join(t.TempDir(), "missing.csv")

	e, err := New(cfg, log.NewNopLogger())
	require.NoError(t, err)

	ok, err := e.Run(context.Background())
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestRunReportFromManifest(t *testing.T) {
	srv := fakeArchivesSpace(t, "admin", map[string]string{
		"good": `<ead><eadheader>Papers</eadheader></ead>`,
	})
	cfg := pipelineConfig(t, srv.URL, "repo_id,resource_id\n2,good\n2,missing\n")

	e, err := New(cfg, log.NewNopLogger())
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	require.NoError(t, err)

	reportCfg := cfg
	reportCfg.Target = Report
	reportCfg.RunID = ""
	r, err := New(reportCfg, log.NewNopLogger())
	require.NoError(t, err)
	var out bytes.Buffer
	r.Out = &out

	ok, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	s := r.Reporter.Summary()
	require.NotNil(t, s)
	assert.Equal(t, e.RunID, s.RunID)
	require.Len(t, s.Failed(), 1)
	assert.Equal(t, "missing", s.Failed()[0].ResourceID)

	assert.Contains(t, out.String(), e.RunID)
	assert.Contains(t, out.String(), "EXPORT_FAILED")
	assert.Contains(t, out.String(), "2/missing")
}

func TestRunReportWrongRun(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, pipeline.WriteManifest(manifest, &pipeline.Report{RunID: "run-1"}))

	cfg, _ := defaultConfig(t)
	cfg.Target = Report
	cfg.ManifestPath = manifest
	cfg.RunID = "run-2"

	r, err := New(*cfg, log.NewNopLogger())
	require.NoError(t, err)
	r.Out = &bytes.Buffer{}

	_, err = r.Run(context.Background())
	assert.Error(t, err)
}
