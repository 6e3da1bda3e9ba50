package aspace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/ValerySidorin/eadpipe/pkg/record"
	util_http "github.com/ValerySidorin/eadpipe/pkg/util/http"
)

type Exporter struct {
	client  *Client
	session *Session
	workDir string
	ead3    bool
	log     log.Logger
}

func NewExporter(client *Client, session *Session, logger log.Logger) (*Exporter, error) {
	if session == nil {
		return nil, errors.New("exporter requires a session")
	}
	if err := os.MkdirAll(client.cfg.WorkDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create work dir")
	}

	return &Exporter{
		client:  client,
		session: session,
		workDir: client.cfg.WorkDir,
		ead3:    client.cfg.EAD3,
		log:     log.With(logger, "component", "exporter"),
	}, nil
}

// Path is where the export of resourceID lands.
func (e *Exporter) Path(resourceID string) string {
	return filepath.Join(e.workDir, strings.TrimSpace(resourceID)+".xml")
}

// Export streams the resource description to {work_dir}/{resource_id}.xml.
// The destination is replaced as a whole, so exporting the same resource
// twice yields the same bytes for an unchanged remote.
func (e *Exporter) Export(ctx context.Context, ref record.Reference) (string, error) {
	resourceID := strings.TrimSpace(ref.ResourceID)
	if err := checkResourceID(resourceID); err != nil {
		return "", &ExportError{ResourceID: ref.ResourceID, Err: err}
	}

	u := fmt.Sprintf("%s/repositories/%s/resource_descriptions/%s.xml?include_unpublished=true",
		e.session.BaseURL, url.PathEscape(strings.TrimSpace(ref.RepositoryID)), url.PathEscape(resourceID))
	if e.ead3 {
		u += "&ead3=true"
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", &ExportError{ResourceID: resourceID, Err: errors.Wrap(err, "create export request")}
	}
	req.Header.Set(SessionHeader, e.session.Token)

	resp, err := e.client.httpClient.Do(req)
	if err != nil {
		return "", &ExportError{ResourceID: resourceID, Err: errors.Wrap(err, "export request")}
	}
	defer resp.Body.Close()

	if err := util_http.EnsureSuccessStatusCode(resp); err != nil {
		return "", &ExportError{ResourceID: resourceID, StatusCode: resp.StatusCode, Err: err}
	}

	path := e.Path(resourceID)
	n, err := replaceFile(path, resp.Body)
	if err != nil {
		return "", &ExportError{ResourceID: resourceID, Err: err}
	}

	_ = level.Debug(e.log).Log("msg", "export written", "resource", resourceID, "file", path, "bytes", n)

	return path, nil
}

func checkResourceID(id string) error {
	if id == "" {
		return errors.New("empty resource id")
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return errors.Errorf("resource id %q can not be used as a file name", id)
	}
	return nil
}

// replaceFile writes r to a sibling temp file and renames it over path.
// A failed write never leaves a partial file at path.
func replaceFile(path string, r io.Reader) (n int64, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, errors.Wrap(err, "create temp file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if n, err = io.Copy(tmp, r); err != nil {
		return n, errors.Wrap(err, "write export")
	}
	if err = tmp.Chmod(0o644); err != nil {
		return n, errors.Wrap(err, "chmod export")
	}
	if err = tmp.Close(); err != nil {
		return n, errors.Wrap(err, "close export")
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return n, errors.Wrap(err, "rename export")
	}

	return n, nil
}
