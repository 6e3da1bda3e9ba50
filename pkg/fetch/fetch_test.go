package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRemote(t *testing.T) {
	tests := map[string]bool{
		"https://example.org/ead.xsl": true,
		"http://localhost:8080/x.xsd": true,
		"ead.xsl":                     false,
		"/opt/ead/ead3.xsd":           false,
		"file:///opt/ead.xsd":         false,
		"http://":                     false,
	}

	for location, want := range tests {
		assert.Equal(t, want, IsRemote(location), location)
	}
}

func TestResolveLocal(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "ead.xsl")
	require.NoError(t, os.WriteFile(local, []byte("<xsl/>"), 0o644))

	f := New(Config{CacheDir: filepath.Join(dir, "cache")}, log.NewNopLogger())

	got, err := f.Resolve(context.Background(), local)
	require.NoError(t, err)
	assert.Equal(t, local, got)

	_, err = f.Resolve(context.Background(), filepath.Join(dir, "missing.xsl"))
	assert.Error(t, err)
}

func TestResolveRemote(t *testing.T) {
	body := "<xsl:stylesheet/>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	cacheDir := filepath.Join(t.TempDir(), "cache")
	f := New(Config{CacheDir: cacheDir}, log.NewNopLogger())

	got, err := f.Resolve(context.Background(), srv.URL+"/styles/ead.xsl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheDir, "ead.xsl"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))

	body = "<v2/>"
	got, err = f.Resolve(context.Background(), srv.URL+"/styles/ead.xsl")
	require.NoError(t, err)
	data, err = os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "<v2/>", string(data))
}

func TestResolveRemoteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := New(Config{CacheDir: t.TempDir()}, log.NewNopLogger())
	_, err := f.Resolve(context.Background(), srv.URL+"/ead.xsd")
	assert.Error(t, err)
}

func TestResolveRemoteWithoutFileName(t *testing.T) {
	f := New(Config{CacheDir: t.TempDir()}, log.NewNopLogger())
	_, err := f.Resolve(context.Background(), "http://example.org/")
	assert.Error(t, err)
}
