package aspace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/grafana/dskit/flagext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url, workDir string) Config {
	return Config{
		URL:      url,
		Username: "admin",
		Password: flagext.SecretWithValue("secret"),
		WorkDir:  workDir,
		EAD3:     true,
		Timeout:  5 * time.Second,
		RetryMax: 0,
	}
}

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/users/admin/login", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("password"))
		assert.Equal(t, "false", r.URL.Query().Get("expiring"))
		_, _ = w.Write([]byte(`{"session":"tok-123","user":{}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL+"/api/", t.TempDir()), log.NewNopLogger())
	sess, err := c.Authenticate(context.Background(), "admin", "secret")
	require.NoError(t, err)

	assert.Equal(t, "tok-123", sess.Token)
	assert.Equal(t, srv.URL+"/api", sess.BaseURL)
}

func TestAuthenticateRejected(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL, t.TempDir())
	cfg.RetryMax = 3
	c := NewClient(cfg, log.NewNopLogger())

	sess, err := c.Authenticate(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, 1, calls, "login is never retried")

	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
}

func TestAuthenticateTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(testConfig(url, t.TempDir()), log.NewNopLogger())
	_, err := c.Authenticate(context.Background(), "admin", "secret")

	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, 0, authErr.StatusCode)
}

func TestAuthenticateWithoutToken(t *testing.T) {
	for _, body := range []string{`{}`, `not json`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		c := NewClient(testConfig(srv.URL, t.TempDir()), log.NewNopLogger())
		_, err := c.Authenticate(context.Background(), "admin", "secret")

		var authErr *AuthenticationError
		assert.True(t, errors.As(err, &authErr), body)
		srv.Close()
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := testConfig("http://localhost:8089", "ead")
	assert.NoError(t, cfg.Validate())

	noURL := cfg
	noURL.URL = ""
	assert.Error(t, noURL.Validate())

	badURL := cfg
	badURL.URL = "not a url"
	assert.Error(t, badURL.Validate())

	noUser := cfg
	noUser.Username = ""
	assert.Error(t, noUser.Validate())

	noDir := cfg
	noDir.WorkDir = ""
	assert.Error(t, noDir.Validate())
}
