package aspace

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/flagext"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	util_http "github.com/ValerySidorin/eadpipe/pkg/util/http"
)

const (
	SessionHeader = "X-ArchivesSpace-Session"
)

type Config struct {
	URL      string         `yaml:"url"`
	Username string         `yaml:"username"`
	Password flagext.Secret `yaml:"password"`

	WorkDir string `yaml:"work_dir"`
	EAD3    bool   `yaml:"ead3"`

	Timeout  time.Duration `yaml:"timeout"`
	RetryMax int           `yaml:"retry_max"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.URL, flagPrefix+"url", "", `ArchivesSpace API base URL.`)
	f.StringVar(&c.Username, flagPrefix+"username", "", `ArchivesSpace API user.`)
	f.Var(&c.Password, flagPrefix+"password", `ArchivesSpace API password.`)
	f.StringVar(&c.WorkDir, flagPrefix+"work-dir", "ead", `Directory, where exported and transformed files are written.`)
	f.BoolVar(&c.EAD3, flagPrefix+"ead3", true, `Export EAD3 instead of legacy EAD.`)
	f.DurationVar(&c.Timeout, flagPrefix+"timeout", 2*time.Minute, `Timeout of a single API call.`)
	f.IntVar(&c.RetryMax, flagPrefix+"retry-max", 3, `Retries of an export call on transport errors and 5xx responses.`)
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("aspace url is required")
	}
	if _, err := url.ParseRequestURI(c.URL); err != nil {
		return errors.Wrap(err, "aspace url")
	}
	if c.Username == "" {
		return errors.New("aspace username is required")
	}
	if c.WorkDir == "" {
		return errors.New("aspace work dir is required")
	}
	return nil
}

// Session is the authenticated handle shared by every export of a run.
// It is never mutated after Authenticate returns it.
type Session struct {
	BaseURL string
	Token   string
}

type Client struct {
	cfg        Config
	httpClient *retryablehttp.Client
	log        log.Logger
}

func NewClient(cfg Config, logger log.Logger) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = cfg.RetryMax
	c.HTTPClient.Timeout = cfg.Timeout
	c.Logger = nil
	// Hand the last response back after retries so its status is reported.
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		cfg:        cfg,
		httpClient: c,
		log:        log.With(logger, "component", "aspace"),
	}
}

// Authenticate logs in once. Credentials are not retried and the session
// is not refreshed when it expires.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	base := strings.TrimRight(c.cfg.URL, "/")
	q := url.Values{}
	q.Set("password", password)
	q.Set("expiring", "false")
	u := base + "/users/" + url.PathEscape(username) + "/login?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, &AuthenticationError{Err: errors.Wrap(err, "create login request")}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.HTTPClient.Do(req)
	if err != nil {
		return nil, &AuthenticationError{Err: errors.Wrap(err, "login request")}
	}
	defer resp.Body.Close()

	if err := util_http.EnsureSuccessStatusCode(resp); err != nil {
		return nil, &AuthenticationError{StatusCode: resp.StatusCode, Err: err}
	}

	var body struct {
		Session string `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &AuthenticationError{Err: errors.Wrap(err, "decode login response")}
	}
	if body.Session == "" {
		return nil, &AuthenticationError{Err: errors.New("login response carries no session token")}
	}

	_ = level.Debug(c.log).Log("msg", "authenticated", "user", username)

	return &Session{BaseURL: base, Token: body.Session}, nil
}
