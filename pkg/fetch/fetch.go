package fetch

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

type Config struct {
	CacheDir   string `yaml:"cache_dir"`
	BufferSize int    `yaml:"buffer_size"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.CacheDir, flagPrefix+"cache-dir", ".eadpipe-cache", `Directory, where remote stylesheets and schemas are downloaded.`)
	f.IntVar(&c.BufferSize, flagPrefix+"buffer-size", 32*1024, `Download buffer size in bytes.`)
}

// Fetcher turns artifact locations into local file paths.
type Fetcher struct {
	grabClient *grab.Client
	cfg        Config
	log        log.Logger
}

func New(cfg Config, logger log.Logger) *Fetcher {
	c := grab.NewClient()
	if cfg.BufferSize > 0 {
		c.BufferSize = cfg.BufferSize
	}

	return &Fetcher{
		grabClient: c,
		cfg:        cfg,
		log:        log.With(logger, "component", "fetcher"),
	}
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Resolve returns a local path for location. Local paths must exist and
// are returned as is. Remote URLs are downloaded into the cache dir,
// replacing any earlier download.
func (f *Fetcher) Resolve(ctx context.Context, location string) (string, error) {
	if !IsRemote(location) {
		if _, err := os.Stat(location); err != nil {
			return "", errors.Wrapf(err, "artifact %s", location)
		}
		return location, nil
	}

	u, _ := url.Parse(location)
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", errors.Errorf("can not derive file name from %s", location)
	}

	dst := filepath.Join(f.cfg.CacheDir, name)
	if err := os.MkdirAll(f.cfg.CacheDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create cache dir")
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", errors.Wrap(err, "remove previous download")
	}

	if err := f.download(ctx, dst, location); err != nil {
		return "", err
	}
	return dst, nil
}

func (f *Fetcher) download(ctx context.Context, dst, location string) error {
	_ = level.Info(f.log).Log("msg", fmt.Sprintf("start downloading file: %s", location))

	req, err := grab.NewRequest(dst, location)
	if err != nil {
		return errors.Wrap(err, "fetcher create request")
	}
	req.NoResume = true
	req = req.WithContext(ctx)

	t := time.NewTicker(1 * time.Second)
	defer t.Stop()

	resp := f.grabClient.Do(req)

Loop:
	for {
		select {
		case <-t.C:
			_ = level.Debug(f.log).Log("msg", fmt.Sprintf("transferred %d / %d bytes (%.2f%%)",
				resp.BytesComplete(),
				resp.Size(),
				100*resp.Progress()))
		case <-resp.Done:
			break Loop
		}
	}

	if err := resp.Err(); err != nil {
		return errors.Wrapf(err, "download %s", location)
	}

	_ = level.Info(f.log).Log("msg", "downloaded", "file", dst, "bytes", resp.BytesComplete())
	return nil
}
