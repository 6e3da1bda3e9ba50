package transform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

const waitDelay = 2 * time.Second

type Transformer struct {
	cfg Config

	mu   sync.Mutex
	errs io.Writer

	log log.Logger
}

// New creates a Transformer. Engine output of every run is appended to errs.
func New(cfg Config, errs io.Writer, logger log.Logger) *Transformer {
	if errs == nil {
		errs = io.Discard
	}
	return &Transformer{
		cfg:  cfg,
		errs: errs,
		log:  log.With(logger, "component", "transformer"),
	}
}

// OpenErrorStream opens the transformation error file for appending.
func OpenErrorStream(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create transformation errors dir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open transformation errors file")
	}
	return f, nil
}

// OutputPath derives the output file name from the source by replacing
// its extension with suffix + ".xml".
func OutputPath(source, suffix string) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + suffix + ".xml"
}

func (t *Transformer) argv(source, output string) []string {
	r := strings.NewReplacer(
		SourcePlaceholder, source,
		StylesheetPlaceholder, t.cfg.Stylesheet,
		OutputPlaceholder, output,
		ClasspathPlaceholder, t.cfg.SaxonPath,
	)
	argv := make([]string, len(t.cfg.Command))
	for i, arg := range t.cfg.Command {
		argv[i] = r.Replace(arg)
	}
	return argv
}

// Transform runs the engine over source and returns the output path. The
// output path is returned only when the engine exited with 0 and wrote a
// non-empty file; in strict mode stderr must also stay empty. On failure
// no output file is left behind.
func (t *Transformer) Transform(ctx context.Context, source string) (string, error) {
	output := OutputPath(source, t.cfg.Suffix)
	if output == source {
		return "", &Error{Source: source, ExitCode: -1, Err: errors.New("output path equals source path")}
	}
	if err := removeStale(output); err != nil {
		return "", &Error{Source: source, ExitCode: -1, Err: err}
	}

	res, runErr := t.run(ctx, source, output)
	if res.exitCode != 0 || runErr != nil || res.stdout.Len() > 0 || res.stderr.Len() > 0 {
		t.appendDiagnostics(source, res)
	}

	err := t.check(source, output, res, runErr)
	if err != nil {
		_ = os.Remove(output)
		_ = level.Debug(t.log).Log("msg", "transform failed", "source", source, "exit_code", res.exitCode, "err", err)
		return "", err
	}

	_ = level.Debug(t.log).Log("msg", "transform done", "source", source, "output", output, "duration", res.duration)

	return output, nil
}

type runResult struct {
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	exitCode int
	duration time.Duration
}

func (t *Transformer) run(ctx context.Context, source, output string) (*runResult, error) {
	res := &runResult{exitCode: -1}

	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	argv := t.argv(source, output)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	setProcessGroup(cmd)
	cmd.WaitDelay = waitDelay
	cmd.Stdout = &res.stdout
	cmd.Stderr = &res.stderr

	start := time.Now()
	err := cmd.Run()
	res.duration = time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return res, errors.Errorf("engine timed out after %s", t.cfg.Timeout)
		}
		return res, errors.Wrap(ctxErr, "engine cancelled")
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.exitCode = 0
	case errors.As(err, &exitErr):
		res.exitCode = exitErr.ExitCode()
	default:
		return res, errors.Wrap(err, "start engine")
	}

	return res, nil
}

func (t *Transformer) check(source, output string, res *runResult, runErr error) error {
	diagnostics := strings.TrimSpace(res.stderr.String())

	if runErr != nil {
		return &Error{Source: source, ExitCode: res.exitCode, Diagnostics: diagnostics, Err: runErr}
	}
	if res.exitCode != 0 {
		return &Error{Source: source, ExitCode: res.exitCode, Diagnostics: diagnostics,
			Err: errors.Errorf("engine exited with code %d", res.exitCode)}
	}
	if t.cfg.StrictDiagnostics && diagnostics != "" {
		return &Error{Source: source, Diagnostics: diagnostics, Err: errors.New("engine reported diagnostics")}
	}

	fi, err := os.Stat(output)
	if err != nil {
		return &Error{Source: source, Diagnostics: diagnostics, Err: errors.Wrap(err, "engine produced no output")}
	}
	if fi.Size() == 0 {
		return &Error{Source: source, Diagnostics: diagnostics, Err: errors.New("engine produced an empty output")}
	}
	return nil
}

func (t *Transformer) appendDiagnostics(source string, res *runResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b bytes.Buffer
	fmt.Fprintf(&b, "=== %s %s (exit code %d)\n", time.Now().UTC().Format(time.RFC3339), source, res.exitCode)
	for _, stream := range []*bytes.Buffer{&res.stderr, &res.stdout} {
		if stream.Len() == 0 {
			continue
		}
		b.Write(stream.Bytes())
		if !bytes.HasSuffix(stream.Bytes(), []byte("\n")) {
			b.WriteByte('\n')
		}
	}

	if _, err := t.errs.Write(b.Bytes()); err != nil {
		_ = level.Warn(t.log).Log("msg", "failed to write transformation errors", "source", source, "err", err)
	}
}

func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove stale output")
	}
	return nil
}
