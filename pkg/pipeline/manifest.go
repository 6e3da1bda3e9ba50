package pipeline

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v2"

	"github.com/ValerySidorin/eadpipe/pkg/record"
)

// Manifest is the persisted form of a Report.
type Manifest struct {
	RunID       string           `yaml:"run_id"`
	StartedAt   time.Time        `yaml:"started_at"`
	FinishedAt  time.Time        `yaml:"finished_at"`
	Total       int              `yaml:"total"`
	Succeeded   int              `yaml:"succeeded"`
	Failed      int              `yaml:"failed"`
	Skipped     int              `yaml:"skipped"`
	Interrupted bool             `yaml:"interrupted"`
	Records     []ManifestRecord `yaml:"records"`
}

type ManifestRecord struct {
	Seq          int           `yaml:"seq"`
	RepositoryID string        `yaml:"repo_id"`
	ResourceID   string        `yaml:"resource_id"`
	Stage        record.Stage  `yaml:"stage"`
	Status       record.Status `yaml:"status"`
	File         string        `yaml:"file,omitempty"`
	Detail       string        `yaml:"detail,omitempty"`
	Violations   int           `yaml:"violations,omitempty"`
	Duration     time.Duration `yaml:"duration"`
}

func NewManifest(r *Report) *Manifest {
	return &Manifest{
		RunID:       r.RunID,
		StartedAt:   r.StartedAt.UTC(),
		FinishedAt:  r.FinishedAt.UTC(),
		Total:       r.Total,
		Succeeded:   r.Succeeded(),
		Failed:      r.Failed(),
		Skipped:     r.Skipped(),
		Interrupted: r.Interrupted,
		Records: lo.Map(r.Results, func(res *record.Result, _ int) ManifestRecord {
			mr := ManifestRecord{
				Seq:          res.Seq,
				RepositoryID: res.Ref.RepositoryID,
				ResourceID:   res.Ref.ResourceID,
				Stage:        res.Stage,
				Status:       res.Status,
				File:         res.FilePath(),
				Detail:       res.Detail(),
				Duration:     res.Duration,
			}
			if res.Outcome != nil {
				mr.Violations = len(res.Outcome.Violations)
			}
			return mr
		}),
	}
}

// OK mirrors Report.OK for a manifest read back from disk.
func (m *Manifest) OK() bool {
	return !m.Interrupted && m.Skipped == 0 && m.Failed == 0
}

func WriteManifest(path string, r *Report) error {
	data, err := yaml.Marshal(NewManifest(r))
	if err != nil {
		return errors.Wrap(err, "marshal manifest")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create manifest dir")
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write manifest")
	}
	return nil
}

func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read manifest")
	}
	var m Manifest
	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		return nil, errors.Wrap(err, "parse manifest")
	}
	return &m, nil
}
