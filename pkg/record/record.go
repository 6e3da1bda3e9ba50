package record

import (
	"fmt"
	"time"

	"github.com/ValerySidorin/eadpipe/pkg/validate"
)

type Stage string

const (
	StageExport    Stage = "export"
	StageTransform Stage = "transform"
	StageValidate  Stage = "validate"
)

type Status string

const (
	VALID            Status = "VALID"
	EXPORT_FAILED    Status = "EXPORT_FAILED"
	TRANSFORM_FAILED Status = "TRANSFORM_FAILED"
	SCHEMA_INVALID   Status = "SCHEMA_INVALID"
	SYNTAX_INVALID   Status = "SYNTAX_INVALID"
	IO_INVALID       Status = "IO_INVALID"
	UNKNOWN_ERROR    Status = "UNKNOWN_ERROR"
)

// Reference identifies one archival resource to export.
type Reference struct {
	RepositoryID string
	ResourceID   string
}

func (r Reference) String() string {
	return fmt.Sprintf("%s/%s", r.RepositoryID, r.ResourceID)
}

// Result is the terminal state of one reference after the pipeline.
// Stage is the last stage that was attempted.
type Result struct {
	Seq        int
	Ref        Reference
	Stage      Stage
	Status     Status
	ExportPath string
	OutputPath string
	Outcome    *validate.Outcome
	Err        error
	Duration   time.Duration
}

func (r *Result) Succeeded() bool {
	return r.Status == VALID
}

// FilePath is the most advanced artifact the record produced.
func (r *Result) FilePath() string {
	if r.OutputPath != "" {
		return r.OutputPath
	}
	return r.ExportPath
}

// Detail is a one-line description of why the record failed, empty on success.
func (r *Result) Detail() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	if r.Outcome != nil {
		return r.Outcome.Detail
	}
	return ""
}

func StatusFromOutcome(o validate.Outcome) Status {
	switch o.Kind {
	case validate.Valid:
		return VALID
	case validate.SchemaInvalid:
		return SCHEMA_INVALID
	case validate.SyntaxInvalid:
		return SYNTAX_INVALID
	case validate.IOInvalid:
		return IO_INVALID
	default:
		return UNKNOWN_ERROR
	}
}
