package message

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/ValerySidorin/eadpipe/pkg/record"
)

// Message announces the outcome of one record.
type Message struct {
	RunID        string        `json:"run_id"`
	Seq          int           `json:"seq"`
	RepositoryID string        `json:"repo_id"`
	ResourceID   string        `json:"resource_id"`
	Stage        record.Stage  `json:"stage"`
	Status       record.Status `json:"status"`
	File         string        `json:"file,omitempty"`
}

func New(runID string, res *record.Result) *Message {
	return &Message{
		RunID:        runID,
		Seq:          res.Seq,
		RepositoryID: res.Ref.RepositoryID,
		ResourceID:   res.Ref.ResourceID,
		Stage:        res.Stage,
		Status:       res.Status,
		File:         res.FilePath(),
	}
}

func NewMessage(raw string) (*Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, errors.Wrap(err, "invalid message raw input")
	}

	if m.RunID == "" || m.ResourceID == "" {
		return nil, errors.New("invalid message raw input (ids)")
	}

	switch m.Status {
	case record.VALID, record.EXPORT_FAILED, record.TRANSFORM_FAILED, record.SCHEMA_INVALID,
		record.SYNTAX_INVALID, record.IO_INVALID, record.UNKNOWN_ERROR:
	default:
		return nil, errors.Errorf("invalid message raw input (status %q)", m.Status)
	}

	return &m, nil
}

func (m *Message) String() string {
	data, _ := json.Marshal(m)
	return string(data)
}
