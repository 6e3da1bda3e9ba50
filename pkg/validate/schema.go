package validate

import (
	"io"

	"github.com/jacoelho/xsd"
	"github.com/pkg/errors"
)

// Schema asserts a document against a compiled XML Schema. *xsd.Schema
// satisfies it and is safe to share read-only across validations.
type Schema interface {
	Validate(r io.Reader) error
}

func LoadSchema(path string) (*xsd.Schema, error) {
	s, err := xsd.LoadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load schema")
	}
	return s, nil
}
