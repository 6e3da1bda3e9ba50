package validate

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"
)

const syntaxCode = "xml-syntax"

// checkWellFormed returns the syntax violations of data. A non-nil error
// means the document could not be checked at all.
func checkWellFormed(data []byte) ([]Violation, error) {
	d := xml.NewDecoder(bytes.NewReader(data))

	var unsupported string
	d.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		r, err := charset.NewReaderLabel(label, input)
		if err != nil {
			unsupported = label
		}
		return r, err
	}

	depth, roots := 0, 0
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil && unsupported != "" {
			line, _ := d.InputPos()
			return []Violation{{Code: syntaxCode, Message: fmt.Sprintf("unsupported encoding %q", unsupported), Line: line}}, nil
		}
		if err != nil {
			var se *xml.SyntaxError
			if errors.As(err, &se) {
				return []Violation{{Code: syntaxCode, Message: se.Msg, Line: se.Line}}, nil
			}
			return nil, errors.Wrap(err, "tokenize document")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					line, col := d.InputPos()
					return []Violation{{Code: syntaxCode, Message: "multiple root elements", Path: "/" + t.Name.Local, Line: line, Column: col}}, nil
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				line, col := d.InputPos()
				return []Violation{{Code: syntaxCode, Message: "character data outside of root element", Line: line, Column: col}}, nil
			}
		}
	}

	if roots == 0 {
		return []Violation{{Code: syntaxCode, Message: "document has no root element"}}, nil
	}

	return nil, nil
}
