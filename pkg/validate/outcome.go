package validate

import "fmt"

// Kind tags a validation Outcome. Every kind is terminal.
type Kind int

const (
	Valid Kind = iota
	SchemaInvalid
	SyntaxInvalid
	IOInvalid
	UnknownError
)

func (k Kind) String() string {
	switch k {
	case Valid:
		return "valid"
	case SchemaInvalid:
		return "schema_invalid"
	case SyntaxInvalid:
		return "syntax_invalid"
	case IOInvalid:
		return "io_invalid"
	case UnknownError:
		return "unknown_error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Violation is one itemized problem reported by the XML parser or the
// schema engine. Line and Column are zero when unknown.
type Violation struct {
	Code    string
	Message string
	Path    string
	Line    int
	Column  int
}

func (v Violation) String() string {
	s := fmt.Sprintf("[%s] %s", v.Code, v.Message)
	if v.Path != "" {
		s += " at " + v.Path
	}
	if v.Line > 0 {
		s += fmt.Sprintf(" (line %d", v.Line)
		if v.Column > 0 {
			s += fmt.Sprintf(", column %d", v.Column)
		}
		s += ")"
	}
	return s
}

type Outcome struct {
	Kind Kind
	// Path is the file the outcome refers to.
	Path       string
	Detail     string
	Violations []Violation
	// Trace is only set for UnknownError.
	Trace string
}

func (o Outcome) OK() bool {
	return o.Kind == Valid
}
