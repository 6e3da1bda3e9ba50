package validate

import (
	"bytes"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	xsderrors "github.com/jacoelho/xsd/errors"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Validator classifies transformed files. It never returns an error and
// never panics: every path ends in an Outcome that is also written to the
// audit log.
type Validator struct {
	schema Schema
	audit  log.Logger
}

func New(schema Schema, audit log.Logger) *Validator {
	return &Validator{
		schema: schema,
		audit:  log.With(audit, "component", "validator"),
	}
}

func (v *Validator) Validate(path string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				Kind:   UnknownError,
				Path:   path,
				Detail: fmt.Sprintf("panic: %v", r),
				Trace:  string(debug.Stack()),
			}
		}
		v.record(out)
	}()

	return v.validate(path)
}

func (v *Validator) validate(path string) Outcome {
	data, err := os.ReadFile(path)
	if err != nil {
		return Outcome{Kind: IOInvalid, Path: path, Detail: err.Error()}
	}

	syntax, err := checkWellFormed(data)
	if err != nil {
		return unknown(path, err)
	}
	if len(syntax) > 0 {
		return Outcome{Kind: SyntaxInvalid, Path: path, Detail: syntax[0].String(), Violations: syntax}
	}

	err = v.schema.Validate(bytes.NewReader(data))
	if err == nil {
		return Outcome{Kind: Valid, Path: path}
	}

	list, ok := xsderrors.AsValidations(err)
	if !ok || len(list) == 0 {
		return unknown(path, err)
	}

	violations := lo.Map(list, func(item xsderrors.Validation, index int) Violation {
		return Violation{
			Code:    item.Code,
			Message: item.Message,
			Path:    item.Path,
			Line:    item.Line,
			Column:  item.Column,
		}
	})

	// The schema engine tokenizes on its own and catches a few things the
	// well-formedness pass does not, e.g. duplicate attributes.
	parse := lo.Filter(violations, func(item Violation, index int) bool {
		return item.Code == string(xsderrors.ErrXMLParse)
	})
	if len(parse) > 0 {
		return Outcome{Kind: SyntaxInvalid, Path: path, Detail: parse[0].String(), Violations: parse}
	}

	return Outcome{
		Kind:       SchemaInvalid,
		Path:       path,
		Detail:     fmt.Sprintf("%d schema violation(s), first: %s", len(violations), violations[0]),
		Violations: violations,
	}
}

func unknown(path string, err error) Outcome {
	return Outcome{
		Kind:   UnknownError,
		Path:   path,
		Detail: err.Error(),
		Trace:  fmt.Sprintf("%+v", errors.WithStack(err)),
	}
}

func (v *Validator) record(o Outcome) {
	l := log.With(v.audit, "file", o.Path, "outcome", o.Kind)

	switch o.Kind {
	case Valid:
		_ = level.Info(l).Log("msg", "file is valid")
	case SchemaInvalid, SyntaxInvalid:
		msg := "schema validation error"
		if o.Kind == SyntaxInvalid {
			msg = "xml syntax error"
		}
		_ = level.Warn(l).Log("msg", msg, "violations", len(o.Violations))
		for i, viol := range o.Violations {
			_ = level.Warn(v.audit).Log(
				"file", o.Path,
				"violation", i+1,
				"code", viol.Code,
				"path", viol.Path,
				"line", viol.Line,
				"column", viol.Column,
				"err", viol.Message,
			)
		}
	case IOInvalid:
		_ = level.Warn(l).Log("msg", "invalid file", "err", o.Detail)
	default:
		_ = level.Error(l).Log("msg", "other validation error", "err", o.Detail, "trace", o.Trace)
	}
}
