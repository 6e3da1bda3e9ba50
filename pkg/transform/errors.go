package transform

import "fmt"

// Error reports a transform that did not produce a usable output.
// ExitCode is -1 when the engine did not exit on its own.
type Error struct {
	Source      string
	ExitCode    int
	Diagnostics string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transform %s (exit code %d): %v", e.Source, e.ExitCode, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
