package aspace

import "fmt"

// AuthenticationError is fatal to a run: nothing can be exported without a
// session. StatusCode is zero when the login call never got a response.
type AuthenticationError struct {
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// ExportError reports a failed export of a single resource.
type ExportError struct {
	ResourceID string
	StatusCode int
	Err        error
}

func (e *ExportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("export %s failed with status %d: %v", e.ResourceID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("export %s failed: %v", e.ResourceID, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
