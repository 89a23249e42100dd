package ragerr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrIndexUnavailable is returned when retrieval runs before any ingestion succeeded.
	ErrIndexUnavailable = errors.New("similarity index unavailable: no document has been ingested yet")

	// ErrInvalidRequest is returned for requests the pipeline refuses to start.
	ErrInvalidRequest = errors.New("invalid pipeline request")
)

// DocumentParseError reports a malformed or unreadable input document.
type DocumentParseError struct {
	Ref    string
	Reason string
	Err    error
}

func (e *DocumentParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse document %q: %s: %v", e.Ref, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse document %q: %s", e.Ref, e.Reason)
}

func (e *DocumentParseError) Unwrap() error { return e.Err }

// UpstreamUnavailableError wraps failures of the model, embedding, index or tool services.
// Callers may retry the whole request.
type UpstreamUnavailableError struct {
	Service string
	Timeout bool
	Err     error
}

func (e *UpstreamUnavailableError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s timed out: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

// Upstream builds an UpstreamUnavailableError, flagging deadline errors as timeouts.
func Upstream(service string, err error) error {
	if err == nil {
		return nil
	}
	var up *UpstreamUnavailableError
	if errors.As(err, &up) {
		return err
	}
	return &UpstreamUnavailableError{
		Service: service,
		Timeout: isTimeout(err),
		Err:     err,
	}
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	var t timeout
	if errors.As(err, &t) && t.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// ToolExecutionError is a guard violation inside a tool. It never aborts a run:
// the catalog turns it into text for the model.
type ToolExecutionError struct {
	Tool   string
	Reason string
}

func (e *ToolExecutionError) Error() string {
	return "Error: " + e.Reason
}

// ToolLoopExceededError is returned when the model keeps requesting tools past the cap.
type ToolLoopExceededError struct {
	Limit   int
	Partial string
}

func (e *ToolLoopExceededError) Error() string {
	return fmt.Sprintf("tool call limit of %d exceeded", e.Limit)
}

// StageError tags a failure with the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
