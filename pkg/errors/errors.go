// Package errors defines the sentinel errors shared across drivesync and the
// classification helpers the scheduler uses to tell stage-fatal failures from
// entry-level ones.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrConfig               = errors.New("configuration error")
	ErrNoManifest           = errors.New("no manifest available")
	ErrCorruptManifest      = errors.New("corrupt manifest")
	ErrListing              = errors.New("remote listing failed")
	ErrFetch                = errors.New("fetch failed")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrExtraction           = errors.New("extraction failed")
	ErrUpload               = errors.New("sink upload failed")
	ErrCircuitOpen          = errors.New("circuit breaker is open")
)

// AppError attaches a human-readable message to one of the sentinels above.
type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// StageError marks a failure that aborts the current cycle of a stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s aborted: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Stage wraps err as a stage-fatal error for the named stage. A nil err
// stays nil.
func Stage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// IsStageFatal reports whether err should abort a cycle rather than a
// single entry.
func IsStageFatal(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return true
	}
	switch {
	case errors.Is(err, ErrNoManifest), errors.Is(err, ErrCorruptManifest), errors.Is(err, ErrListing):
		return true
	default:
		return false
	}
}
