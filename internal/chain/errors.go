package chain

import (
	"errors"

	"api-chain/internal/executor"
	"api-chain/internal/request"
	"api-chain/internal/resolve"
	"api-chain/internal/transform"
)

// Fatal run error kinds. Every error returned by Runner.Run is a *StepError;
// apart from context cancellation it wraps an error matching one of these.
var (
	ErrInvalidReference = resolve.ErrInvalidReference
	ErrMalformedURL     = request.ErrMalformedURL
	ErrNetwork          = executor.ErrNetwork
	ErrParse            = executor.ErrParse
	ErrTransform        = transform.ErrTransform
)

// Session errors.
var (
	ErrRunInProgress   = errors.New("a chain execution is already in progress")
	ErrStepNotFound    = errors.New("step not found")
	ErrMappingNotFound = errors.New("field mapping index out of range")
	ErrBodyNotAllowed  = errors.New("only POST steps take a request body")
)

// StepError ties a fatal run error to the step that produced it.
// Its message is the underlying message, which is what the run reports.
type StepError struct {
	Index int
	Name  string
	Err   error
}

func (e *StepError) Error() string { return e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }
