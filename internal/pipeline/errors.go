package pipeline

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/contentforge/api/internal/model"
)

var (
	// ErrInvalidPhases is returned by New for a malformed stage list.
	ErrInvalidPhases = errors.New("invalid phase configuration")

	// ErrNoContent is the finalize failure for a run whose steps all
	// succeeded without producing final text.
	ErrNoContent = errors.New("no content was generated")

	errStepPanic = errors.New("step panicked")
)

// PhaseError is the terminal failure of a run, tagged with its phase.
type PhaseError struct {
	Phase model.Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
