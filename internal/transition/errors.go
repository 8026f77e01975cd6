package transition

import (
	"errors"
	"fmt"

	"github.com/R3E-Network/mode_orchestrator/internal/mode"
)

// Common errors
var (
	ErrInvalidMode          = fmt.Errorf("invalid target mode: %w", mode.ErrUnknownMode)
	ErrTransitionInProgress = errors.New("a transition to a different mode is in progress")
	ErrClosed               = errors.New("transition engine closed")
)

// Stage names the step of a transition that failed.
type Stage string

const (
	StageCleanup   Stage = "cleanup"
	StageAnimation Stage = "animation"
	StageCommit    Stage = "commit"
	StageNotify    Stage = "notify"
)

// TransitionError is returned when a transition aborts. The state machine has
// already been reset to idle when the caller receives it.
type TransitionError struct {
	ID     string
	From   mode.AppMode
	Target mode.AppMode
	Stage  Stage
	Err    error
}

// Error implements error.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s failed during %s: %v", e.From, e.Target, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransitionError) Unwrap() error {
	return e.Err
}
