// Package mode provides the application mode and transition state definitions
// shared by the store, the transition engine and the public facade.
package mode

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned when a string does not name an AppMode.
var ErrUnknownMode = errors.New("unknown app mode")

// AppMode is one of the two mutually exclusive operating modes.
type AppMode string

const (
	// ModeStandard is the regular application mode.
	ModeStandard AppMode = "standard"

	// ModeGame is the game mode.
	ModeGame AppMode = "game"
)

// DefaultMode is used when no valid persisted mode exists.
const DefaultMode = ModeStandard

// String returns the string representation of the mode.
func (m AppMode) String() string {
	return string(m)
}

// Valid reports whether m is a known mode.
func (m AppMode) Valid() bool {
	return m == ModeStandard || m == ModeGame
}

// Complement returns the other mode. Unknown values complement to the default.
func (m AppMode) Complement() AppMode {
	if m == ModeStandard {
		return ModeGame
	}
	return ModeStandard
}

// ParseAppMode converts a string to AppMode.
func ParseAppMode(s string) (AppMode, error) {
	switch AppMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStandard:
		return ModeStandard, nil
	case ModeGame:
		return ModeGame, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *AppMode) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseAppMode(str)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// TransitionState describes the progress of a mode switch.
type TransitionState int32

const (
	// StateIdle indicates no switch is in progress.
	StateIdle TransitionState = iota

	// StateTransitioning indicates a switch is tearing down and committing.
	StateTransitioning

	// StateCompleted indicates a switch just finished. It resets to idle
	// after a short grace delay.
	StateCompleted
)

// String returns the string representation of the state.
func (s TransitionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTransitioning:
		return "transitioning"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// MarshalJSON implements json.Marshaler.
func (s TransitionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *TransitionState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseTransitionState(str)
	return nil
}

// ParseTransitionState converts a string to TransitionState.
// Unknown values parse as idle.
func ParseTransitionState(s string) TransitionState {
	switch s {
	case "transitioning":
		return StateTransitioning
	case "completed", "complete":
		return StateCompleted
	default:
		return StateIdle
	}
}

// ValidTransitions defines allowed state transitions.
var ValidTransitions = map[TransitionState][]TransitionState{
	StateIdle:          {StateTransitioning},
	StateTransitioning: {StateCompleted, StateIdle},
	StateCompleted:     {StateIdle, StateTransitioning},
}

// CanTransition returns true if the transition from -> to is valid.
func CanTransition(from, to TransitionState) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateTransitionError represents an invalid state transition.
type StateTransitionError struct {
	From TransitionState
	To   TransitionState
}

// Error implements error.
func (e StateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}
