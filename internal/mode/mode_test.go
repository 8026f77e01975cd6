package mode

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAppMode_Parse(t *testing.T) {
	tests := []struct {
		in      string
		want    AppMode
		wantErr bool
	}{
		{"standard", ModeStandard, false},
		{"game", ModeGame, false},
		{"  GAME ", ModeGame, false},
		{"", "", true},
		{"arcade", "", true},
	}

	for _, tt := range tests {
		got, err := ParseAppMode(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownMode) {
				t.Errorf("ParseAppMode(%q) err = %v, want ErrUnknownMode", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAppMode(%q) unexpected err: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseAppMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAppMode_Complement(t *testing.T) {
	if ModeStandard.Complement() != ModeGame {
		t.Error("standard should complement to game")
	}
	if ModeGame.Complement() != ModeStandard {
		t.Error("game should complement to standard")
	}
	if ModeStandard.Complement().Complement() != ModeStandard {
		t.Error("double complement should round-trip")
	}
}

func TestAppMode_UnmarshalRejectsUnknown(t *testing.T) {
	var m AppMode
	if err := json.Unmarshal([]byte(`"arcade"`), &m); err == nil {
		t.Error("expected error for unknown mode")
	}
	if err := json.Unmarshal([]byte(`"game"`), &m); err != nil || m != ModeGame {
		t.Errorf("got (%q, %v), want (game, nil)", m, err)
	}
}

func TestTransitionState_String(t *testing.T) {
	tests := []struct {
		state TransitionState
		want  string
	}{
		{StateIdle, "idle"},
		{StateTransitioning, "transitioning"},
		{StateCompleted, "completed"},
		{TransitionState(42), "state(42)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestTransitionState_JSON(t *testing.T) {
	data, err := json.Marshal(StateTransitioning)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"transitioning"` {
		t.Errorf("marshal = %s", data)
	}

	var s TransitionState
	if err := json.Unmarshal([]byte(`"completed"`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s != StateCompleted {
		t.Errorf("unmarshal = %v, want completed", s)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TransitionState
		want     bool
	}{
		{StateIdle, StateTransitioning, true},
		{StateIdle, StateCompleted, false},
		{StateTransitioning, StateCompleted, true},
		{StateTransitioning, StateIdle, true},
		{StateTransitioning, StateTransitioning, false},
		{StateCompleted, StateIdle, true},
		{StateCompleted, StateTransitioning, true},
		{TransitionState(9), StateIdle, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStateTransitionError(t *testing.T) {
	err := StateTransitionError{From: StateIdle, To: StateCompleted}
	if err.Error() != "invalid state transition: idle -> completed" {
		t.Errorf("Error() = %q", err.Error())
	}
}
