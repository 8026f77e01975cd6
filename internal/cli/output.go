package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/R3E-Network/mode_orchestrator/internal/facade"
	"github.com/R3E-Network/mode_orchestrator/internal/mode"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	gameColor    = color.New(color.FgMagenta, color.Bold)
	normalColor  = color.New(color.FgCyan, color.Bold)
	spinnerColor = color.New(color.FgCyan)
)

// Spinner animates a line while a request is pending.
type Spinner struct {
	frames  []string
	current int
	prefix  string
	mu      sync.Mutex
	writer  io.Writer
	active  bool
	done    chan struct{}
}

// NewSpinner creates a spinner writing to w.
func NewSpinner(w io.Writer, prefix string) *Spinner {
	return &Spinner{
		frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		prefix: prefix,
		writer: w,
		done:   make(chan struct{}),
	}
}

// Start begins rendering frames.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				if s.active {
					fmt.Fprintf(s.writer, "\r%s %s", spinnerColor.Sprint(s.frames[s.current]), s.prefix)
					s.current = (s.current + 1) % len(s.frames)
				}
				s.mu.Unlock()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop clears the spinner line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	close(s.done)
	fmt.Fprint(s.writer, "\r"+strings.Repeat(" ", len(s.prefix)+2)+"\r")
}

// Success stops the spinner and prints a success line.
func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Fprintf(s.writer, "%s %s\n", successColor.Sprint("✓"), message)
}

// Fail stops the spinner and prints a failure line.
func (s *Spinner) Fail(message string) {
	s.Stop()
	fmt.Fprintf(s.writer, "%s %s\n", errorColor.Sprint("✗"), message)
}

func colorMode(m mode.AppMode) string {
	if m == mode.ModeGame {
		return gameColor.Sprint(m.String())
	}
	return normalColor.Sprint(m.String())
}

func printView(w io.Writer, v facade.View, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Fprintf(w, "Mode:       %s\n", colorMode(v.CurrentMode))
	fmt.Fprintf(w, "Transition: %s\n", v.TransitionState)
	return nil
}
