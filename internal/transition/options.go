package transition

import "time"

// Default timings.
const (
	DefaultGraceDelay = 100 * time.Millisecond
	DefaultAnimation  = time.Second
)

// Config holds engine configuration.
type Config struct {
	// GraceDelay is how long the completed state is held before returning to
	// idle. Zero means DefaultGraceDelay.
	GraceDelay time.Duration

	// DefaultAnimation is the wait used when Options.AnimationDuration is
	// nil. Zero means DefaultAnimation; a negative value disables the wait.
	DefaultAnimation time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		GraceDelay:       DefaultGraceDelay,
		DefaultAnimation: DefaultAnimation,
	}
}

func (c Config) withDefaults() Config {
	if c.GraceDelay <= 0 {
		c.GraceDelay = DefaultGraceDelay
	}
	if c.DefaultAnimation == 0 {
		c.DefaultAnimation = DefaultAnimation
	}
	if c.DefaultAnimation < 0 {
		c.DefaultAnimation = 0
	}
	return c
}

// Options customizes a single SwitchMode or ToggleMode call. The zero value
// runs cleanup and waits for the engine's default animation.
type Options struct {
	// RunCleanup runs the cleanup registry before committing. Nil means true.
	RunCleanup *bool

	// AnimationDuration is waited between cleanup and commit. Nil means the
	// engine default, 0 skips the wait.
	AnimationDuration *time.Duration

	OnTransitionStart    func()
	OnTransitionComplete func()
	OnError              func(error)
}

// WithoutCleanup returns a copy of o that skips the cleanup registry.
func (o Options) WithoutCleanup() Options {
	skip := false
	o.RunCleanup = &skip
	return o
}

// WithAnimation returns a copy of o with the given animation wait.
func (o Options) WithAnimation(d time.Duration) Options {
	o.AnimationDuration = &d
	return o
}

// WithoutCleanup is shorthand for Options{}.WithoutCleanup().
func WithoutCleanup() Options {
	return Options{}.WithoutCleanup()
}

// WithAnimation is shorthand for Options{}.WithAnimation(d).
func WithAnimation(d time.Duration) Options {
	return Options{}.WithAnimation(d)
}

func (o Options) runCleanup() bool {
	return o.RunCleanup == nil || *o.RunCleanup
}

func (o Options) animation(def time.Duration) time.Duration {
	if o.AnimationDuration == nil {
		return def
	}
	if *o.AnimationDuration < 0 {
		return 0
	}
	return *o.AnimationDuration
}
