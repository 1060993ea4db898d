package circuitbreaker

import "time"

// Config describes a breaker guarding one downstream dependency.
type Config struct {
	Name    string
	Enabled bool

	// MaxRequests allowed through while half-open. Zero means one.
	MaxRequests uint

	// Interval after which closed-state counts are cleared. Zero never clears.
	Interval time.Duration

	// Timeout spent open before probing again. Zero means 60 seconds.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint
}

// StateChangeFunc observes transitions, e.g. to log or count them.
type StateChangeFunc func(name, from, to string)

// Option customises a breaker beyond its Config.
type Option func(*options)

type options struct {
	onStateChange StateChangeFunc
	isSuccessful  func(error) bool
}

// WithStateChange registers a transition observer.
func WithStateChange(fn StateChangeFunc) Option {
	return func(o *options) {
		o.onStateChange = fn
	}
}

// WithIgnoredErrors treats errors matching the predicate as successes, so caller
// mistakes do not count against the dependency.
func WithIgnoredErrors(ignore func(error) bool) Option {
	return func(o *options) {
		o.isSuccessful = func(err error) bool {
			return err == nil || ignore(err)
		}
	}
}
