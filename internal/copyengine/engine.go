package copyengine

import "context"

// Result summarizes a finished copy run.
type Result struct {
	Success   bool
	BytesSent int64
	Error     string
}

// Hooks receive engine callbacks. All hooks are invoked from the engine's own
// goroutine; consumers must serialize their own state.
type Hooks struct {
	// OnFileStarted fires once per file as its transfer begins, including
	// files the destination already lacks entirely.
	OnFileStarted func(name string, size int64)
	// OnProgress reports the percent complete of the current file.
	OnProgress func(percent float64)
	// OnCompleted fires exactly once when the run finishes, after the final
	// OnProgress.
	OnCompleted func(Result)
}

// Options tune a single copy run.
type Options struct {
	BandwidthKB int
	Extra       []string
}

// Handle controls one active copy run.
type Handle interface {
	// ID is a unique identifier for logging and status correlation.
	ID() string
	// Pause suspends the run without terminating it.
	Pause() error
	// Resume continues a paused run.
	Resume() error
	// Stop terminates the run, best effort.
	Stop() error
	// Done is closed when the run has fully finished.
	Done() <-chan struct{}
	// Err returns the terminal error after Done is closed, if any.
	Err() error
}

// Engine starts copy runs.
type Engine interface {
	Start(ctx context.Context, source, destination string, opts Options, hooks Hooks) (Handle, error)
}
