// Package copyengine wraps the external bulk-copy tool behind a
// start/pause/resume/stop contract with asynchronous progress callbacks. The
// orchestrator drives exactly one handle at a time; callbacks arrive on the
// engine's own goroutine, never on the caller's loop.
package copyengine
