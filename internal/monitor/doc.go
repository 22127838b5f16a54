// Package monitor implements a generic sampled load watcher with hysteresis.
// A Monitor keeps a four-slot rolling window of samples, reports the window
// average as its load, and emits exactly one High event per low-to-high
// transition and one Low event once a probation run of in-limit samples
// completes. CPU utilization and disk queue depth monitors are two configured
// instances of the same type.
package monitor
