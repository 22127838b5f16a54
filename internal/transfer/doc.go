// Package transfer drives the relocation pipeline: one cooperative loop that
// scans the spool, honors admission control, dispatches batches to the copy
// engine, and retires completed transfers into the grace area.
//
// The loop is a single goroutine selecting over the driving tick timer, the
// load monitors' event channels, and engine completion. Pause and resume
// decisions therefore serialize with the tick that produced them, and at most
// one engine handle is active at any time. Persistent per-tick failures back
// the timer off exponentially; one clean tick restores the nominal interval.
package transfer
