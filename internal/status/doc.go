// Package status persists the daemon's transfer status. The Tracker is the
// single owner of the in-memory snapshot: every writer — tick loop, load
// monitors, copy-engine callbacks — routes mutations through its command
// channel, and each mutation is written through to SQLite before the call
// returns, so a crash always leaves a consistent snapshot on disk.
package status
