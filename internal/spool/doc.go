// Package spool manages the on-disk transfer pipeline. Directory trees move
// between stages — Incoming, Processing, Done, Unmatched, Error — with
// single-rename promotion, collision-safe targets, and timestamp-named
// batches. The batch directory name is the sole authoritative identity and
// age marker; unparsable names degrade to a sentinel age, never an error.
package spool
