// Package daemon coordinates the long-running shuttle process and system
// integration points.
//
// It wires configuration, the status store, and the transfer orchestrator
// into a single lifecycle with flock-based locking to prevent multiple
// instances. A netlink hotplug monitor reacts to block devices coming and
// going by forcing an immediate free-space rescan.
//
// Keep orchestration logic here: the transfer pipeline itself lives in
// internal/transfer while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
