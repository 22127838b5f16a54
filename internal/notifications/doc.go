// Package notifications delivers daemon events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. The Service surface covers the operational events an unattended
// transfer host needs to surface: destination storage running low, admin
// alerts for failed or unmatched batches, grace-area expiry reports, and
// completed transfers.
//
// Throttling is not this package's concern; the orchestrator gates calls via
// the persisted per-category notification timestamps.
package notifications
