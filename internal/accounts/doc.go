// Package accounts resolves the set of account directories present on the
// transfer destination. Spool promotion only hands a user's files to the
// copy engine when the destination has a matching account; everything else
// is routed aside for manual review.
//
// Two resolvers cover the deployment shapes: DirResolver lists a destination
// root that is mounted locally, RsyncResolver asks a remote rsync daemon or
// shell endpoint for its top-level listing. Matching is Unicode case-folded
// so "Alice" and "alice" land in the same account.
package accounts
