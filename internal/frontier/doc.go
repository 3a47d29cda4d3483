// Package frontier owns the set of discovered URLs and their scheduling.
//
// The frontier is the single owner of all URLRecord state: URLs enter through
// Enqueue (deduplicated by SURT and filtered by scope exactly once), workers
// take them out through ClaimNext (breadth-first, politeness-gated), and
// every claim is released through Complete with a terminal outcome. All
// mutation happens under one lock, so a record is never observed in two
// states at once.
package frontier
