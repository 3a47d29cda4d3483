package crawl

import "sync/atomic"

// Stats counts page outcomes for one crawl session. All counters are safe
// for concurrent updates.
type Stats struct {
	// archived counts full response records durably appended.
	archived atomic.Int64

	// deduped counts revisit records durably appended.
	deduped atomic.Int64

	// dropped counts pages the policy declined to archive.
	dropped atomic.Int64

	// failed counts URLs whose transient failures exhausted the retry
	// budget.
	failed atomic.Int64

	// dead counts URLs that failed permanently (4xx, redirect loops,
	// oversized bodies).
	dead atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Archived int
	Deduped  int
	Dropped  int
	Failed   int
	Dead     int
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Archived: int(s.archived.Load()),
		Deduped:  int(s.deduped.Load()),
		Dropped:  int(s.dropped.Load()),
		Failed:   int(s.failed.Load()),
		Dead:     int(s.dead.Load()),
	}
}
