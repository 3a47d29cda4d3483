package model

import "fmt"

// URLState represents the lifecycle state of a discovered URL.
//
// Design decision: We use iota-based constants with an explicit transition
// table rather than free-form flags because the set of states is small and
// closed, and invalid transitions should fail loudly rather than silently
// corrupt the frontier's bookkeeping.
type URLState int

const (
	// StatePending means the URL has been discovered and is waiting to be
	// claimed by a fetch worker.
	StatePending URLState = iota

	// StateInFlight means exactly one worker has claimed the URL and a fetch
	// attempt is in progress.
	StateInFlight

	// StateFetched means the fetch succeeded and the result is on its way to
	// the archive writer.
	StateFetched

	// StateArchived means the archive writer has durably appended a record
	// for this URL. Terminal.
	StateArchived

	// StateFailed means the last fetch attempt failed transiently. This is a
	// transitional state: the frontier immediately moves the record back to
	// StatePending (retry) or to StateDead (retries exhausted).
	StateFailed

	// StateDead means the URL will never be fetched again: either a permanent
	// failure or the retry budget ran out. Terminal.
	StateDead
)

// String returns a human-readable representation of the state.
func (s URLState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in-flight"
	case StateFetched:
		return "fetched"
	case StateArchived:
		return "archived"
	case StateFailed:
		return "failed"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// validTransitions is the closed set of permitted state changes.
// A URLRecord is only ever observed in one state at a time; all transitions
// go through Transition, which is called with the frontier's lock held.
var validTransitions = map[URLState][]URLState{
	StatePending:  {StateInFlight},
	StateInFlight: {StateFetched, StateFailed, StateDead},
	StateFetched:  {StateArchived},
	StateFailed:   {StatePending, StateDead},
}

// URLRecord is a canonicalized URL discovered during the crawl, together with
// its scheduling metadata. Records are owned exclusively by the frontier;
// other components receive them through CrawlJob and must not mutate them.
type URLRecord struct {
	// SURT is the canonical form of the URL, used as the uniqueness key for
	// the lifetime of the crawl.
	SURT string

	// URL is the original (non-canonical) URL used for the actual request.
	URL string

	// Host is the URL's hostname, the key for the per-host politeness gate.
	Host string

	// Parent is the URL of the page that discovered this one. Empty for seeds.
	Parent string

	// Depth is the discovery depth: 0 for seeds, parent depth + 1 otherwise.
	Depth int

	// State is the current lifecycle state. Mutated only via Transition.
	State URLState

	// Retries counts failed fetch attempts so far.
	Retries int

	// Seq is the discovery order, used to break ties between records at the
	// same depth so claiming is deterministic.
	Seq uint64
}

// Transition moves the record to the given state, returning an error if the
// transition is not in the permitted set.
func (r *URLRecord) Transition(to URLState) error {
	for _, allowed := range validTransitions[r.State] {
		if allowed == to {
			r.State = to
			return nil
		}
	}
	return fmt.Errorf("invalid transition for %s: %s -> %s", r.URL, r.State, to)
}

// CrawlJob is a URLRecord claimed by a worker. The worker owns the job for
// the duration of one fetch attempt and releases it back to the frontier
// with a terminal Outcome.
type CrawlJob struct {
	// Record is the claimed URL record. Workers read it but never mutate it;
	// all state changes go back through the frontier.
	Record *URLRecord
}
