package frontier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/yomogi/webarc/internal/model"
	"github.com/yomogi/webarc/internal/surt"
)

// ErrExhausted is returned by ClaimNext when no pending records remain and
// nothing is in flight: the crawl is finished.
var ErrExhausted = errors.New("frontier exhausted")

// ErrUnknownURL is returned when Complete or MarkArchived is called for a
// URL the frontier never handed out.
var ErrUnknownURL = errors.New("unknown URL record")

// Frontier is the single owner of discovered URLs. All access is serialized
// by an internal lock; ClaimNext blocks while records exist but none is
// eligible (host caps or politeness), which is distinct from exhaustion.
type Frontier struct {
	mu sync.Mutex

	// wake is closed-and-replaced whenever eligibility may have changed
	// (enqueue, completion), releasing blocked ClaimNext callers to rescan.
	wake chan struct{}

	scope      *Scope
	gate       *HostGate
	maxRetries int
	logger     *slog.Logger

	// records holds every URL ever admitted, keyed by SURT. Uniqueness by
	// canonical form holds for the lifetime of the crawl.
	records map[string]*model.URLRecord

	// queues holds pending records by depth; claiming drains lower depths
	// first, FIFO within a depth. Retried records rejoin the back of their
	// depth's queue.
	queues [][]*model.URLRecord

	pending  int
	inFlight int
	seq      uint64
}

// New creates a Frontier. maxRetries is the retry budget for transient fetch
// failures; depth capacity comes from the scope's maximum depth.
func New(scope *Scope, gate *HostGate, maxRetries int, logger *slog.Logger) *Frontier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Frontier{
		wake:       make(chan struct{}),
		scope:      scope,
		gate:       gate,
		maxRetries: maxRetries,
		logger:     logger,
		records:    make(map[string]*model.URLRecord),
		queues:     make([][]*model.URLRecord, scope.maxDepth+1),
	}
}

// Enqueue admits a URL at the given depth. It is a no-op (returning false)
// when the URL is malformed, out of scope, or already seen. Scope is
// evaluated here, exactly once per URL.
func (f *Frontier) Enqueue(rawURL, parent string, depth int) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		f.logger.Debug("discarding malformed URL", "url", rawURL, "error", err)
		return false
	}
	u.Fragment = ""

	if !f.scope.Admits(u, depth) {
		return false
	}

	key := surt.FromURL(u)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, seen := f.records[key]; seen {
		return false
	}

	f.seq++
	rec := &model.URLRecord{
		SURT:   key,
		URL:    u.String(),
		Host:   u.Hostname(),
		Parent: parent,
		Depth:  depth,
		State:  model.StatePending,
		Seq:    f.seq,
	}
	f.records[key] = rec
	f.queues[depth] = append(f.queues[depth], rec)
	f.pending++
	f.wakeAll()

	f.logger.Debug("enqueued", "url", rec.URL, "depth", depth, "parent", parent)
	return true
}

// ClaimNext blocks until a pending record is eligible (its host is under the
// in-flight cap and past its politeness interval) and claims it for the
// caller. It returns ErrExhausted when no pending or in-flight records
// remain, or the context error on cancellation.
func (f *Frontier) ClaimNext(ctx context.Context) (*model.CrawlJob, error) {
	for {
		f.mu.Lock()

		if f.pending == 0 && f.inFlight == 0 {
			f.mu.Unlock()
			return nil, ErrExhausted
		}

		// Scan lowest depth first, FIFO within a depth. A host-blocked record
		// is skipped rather than blocking everything behind it; minWait
		// tracks the soonest politeness expiry seen so we know how long to
		// sleep when nothing is eligible.
		minWait := time.Duration(-1)
		for depth := range f.queues {
			for i, rec := range f.queues[depth] {
				claimed, wait, hasEstimate := f.gate.TryClaim(rec.Host)
				if claimed {
					if err := rec.Transition(model.StateInFlight); err != nil {
						// Should be impossible: pending queue only holds
						// StatePending records.
						f.gate.Release(rec.Host)
						f.mu.Unlock()
						return nil, err
					}
					f.queues[depth] = append(f.queues[depth][:i], f.queues[depth][i+1:]...)
					f.pending--
					f.inFlight++
					f.mu.Unlock()
					return &model.CrawlJob{Record: rec}, nil
				}
				if hasEstimate && (minWait < 0 || wait < minWait) {
					minWait = wait
				}
			}
		}

		wake := f.wake
		f.mu.Unlock()

		var timer *time.Timer
		var timeout <-chan time.Time
		if minWait >= 0 {
			timer = time.NewTimer(minWait)
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil, ctx.Err()
		case <-wake:
		case <-timeout:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// Complete releases a claimed record with its outcome. Success outcomes move
// the record to StateFetched (MarkArchived later finalizes it); a transient
// failure re-queues the record until the retry budget is spent; a permanent
// failure kills it immediately.
func (f *Frontier) Complete(surtKey string, outcome model.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[surtKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownURL, surtKey)
	}
	if rec.State != model.StateInFlight {
		return fmt.Errorf("complete called for %s in state %s", rec.URL, rec.State)
	}

	f.gate.Release(rec.Host)
	f.inFlight--
	defer f.wakeAll()

	switch outcome {
	case model.OutcomeArchived, model.OutcomeDeduped, model.OutcomeDropped:
		return rec.Transition(model.StateFetched)

	case model.OutcomeTransient:
		if err := rec.Transition(model.StateFailed); err != nil {
			return err
		}
		if rec.Retries >= f.maxRetries {
			f.logger.Debug("retries exhausted", "url", rec.URL, "retries", rec.Retries)
			return rec.Transition(model.StateDead)
		}
		rec.Retries++
		if err := rec.Transition(model.StatePending); err != nil {
			return err
		}
		f.queues[rec.Depth] = append(f.queues[rec.Depth], rec)
		f.pending++
		return nil

	case model.OutcomePermanent:
		return rec.Transition(model.StateDead)

	default:
		return fmt.Errorf("unknown outcome %d for %s", outcome, rec.URL)
	}
}

// MarkArchived finalizes a fetched record once the archive writer has
// durably appended its record.
func (f *Frontier) MarkArchived(surtKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[surtKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownURL, surtKey)
	}
	return rec.Transition(model.StateArchived)
}

// StateCounts returns how many records are in each state, for crawl
// statistics.
func (f *Frontier) StateCounts() map[model.URLState]int {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[model.URLState]int)
	for _, rec := range f.records {
		counts[rec.State]++
	}
	return counts
}

// Len returns the number of URLs ever admitted.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// wakeAll releases all blocked ClaimNext callers. Callers must hold f.mu.
func (f *Frontier) wakeAll() {
	close(f.wake)
	f.wake = make(chan struct{})
}
