package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yomogi/webarc/internal/config"
	"github.com/yomogi/webarc/internal/database"
	"github.com/yomogi/webarc/internal/digest"
	"github.com/yomogi/webarc/internal/fetch"
	"github.com/yomogi/webarc/internal/frontier"
	"github.com/yomogi/webarc/internal/model"
	"github.com/yomogi/webarc/internal/report"
	"github.com/yomogi/webarc/internal/script"
	"github.com/yomogi/webarc/internal/warc"
)

// State is the supervisor lifecycle phase.
type State int32

// Lifecycle states, in order.
const (
	StateStarting State = iota
	StateRunning
	StateDraining
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Retry backoff bounds between attempts on the same URL.
const (
	retryBackoffBase = time.Second
	retryBackoffMax  = 30 * time.Second
)

// reportFileName is the crawl summary written into the output directory.
const reportFileName = "report.md"

// ErrNoSeedsInScope is returned when every seed URL fails scope admission.
var ErrNoSeedsInScope = errors.New("crawl: no seed URL passed scope admission")

// Supervisor owns one crawl session.
type Supervisor struct {
	cfg    *config.Config
	logger *slog.Logger

	state atomic.Int32
	stats Stats
}

// New validates the configuration and creates a Supervisor.
func New(cfg *config.Config, logger *slog.Logger) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{cfg: cfg, logger: logger}, nil
}

// State returns the current lifecycle phase.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	s.logger.Debug("supervisor state", "state", st.String())
}

// writeJob carries one fetched page from a worker to the archive writer
// goroutine. The dedup decision and the record itself are made by the
// writer, so claiming a digest and appending its content are a single
// serialized step.
type writeJob struct {
	res  *model.FetchResult
	surt string
}

// Run executes the crawl until the frontier is exhausted, a fatal archive
// error occurs, or the context is cancelled. It always attempts to flush and
// close the archive before returning, so everything durably appended stays
// readable. The returned snapshot is valid even on error.
func (s *Supervisor) Run(ctx context.Context) (Snapshot, error) {
	s.setState(StateStarting)
	defer s.setState(StateStopped)

	startedAt := time.Now()

	catalog, err := database.Open(s.cfg.OutputDir, database.DefaultOptions())
	if err != nil {
		return s.stats.Snapshot(), err
	}
	defer catalog.Close()

	writer, err := warc.NewWriter(s.cfg.OutputDir)
	if err != nil {
		return s.stats.Snapshot(), err
	}
	defer writer.Close()

	// Warm-start dedup from earlier sessions over the same archive, so a
	// resumed crawl emits revisit records instead of re-storing content.
	digests := digest.NewStore()
	known, err := catalog.Digests(ctx)
	if err != nil {
		return s.stats.Snapshot(), err
	}
	for _, d := range known {
		digests.Preload(d)
	}
	if len(known) > 0 {
		s.logger.Info("warm-started digest store from catalog", "digests", len(known))
	}

	engine, err := script.NewEngine(s.cfg.Scripts, s.logger)
	if err != nil {
		return s.stats.Snapshot(), err
	}
	defer engine.Close()

	fetcher := fetch.New(http.DefaultClient, s.cfg.MaxRedirects,
		fetch.WithTimeout(s.cfg.Timeout),
		fetch.WithMaxBodySize(s.cfg.MaxBodySize),
		fetch.WithUserAgent(s.cfg.UserAgent),
		fetch.WithHeaders(s.cfg.Headers),
	)

	front, err := s.buildFrontier()
	if err != nil {
		return s.stats.Snapshot(), err
	}

	sessionID, err := catalog.BeginCrawl(ctx, startedAt, strings.Join(s.cfg.Seeds, " "))
	if err != nil {
		return s.stats.Snapshot(), err
	}

	// The writer goroutine is the single owner of the archive file. A
	// fatal append error cancels the crawl through crawlCancel.
	crawlCtx, crawlCancel := context.WithCancel(ctx)
	defer crawlCancel()

	writeCh := make(chan writeJob, s.cfg.Workers)
	writerDone := make(chan error, 1)
	go s.runWriter(writeCh, writerDone, writer, catalog, digests, front, crawlCancel)

	s.setState(StateRunning)
	s.logger.Info("crawl started",
		"seeds", len(s.cfg.Seeds), "workers", s.cfg.Workers,
		"max_depth", s.cfg.MaxDepth, "output", s.cfg.OutputDir)

	g, gctx := errgroup.WithContext(crawlCtx)

	// Cancellation stops new claims immediately, but pages already being
	// fetched get GraceTimeout to finish and reach the archive.
	fetchCtx, fetchCancel := context.WithCancel(context.WithoutCancel(crawlCtx))
	defer fetchCancel()
	go func() {
		<-gctx.Done()
		timer := time.NewTimer(s.cfg.GraceTimeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			fetchCancel()
		case <-fetchCtx.Done():
		}
	}()

	for i := 0; i < s.cfg.Workers; i++ {
		g.Go(func() error {
			return s.worker(gctx, fetchCtx, front, fetcher, engine, writeCh)
		})
	}
	workErr := g.Wait()
	fetchCancel()

	// Draining: workers are done; give the writer a bounded window to
	// flush what they submitted.
	s.setState(StateDraining)
	close(writeCh)
	var writeErr error
	select {
	case writeErr = <-writerDone:
	case <-time.After(s.cfg.GraceTimeout):
		writeErr = fmt.Errorf("crawl: archive writer did not drain within %s", s.cfg.GraceTimeout)
	}

	archiveSize := writer.Size()
	if err := writer.Close(); err != nil && writeErr == nil {
		writeErr = err
	}

	finishedAt := time.Now()
	interrupted := ctx.Err() != nil
	snap := s.stats.Snapshot()

	if err := catalog.FinishCrawl(context.Background(), sessionID, finishedAt, &database.CrawlSummary{
		Archived: snap.Archived,
		Deduped:  snap.Deduped,
		Dropped:  snap.Dropped,
		Failed:   snap.Failed,
		Dead:     snap.Dead,
	}); err != nil {
		s.logger.Warn("failed to record crawl session", "error", err)
	}

	if err := s.writeReport(startedAt, finishedAt, interrupted, archiveSize, snap); err != nil {
		s.logger.Warn("failed to write crawl report", "error", err)
	}

	s.logger.Info("crawl finished",
		"archived", snap.Archived, "deduped", snap.Deduped, "dropped", snap.Dropped,
		"failed", snap.Failed, "dead", snap.Dead,
		"duration", finishedAt.Sub(startedAt).Round(time.Millisecond))

	// Exit status: archive errors dominate, then cancellation. Normal
	// frontier exhaustion is success even when individual pages failed.
	switch {
	case writeErr != nil:
		return snap, writeErr
	case interrupted:
		return snap, ctx.Err()
	case workErr != nil && !errors.Is(workErr, context.Canceled):
		return snap, workErr
	default:
		return snap, nil
	}
}

// buildFrontier assembles the scope, politeness gate, and frontier, and
// enqueues the seeds. With no configured allow-list, the seeds' own hosts
// define the scope.
func (s *Supervisor) buildFrontier() (*frontier.Frontier, error) {
	scope := frontier.NewScope(s.cfg.AllowedHosts, s.cfg.MaxDepth, s.cfg.ExcludePatterns)
	if len(s.cfg.AllowedHosts) == 0 {
		for _, seed := range s.cfg.Seeds {
			u, err := url.Parse(seed)
			if err != nil {
				return nil, fmt.Errorf("crawl: invalid seed URL %s: %w", seed, err)
			}
			scope.AddHost(u.Hostname())
		}
	}

	gate := frontier.NewHostGate(s.cfg.HostDelay, s.cfg.HostConcurrency)
	front := frontier.New(scope, gate, s.cfg.MaxRetries, s.logger)

	admitted := 0
	for _, seed := range s.cfg.Seeds {
		if front.Enqueue(seed, "", 0) {
			admitted++
		} else {
			s.logger.Warn("seed rejected by scope", "seed", seed)
		}
	}
	if admitted == 0 {
		return nil, ErrNoSeedsInScope
	}
	return front, nil
}

// worker is one fetch loop: claim, fetch, evaluate, submit. It exits on
// frontier exhaustion (nil) or context cancellation. New jobs are claimed
// under ctx; the page already in hand proceeds under fetchCtx, which
// outlives a stop signal by the grace period.
func (s *Supervisor) worker(
	ctx, fetchCtx context.Context,
	front *frontier.Frontier,
	fetcher *fetch.Fetcher,
	engine *script.Engine,
	writeCh chan<- writeJob,
) error {
	for {
		job, err := front.ClaimNext(ctx)
		if errors.Is(err, frontier.ErrExhausted) {
			return nil
		}
		if err != nil {
			return err
		}
		rec := job.Record

		// Space retry attempts out beyond the politeness delay.
		if rec.Retries > 0 {
			backoff := fetch.Backoff(rec.Retries, retryBackoffBase, retryBackoffMax)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				s.complete(front, rec, model.OutcomeTransient)
				return ctx.Err()
			}
		}

		res, err := fetcher.Fetch(fetchCtx, rec.URL)
		if err != nil {
			outcome := fetch.Classify(0, err)
			s.logger.Debug("fetch failed", "url", rec.URL, "outcome", outcome.String(), "error", err)
			s.complete(front, rec, outcome)
			if fetchCtx.Err() != nil {
				return fetchCtx.Err()
			}
			continue
		}

		if outcome := fetch.Classify(res.StatusCode, nil); outcome != model.OutcomeArchived {
			s.logger.Debug("fetch returned error status", "url", rec.URL, "status", res.StatusCode)
			s.complete(front, rec, outcome)
			continue
		}

		links, keep, evalErr := engine.Evaluate(fetchCtx, res)
		if evalErr != nil && fetchCtx.Err() != nil {
			s.complete(front, rec, model.OutcomeTransient)
			return fetchCtx.Err()
		}
		for _, link := range links {
			front.Enqueue(link, res.URL, rec.Depth+1)
		}
		if !keep {
			s.stats.dropped.Add(1)
			s.complete(front, rec, model.OutcomeDropped)
			continue
		}

		// Report the outcome before submitting, so the writer's archived
		// confirmation never races the in-flight state. The send cannot
		// block forever: the writer consumes until the channel is closed,
		// even after a fatal append error.
		s.complete(front, rec, model.OutcomeArchived)
		select {
		case writeCh <- writeJob{res: res, surt: rec.SURT}:
		case <-fetchCtx.Done():
			// Abandoned before submission; nothing reaches the archive
			// and no digest was claimed.
			return fetchCtx.Err()
		}
	}
}

// complete reports a job outcome to the frontier and keeps the failure
// counters in step with what the frontier will decide.
func (s *Supervisor) complete(front *frontier.Frontier, rec *model.URLRecord, outcome model.Outcome) {
	switch outcome {
	case model.OutcomePermanent:
		s.stats.dead.Add(1)
	case model.OutcomeTransient:
		if rec.Retries >= s.cfg.MaxRetries {
			// This attempt exhausted the budget; the frontier marks it
			// dead.
			s.stats.failed.Add(1)
		}
	}
	if err := front.Complete(rec.SURT, outcome); err != nil {
		s.logger.Error("frontier rejected completion", "url", rec.URL, "error", err)
	}
}

// runWriter is the archive file's single owner. For every job it claims the
// content digest, builds the response or revisit record, appends it, catalogs
// it, and confirms it to the frontier, in that order. Claiming the digest
// here rather than in the workers means claim and append are one serialized
// step: the full response record always precedes every revisit referencing
// its digest, and a claim can never be abandoned between the two. An append
// error is fatal: the crawl is cancelled and the remaining jobs discarded.
func (s *Supervisor) runWriter(
	jobs <-chan writeJob,
	done chan<- error,
	writer *warc.Writer,
	catalog *database.Catalog,
	digests *digest.Store,
	front *frontier.Frontier,
	cancel context.CancelFunc,
) {
	var fatal error
	for job := range jobs {
		if fatal != nil {
			continue
		}

		d, isNew := digests.RecordOrDedup(job.res.Body)
		var rec *warc.Record
		if isNew {
			rec = warc.NewResponse(job.res, d)
		} else {
			rec = warc.NewRevisit(job.res, d)
		}

		pos, err := writer.Append(rec)
		if err != nil {
			s.logger.Error("archive append failed, draining crawl", "url", job.res.FinalURL, "error", err)
			fatal = err
			cancel()
			continue
		}

		// The catalog is rebuildable from the archive; a failed insert is
		// not worth killing the crawl over.
		if _, err := catalog.InsertRecord(context.Background(), &database.Record{
			SURT:        job.surt,
			URL:         job.res.FinalURL,
			Digest:      d,
			StatusCode:  job.res.StatusCode,
			ContentType: job.res.ContentType(),
			WARCOffset:  pos.Offset,
			WARCLength:  pos.Length,
			Revisit:     !isNew,
			FetchedAt:   job.res.FetchedAt,
		}); err != nil {
			s.logger.Warn("catalog insert failed", "url", job.res.FinalURL, "error", err)
		}

		if err := front.MarkArchived(job.surt); err != nil {
			s.logger.Warn("could not mark record archived", "url", job.res.FinalURL, "error", err)
		}

		if isNew {
			s.stats.archived.Add(1)
		} else {
			s.stats.deduped.Add(1)
		}
	}
	done <- fatal
}

// writeReport renders the session summary next to the archive.
func (s *Supervisor) writeReport(startedAt, finishedAt time.Time, interrupted bool, archiveSize int64, snap Snapshot) error {
	f, err := os.Create(filepath.Join(s.cfg.OutputDir, reportFileName))
	if err != nil {
		return err
	}
	defer f.Close()

	return report.NewWriter(f).Write(&report.Summary{
		Seeds:       s.cfg.Seeds,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		Interrupted: interrupted,
		Archived:    snap.Archived,
		Deduped:     snap.Deduped,
		Dropped:     snap.Dropped,
		Failed:      snap.Failed,
		Dead:        snap.Dead,
		ArchiveSize: archiveSize,
		OutputDir:   s.cfg.OutputDir,
	})
}
