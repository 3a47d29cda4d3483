package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yomogi/webarc/internal/config"
	"github.com/yomogi/webarc/internal/database"
	"github.com/yomogi/webarc/internal/warc"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, seeds ...string) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Seeds = seeds
	cfg.OutputDir = t.TempDir()
	cfg.Workers = 4
	cfg.MaxDepth = 1
	cfg.HostDelay = 0
	cfg.Timeout = 5 * time.Second
	return cfg
}

func runCrawl(t *testing.T, cfg *config.Config) Snapshot {
	t.Helper()
	s, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("unexpected supervisor error: %v", err)
	}
	snap, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected crawl error: %v", err)
	}
	if got := s.State(); got != StateStopped {
		t.Errorf("supervisor should end stopped, got %s", got)
	}
	return snap
}

func scanArchive(t *testing.T, dir string) (responses, revisits []*warc.Record) {
	t.Helper()
	r, err := warc.NewReader(dir)
	if err != nil {
		t.Fatalf("unexpected reader error: %v", err)
	}
	defer r.Close()
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return responses, revisits
		}
		if err != nil {
			t.Fatalf("unexpected scan error: %v", err)
		}
		switch rec.Type() {
		case warc.TypeResponse:
			responses = append(responses, rec)
		case warc.TypeRevisit:
			revisits = append(revisits, rec)
		}
	}
}

// TestCrawlDeduplicatesLinks tests that duplicate links are enqueued once:
// a root page linking twice to /a yields two response records and no
// revisits.
func TestCrawlDeduplicatesLinks(t *testing.T) {
	t.Parallel()

	var rootHits, aHits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		rootHits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/a">one</a><a href="/a">two</a></body></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		aHits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>leaf a</body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	snap := runCrawl(t, cfg)

	if snap.Archived != 2 || snap.Deduped != 0 {
		t.Errorf("expected 2 archived and 0 deduped, got %+v", snap)
	}
	if aHits.Load() != 1 {
		t.Errorf("/a should be fetched once, got %d", aHits.Load())
	}

	responses, revisits := scanArchive(t, cfg.OutputDir)
	if len(responses) != 2 || len(revisits) != 0 {
		t.Errorf("expected 2 response records and 0 revisits, got %d and %d", len(responses), len(revisits))
	}
}

// TestCrawlDeduplicatesContent tests that byte-identical bodies are stored
// once: two distinct seed pages with the same body yield one response record
// and one revisit.
func TestCrawlDeduplicatesContent(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	page := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>identical</body></html>`)
	}
	mux.HandleFunc("/one", page)
	mux.HandleFunc("/two", page)
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/one", server.URL+"/two")
	cfg.MaxDepth = 0
	snap := runCrawl(t, cfg)

	if snap.Archived != 1 || snap.Deduped != 1 {
		t.Errorf("expected 1 archived and 1 deduped, got %+v", snap)
	}

	responses, revisits := scanArchive(t, cfg.OutputDir)
	if len(responses) != 1 || len(revisits) != 1 {
		t.Fatalf("expected 1 response and 1 revisit, got %d and %d", len(responses), len(revisits))
	}
	if revisits[0].PayloadDigest() != responses[0].PayloadDigest() {
		t.Error("revisit should reference the stored record's digest")
	}
}

// TestCrawlRetriesExhaust tests that a URL failing transiently beyond the
// retry budget is given up with no archive record.
func TestCrawlRetriesExhaust(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL+"/flaky")
	cfg.MaxRetries = 2
	snap := runCrawl(t, cfg)

	// maxRetries+1 total attempts.
	if hits.Load() != 3 {
		t.Errorf("expected 3 fetch attempts, got %d", hits.Load())
	}
	if snap.Failed != 1 || snap.Archived != 0 {
		t.Errorf("expected 1 failed and nothing archived, got %+v", snap)
	}

	responses, revisits := scanArchive(t, cfg.OutputDir)
	if len(responses) != 0 || len(revisits) != 0 {
		t.Errorf("archive should be empty, got %d responses and %d revisits", len(responses), len(revisits))
	}
}

// TestCrawlPermanentFailure tests that 4xx pages die immediately without
// retries or records.
func TestCrawlPermanentFailure(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL+"/missing")
	snap := runCrawl(t, cfg)

	if hits.Load() != 1 {
		t.Errorf("404 should not be retried, got %d attempts", hits.Load())
	}
	if snap.Dead != 1 || snap.Archived != 0 {
		t.Errorf("expected 1 dead and nothing archived, got %+v", snap)
	}
}

// TestCrawlDepthLimit tests that links beyond the depth limit are not
// fetched.
func TestCrawlDepthLimit(t *testing.T) {
	t.Parallel()

	var deepHits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<a href="/depth1">next</a>`)
	})
	mux.HandleFunc("/depth1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<a href="/depth2">next</a>`)
	})
	mux.HandleFunc("/depth2", func(w http.ResponseWriter, r *http.Request) {
		deepHits.Add(1)
		fmt.Fprint(w, "too deep")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	cfg.MaxDepth = 1
	snap := runCrawl(t, cfg)

	if deepHits.Load() != 0 {
		t.Error("depth-2 page should never be fetched with max depth 1")
	}
	if snap.Archived != 2 {
		t.Errorf("expected the 2 in-depth pages archived, got %+v", snap)
	}
}

// TestCrawlScopeIsHostBound tests that external hosts are not crawled when
// the scope comes from the seeds.
func TestCrawlScopeIsHostBound(t *testing.T) {
	t.Parallel()

	var outsideHits atomic.Int64
	outside := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		outsideHits.Add(1)
	}))
	defer outside.Close()
	// Same server, different hostname: out of the seed-derived scope.
	outsideURL := strings.Replace(outside.URL, "127.0.0.1", "localhost", 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<a href="%s/external">out</a><a href="/in">in</a>`, outsideURL)
	})
	mux.HandleFunc("/in", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "in scope")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	snap := runCrawl(t, cfg)

	if outsideHits.Load() != 0 {
		t.Error("out-of-scope host should never be fetched")
	}
	if snap.Archived != 2 {
		t.Errorf("expected 2 archived, got %+v", snap)
	}
}

// TestCrawlWritesCatalogAndReport tests the session artifacts next to the
// archive.
func TestCrawlWritesCatalogAndReport(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>hello</html>")
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	cfg.MaxDepth = 0
	runCrawl(t, cfg)

	catalog, err := database.Open(cfg.OutputDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected catalog error: %v", err)
	}
	defer catalog.Close()

	records, err := catalog.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 catalog row, got %d", len(records))
	}
	if records[0].WARCLength == 0 {
		t.Error("catalog row should carry the record's length")
	}

	last, err := catalog.LastCrawl(context.Background())
	if err != nil {
		t.Fatalf("unexpected session query error: %v", err)
	}
	if last == nil || last.Archived != 1 {
		t.Errorf("session row should record 1 archived page: %+v", last)
	}
	if last.FinishedAt.IsZero() {
		t.Error("session should be finished")
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, reportFileName)); err != nil {
		t.Errorf("crawl report should exist: %v", err)
	}
}

// TestCrawlWarmStart tests that a second session over the same output
// directory emits revisit records for already-stored content.
func TestCrawlWarmStart(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>stable content</html>")
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	cfg.MaxDepth = 0

	first := runCrawl(t, cfg)
	if first.Archived != 1 {
		t.Fatalf("first crawl should archive the page, got %+v", first)
	}

	second := runCrawl(t, cfg)
	if second.Archived != 0 || second.Deduped != 1 {
		t.Errorf("second crawl should dedup against the catalog, got %+v", second)
	}

	responses, revisits := scanArchive(t, cfg.OutputDir)
	if len(responses) != 1 || len(revisits) != 1 {
		t.Errorf("expected 1 response and 1 revisit across sessions, got %d and %d", len(responses), len(revisits))
	}
}

// TestCrawlResponsePrecedesRevisits tests archive ordering under concurrent
// workers racing on identical bodies: exactly one full response record per
// digest, written before any revisit that references it.
func TestCrawlResponsePrecedesRevisits(t *testing.T) {
	t.Parallel()

	const pages = 10
	mux := http.NewServeMux()
	for i := 0; i < pages; i++ {
		mux.HandleFunc(fmt.Sprintf("/p%d", i), func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body>same everywhere</body></html>`)
		})
	}
	server := httptest.NewServer(mux)
	defer server.Close()

	seeds := make([]string, pages)
	for i := range seeds {
		seeds[i] = fmt.Sprintf("%s/p%d", server.URL, i)
	}

	cfg := testConfig(t, seeds...)
	cfg.MaxDepth = 0
	cfg.Workers = 8
	cfg.HostConcurrency = 16
	snap := runCrawl(t, cfg)

	if snap.Archived != 1 || snap.Deduped != pages-1 {
		t.Errorf("expected 1 archived and %d deduped, got %+v", pages-1, snap)
	}

	r, err := warc.NewReader(cfg.OutputDir)
	if err != nil {
		t.Fatalf("unexpected reader error: %v", err)
	}
	defer r.Close()

	seen := make(map[string]bool)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected scan error: %v", err)
		}
		switch rec.Type() {
		case warc.TypeResponse:
			if seen[rec.PayloadDigest()] {
				t.Error("second response record for an already-stored digest")
			}
			seen[rec.PayloadDigest()] = true
		case warc.TypeRevisit:
			if !seen[rec.PayloadDigest()] {
				t.Errorf("revisit for %s precedes its response record", rec.PayloadDigest())
			}
		}
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 stored digest, got %d", len(seen))
	}
}

// TestCrawlGraceFinishesInFlightFetch tests that a fetch already in flight
// when the crawl is cancelled still completes and reaches the archive.
func TestCrawlGraceFinishesInFlightFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>slow but done</html>")
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL+"/")
	cfg.MaxDepth = 0
	cfg.GraceTimeout = 5 * time.Second

	s, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("unexpected supervisor error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	snap, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if snap.Archived != 1 {
		t.Errorf("the in-flight fetch should be archived during the grace period, got %+v", snap)
	}

	responses, _ := scanArchive(t, cfg.OutputDir)
	if len(responses) != 1 {
		t.Errorf("expected 1 response record, got %d", len(responses))
	}
}

// TestCrawlCancellation tests that an external stop signal drains the crawl
// and reports a failure status.
func TestCrawlCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig(t, server.URL+"/")
	cfg.GraceTimeout = 2 * time.Second

	s, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("unexpected supervisor error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	if _, err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if got := s.State(); got != StateStopped {
		t.Errorf("supervisor should end stopped, got %s", got)
	}
}

// TestNewValidation tests that invalid configurations are rejected before
// the crawl starts.
func TestNewValidation(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.OutputDir = t.TempDir()
	if _, err := New(cfg, discardLogger()); !errors.Is(err, config.ErrNoSeeds) {
		t.Errorf("expected ErrNoSeeds, got %v", err)
	}

	cfg = config.NewConfig()
	cfg.Seeds = []string{"https://example.com/"}
	cfg.OutputDir = t.TempDir()
	cfg.MaxDepth = -1
	if _, err := New(cfg, discardLogger()); !errors.Is(err, config.ErrInvalidDepth) {
		t.Errorf("expected ErrInvalidDepth, got %v", err)
	}
}
