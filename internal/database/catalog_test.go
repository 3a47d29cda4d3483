package database

import (
	"context"
	"testing"
	"time"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestOpen tests catalog creation modes.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates the catalog by default", func(t *testing.T) {
		t.Parallel()
		openTestCatalog(t)
	})

	t.Run("refuses a missing catalog without create", func(t *testing.T) {
		t.Parallel()

		opts := DefaultOptions()
		opts.CreateIfNotExists = false
		if _, err := Open(t.TempDir(), opts); err == nil {
			t.Error("expected an error for a missing catalog")
		}
	})
}

// TestRecords tests insert and ordered retrieval.
func TestRecords(t *testing.T) {
	t.Parallel()

	c := openTestCatalog(t)
	ctx := context.Background()

	fetchedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	rows := []*Record{
		{SURT: "com,example)/b", URL: "https://example.com/b", Digest: "sha256:bbb", StatusCode: 200, ContentType: "text/html", WARCOffset: 512, WARCLength: 256, FetchedAt: fetchedAt.Add(time.Second)},
		{SURT: "com,example)/a", URL: "https://example.com/a", Digest: "sha256:aaa", StatusCode: 200, ContentType: "text/html", WARCOffset: 0, WARCLength: 512, FetchedAt: fetchedAt},
		{SURT: "com,example)/c", URL: "https://example.com/c", Digest: "sha256:aaa", StatusCode: 200, ContentType: "text/html", WARCOffset: 768, WARCLength: 64, Revisit: true, FetchedAt: fetchedAt.Add(2 * time.Second)},
	}
	for _, row := range rows {
		if _, err := c.InsertRecord(ctx, row); err != nil {
			t.Fatalf("unexpected insert error: %v", err)
		}
	}

	got, err := c.Records(ctx)
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	// Archive order, not insert order.
	if got[0].SURT != "com,example)/a" || got[1].SURT != "com,example)/b" || got[2].SURT != "com,example)/c" {
		t.Errorf("records out of archive order: %s, %s, %s", got[0].SURT, got[1].SURT, got[2].SURT)
	}
	if !got[2].Revisit {
		t.Error("revisit flag should round-trip")
	}
	if !got[0].FetchedAt.Equal(fetchedAt) {
		t.Errorf("fetched_at should round-trip, got %v", got[0].FetchedAt)
	}

	n, err := c.Count(ctx)
	if err != nil {
		t.Fatalf("unexpected count error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected count 3, got %d", n)
	}
}

// TestDigests tests the warm-start digest query.
func TestDigests(t *testing.T) {
	t.Parallel()

	c := openTestCatalog(t)
	ctx := context.Background()

	now := time.Now()
	inserts := []*Record{
		{SURT: "com,example)/a", URL: "https://example.com/a", Digest: "sha256:aaa", WARCOffset: 0, WARCLength: 1, FetchedAt: now},
		{SURT: "com,example)/b", URL: "https://example.com/b", Digest: "sha256:aaa", WARCOffset: 1, WARCLength: 1, Revisit: true, FetchedAt: now.Add(time.Second)},
		{SURT: "com,example)/c", URL: "https://example.com/c", Digest: "sha256:ccc", WARCOffset: 2, WARCLength: 1, FetchedAt: now.Add(2 * time.Second)},
	}
	for _, row := range inserts {
		if _, err := c.InsertRecord(ctx, row); err != nil {
			t.Fatalf("unexpected insert error: %v", err)
		}
	}

	digests, err := c.Digests(ctx)
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	// Only full records count; the revisit row references sha256:aaa but
	// does not store it.
	if len(digests) != 2 {
		t.Fatalf("expected 2 digests, got %v", digests)
	}
}

// TestCrawlSessions tests session bookkeeping.
func TestCrawlSessions(t *testing.T) {
	t.Parallel()

	c := openTestCatalog(t)
	ctx := context.Background()

	if s, err := c.LastCrawl(ctx); err != nil || s != nil {
		t.Fatalf("expected no sessions yet, got (%+v, %v)", s, err)
	}

	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	id, err := c.BeginCrawl(ctx, started, "https://example.com/")
	if err != nil {
		t.Fatalf("unexpected begin error: %v", err)
	}

	summary := &CrawlSummary{Archived: 10, Deduped: 2, Dropped: 1, Failed: 3, Dead: 1}
	if err := c.FinishCrawl(ctx, id, started.Add(time.Minute), summary); err != nil {
		t.Fatalf("unexpected finish error: %v", err)
	}

	last, err := c.LastCrawl(ctx)
	if err != nil {
		t.Fatalf("unexpected query error: %v", err)
	}
	if last == nil {
		t.Fatal("expected a session row")
	}
	if last.ID != id || last.Archived != 10 || last.Dead != 1 {
		t.Errorf("unexpected session: %+v", last)
	}
	if !last.StartedAt.Equal(started) || !last.FinishedAt.Equal(started.Add(time.Minute)) {
		t.Errorf("timestamps should round-trip: %+v", last)
	}
	if last.Seeds != "https://example.com/" {
		t.Errorf("unexpected seeds: %s", last.Seeds)
	}
}
