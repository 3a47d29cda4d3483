package model

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FetchResult holds everything a single successful fetch produced. It is
// transient: the claiming worker owns it until it has been handed to the
// digest store and archive writer, after which it is consumed.
type FetchResult struct {
	// ID identifies the resulting archive record (WARC-Record-ID).
	ID uuid.UUID

	// URL is the URL that was requested.
	URL string

	// FinalURL is the URL after following redirects. Equal to URL when no
	// redirect occurred.
	FinalURL string

	// StatusCode is the HTTP response status.
	StatusCode int

	// Proto is the HTTP protocol version of the response, e.g. "HTTP/1.1".
	Proto string

	// Headers are the response headers.
	Headers http.Header

	// Body is the response body, capped at the configured maximum size.
	Body []byte

	// Duration is how long the fetch took.
	Duration time.Duration

	// FetchedAt is the time the request was started (WARC-Date).
	FetchedAt time.Time
}

// ContentType returns the response Content-Type header without parameters,
// lowercased, or an empty string when absent.
func (fr *FetchResult) ContentType() string {
	ct, _, _ := strings.Cut(fr.Headers.Get("Content-Type"), ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

// Outcome classifies how a claimed job ended. The frontier uses it to decide
// the next state of the URLRecord; the supervisor uses it for statistics.
type Outcome int

const (
	// OutcomeArchived means the content was fetched and a full response
	// record was written.
	OutcomeArchived Outcome = iota

	// OutcomeDeduped means the content was fetched but its digest was already
	// stored, so only a revisit record was written.
	OutcomeDeduped

	// OutcomeDropped means the traversal policy decided not to archive the
	// page. Extracted links may still have been enqueued.
	OutcomeDropped

	// OutcomeTransient means the fetch failed in a retryable way (timeout,
	// connection error, 5xx).
	OutcomeTransient

	// OutcomePermanent means the fetch failed in a non-retryable way (4xx,
	// redirect loop, oversized body).
	OutcomePermanent
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeArchived:
		return "archived"
	case OutcomeDeduped:
		return "deduped"
	case OutcomeDropped:
		return "dropped"
	case OutcomeTransient:
		return "transient-failure"
	case OutcomePermanent:
		return "permanent-failure"
	default:
		return "unknown"
	}
}
