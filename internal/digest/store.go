// Package digest implements the content-addressed deduplication store.
//
// Every fetched body is hashed; the first caller to record a given digest
// stores the full content, every later caller gets a revisit reference.
// The store is the single source of truth for "have we stored this content
// before" and must behave correctly under concurrent use by many workers.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Prefix is prepended to the hex digest in its textual form, matching the
// WARC-Block-Digest labelled-digest convention.
const Prefix = "sha256:"

// Sum returns the textual content digest of body: "sha256:" followed by the
// lowercase hex encoding of the SHA-256 hash.
func Sum(body []byte) string {
	h := sha256.Sum256(body)
	return Prefix + hex.EncodeToString(h[:])
}

// Store tracks which content digests have already been stored.
//
// Design decision: A mutex-guarded map rather than sync.Map because the
// access pattern is a single read-modify-write per fetch, and we need the
// "exactly one caller observes isNew" guarantee, which a plain map under a
// lock states most directly.
type Store struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{seen: make(map[string]struct{})}
}

// RecordOrDedup computes the digest of body and records it. Exactly one
// caller for any given digest observes isNew == true; all others observe
// false and receive the same digest string for cross-referencing.
func (s *Store) RecordOrDedup(body []byte) (digest string, isNew bool) {
	digest = Sum(body)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[digest]; ok {
		return digest, false
	}
	s.seen[digest] = struct{}{}
	return digest, true
}

// Preload marks a digest as already stored. Used to warm-start the store
// from a previous crawl's catalog so re-crawls emit revisit records.
func (s *Store) Preload(digest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[digest] = struct{}{}
}

// Len returns the number of distinct digests recorded so far.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
