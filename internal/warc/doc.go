// Package warc reads and writes the crawl archive: a single append-only
// file of WARC/1.1-style records, one gzip member per record. Response
// records carry the full HTTP exchange; revisit records reference earlier
// content by payload digest instead of storing it again.
//
// The member-per-record layout means any record can be decompressed on its
// own given its byte offset, which is what the export index points at.
package warc
