// Package model defines the core data structures shared across the crawl
// pipeline.
//
// This package contains the following main types:
//   - URLRecord: A discovered URL with its lifecycle state and retry count
//   - CrawlJob: A URLRecord claimed by exactly one fetch worker
//   - FetchResult: The outcome of a single fetch attempt
//   - Outcome: The terminal classification a worker reports back
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (frontier, fetch, script, warc) need these
// types, so centralizing them prevents import cycles.
package model
