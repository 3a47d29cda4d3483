// Package crawl runs a crawl session end to end. The Supervisor wires the
// frontier, fetch workers, policy engine, digest store, archive writer, and
// catalog together, drives the Starting → Running → Draining → Stopped
// lifecycle, and turns the session into an archive directory plus a summary
// report.
//
// Concurrency layout: many fetch workers run in parallel; the frontier
// serializes its own state behind a mutex, and the archive file has a single
// owning goroutine fed by a channel, so exactly one writer ever touches the
// output stream. Records are written in fetch-completion order: the order
// they arrive on the writer channel.
package crawl
