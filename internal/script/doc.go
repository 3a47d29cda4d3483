// Package script evaluates the traversal policy against fetched pages. It
// produces the candidate links to enqueue and the per-page archive decision.
//
// Two evaluator kinds exist: a built-in HTML link extractor, and external
// policy scripts run as child processes speaking a framed binary protocol on
// stdin/stdout. Scripts are sandboxed to pure evaluation: they receive page
// bytes and answer with URLs and a keep/drop decision, nothing else. A
// script failure is confined to the page being evaluated.
package script
