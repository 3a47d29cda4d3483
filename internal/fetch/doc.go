// Package fetch retrieves page content over HTTP. It owns the HTTP client
// configuration (timeouts, redirect cap, body size cap, request headers),
// classifies fetch failures as transient or permanent, and provides the
// backoff schedule for transient retries.
package fetch
