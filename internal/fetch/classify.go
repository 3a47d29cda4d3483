package fetch

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/url"
	"time"

	"github.com/yomogi/webarc/internal/model"
)

// Classify maps a fetch attempt to an outcome. A nil err classifies the HTTP
// status: 2xx and 3xx archive, 5xx is transient, everything else permanent.
// A non-nil err classifies the failure mode: timeouts and connection errors
// are transient, redirect loops and oversized bodies permanent.
func Classify(statusCode int, err error) model.Outcome {
	if err != nil {
		switch {
		case errors.Is(err, ErrTooManyRedirects), errors.Is(err, ErrBodyTooLarge):
			return model.OutcomePermanent
		case errors.Is(err, context.DeadlineExceeded):
			return model.OutcomeTransient
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return model.OutcomeTransient
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			// Connection refused, reset, DNS failure: the host may recover.
			return model.OutcomeTransient
		}
		return model.OutcomePermanent
	}

	switch {
	case statusCode >= 500:
		return model.OutcomeTransient
	case statusCode >= 400:
		return model.OutcomePermanent
	default:
		return model.OutcomeArchived
	}
}

// Backoff returns how long to wait before retry number attempt (1-based).
// The schedule is exponential from base with full jitter, capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base << (attempt - 1)
	if d > max || d <= 0 {
		d = max
	}
	// Full jitter spreads retries from concurrent workers apart.
	return time.Duration(rand.Int63n(int64(d)) + 1)
}
