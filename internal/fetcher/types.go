// Package fetcher performs one request against the stock feed and
// classifies the result as ok, transient or rate-limited.
package fetcher

import (
	"errors"
	"time"

	"gagbot/internal/ratectl"
	"gagbot/internal/stock"
)

// ErrTransient wraps every failure that means "no data this cycle":
// transport errors, non-2xx statuses, bad bodies and an open breaker.
var ErrTransient = errors.New("transient fetch failure")

type Status int

const (
	StatusOK Status = iota
	StatusTransient
	StatusRateLimited
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTransient:
		return "transient"
	case StatusRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Outcome is the result of one fetch. Snapshot is set only for StatusOK,
// RetryAfter only for StatusRateLimited and Err only for StatusTransient.
// Transient outcomes carry unknown signals.
type Outcome struct {
	Status     Status
	Snapshot   stock.Snapshot
	Signal     ratectl.Signal
	RetryAfter time.Duration
	Err        error
}

const (
	HeaderRemainingIP     = "Ratelimit-Remaining-Ip"
	HeaderRemainingGlobal = "Ratelimit-Remaining-Global"
	HeaderRetryAfter      = "Retry-After"
)
