// Package ratectl turns the feed's remaining-quota headers into the next
// poll interval and a one-shot low-quota alert.
package ratectl

import (
	"strconv"
	"strings"
	"time"
)

type state int

const (
	unknown state = iota
	known
	malformed
)

// Remaining is one remaining-quota header value: a known count, Unknown
// (header absent) or Malformed (present but not an integer).
type Remaining struct {
	st  state
	val int64
	raw string
}

func Known(n int64) Remaining { return Remaining{st: known, val: n} }

// Unknown is treated as unlimited.
func Unknown() Remaining { return Remaining{} }

func Malformed(raw string) Remaining { return Remaining{st: malformed, raw: raw} }

// ParseRemaining reads a header value. Empty means absent.
func ParseRemaining(raw string) Remaining {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Unknown()
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Malformed(raw)
	}
	return Known(n)
}

func (r Remaining) IsKnown() bool     { return r.st == known }
func (r Remaining) IsMalformed() bool { return r.st == malformed }

// Value returns the count; ok is false unless the value is known.
func (r Remaining) Value() (int64, bool) { return r.val, r.st == known }

func (r Remaining) below(limit int64) bool { return r.st == known && r.val < limit }

func (r Remaining) String() string {
	switch r.st {
	case known:
		return strconv.FormatInt(r.val, 10)
	case malformed:
		return "malformed(" + r.raw + ")"
	default:
		return "unknown"
	}
}

// Signal is the quota side channel of one fetch.
type Signal struct {
	PerCaller Remaining
	Global    Remaining
}

type Band string

const (
	BandLow      Band = "low"
	BandMedium   Band = "medium"
	BandNormal   Band = "normal"
	BandFallback Band = "fallback"
)

const (
	IntervalNormal = 30 * time.Second
	IntervalMedium = 60 * time.Second
	IntervalLow    = 180 * time.Second

	lowPerCaller    = 10
	lowGlobal       = 100
	mediumPerCaller = 100
	mediumGlobal    = 500
)

type Decision struct {
	Interval time.Duration
	// Alert is set on the cycle that enters the low band.
	Alert bool
	// AlertSent is the flag value to carry into the next cycle once the
	// alert, if any, has been delivered.
	AlertSent bool
	Band      Band
}

// Decide maps sig to the next interval. alertSent is the flag carried from
// the previous cycle.
func Decide(sig Signal, alertSent bool) Decision {
	if sig.PerCaller.IsMalformed() || sig.Global.IsMalformed() {
		return Decision{Interval: IntervalNormal, AlertSent: alertSent, Band: BandFallback}
	}
	switch {
	case sig.PerCaller.below(lowPerCaller) || sig.Global.below(lowGlobal):
		return Decision{Interval: IntervalLow, Alert: !alertSent, AlertSent: true, Band: BandLow}
	case sig.PerCaller.below(mediumPerCaller) || sig.Global.below(mediumGlobal):
		return Decision{Interval: IntervalMedium, Band: BandMedium}
	default:
		return Decision{Interval: IntervalNormal, Band: BandNormal}
	}
}
