package ratectl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sig(perCaller, global Remaining) Signal { return Signal{PerCaller: perCaller, Global: global} }

func TestDecideTable(t *testing.T) {
	tests := []struct {
		name      string
		sig       Signal
		alertSent bool
		want      Decision
	}{
		{"unknown both", sig(Unknown(), Unknown()), false, Decision{Interval: 30 * time.Second, Band: BandNormal}},
		{"plenty", sig(Known(1000), Known(100000)), true, Decision{Interval: 30 * time.Second, Band: BandNormal}},
		{"per caller low", sig(Known(9), Known(1000)), false, Decision{Interval: 180 * time.Second, Alert: true, AlertSent: true, Band: BandLow}},
		{"global low", sig(Unknown(), Known(99)), false, Decision{Interval: 180 * time.Second, Alert: true, AlertSent: true, Band: BandLow}},
		{"low already alerted", sig(Known(0), Known(1000)), true, Decision{Interval: 180 * time.Second, AlertSent: true, Band: BandLow}},
		{"per caller medium", sig(Known(10), Known(1000)), true, Decision{Interval: 60 * time.Second, Band: BandMedium}},
		{"global medium", sig(Known(500), Known(100)), false, Decision{Interval: 60 * time.Second, Band: BandMedium}},
		{"global at medium bound", sig(Known(100), Known(500)), false, Decision{Interval: 30 * time.Second, Band: BandNormal}},
		{"negative counts as low", sig(Known(-1), Unknown()), false, Decision{Interval: 180 * time.Second, Alert: true, AlertSent: true, Band: BandLow}},
		{"malformed keeps flag", sig(Malformed("x"), Known(1)), true, Decision{Interval: 30 * time.Second, AlertSent: true, Band: BandFallback}},
		{"malformed keeps clear flag", sig(Known(1), Malformed("1.5")), false, Decision{Interval: 30 * time.Second, Band: BandFallback}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.sig, tt.alertSent))
		})
	}
}

func TestDecideEdgeTriggeredSequence(t *testing.T) {
	flag := false

	d := Decide(sig(Known(9), Known(1000)), flag)
	assert.Equal(t, 180*time.Second, d.Interval)
	assert.True(t, d.Alert)
	flag = d.AlertSent

	d = Decide(sig(Known(9), Known(1000)), flag)
	assert.Equal(t, 180*time.Second, d.Interval)
	assert.False(t, d.Alert, "alert must not re-fire while staying low")
	flag = d.AlertSent

	d = Decide(sig(Known(50), Known(1000)), flag)
	assert.Equal(t, 60*time.Second, d.Interval)
	assert.False(t, d.Alert)
	assert.False(t, d.AlertSent)
	flag = d.AlertSent

	d = Decide(sig(Known(5), Known(1000)), flag)
	assert.True(t, d.Alert, "alert re-arms after clearing")
}

func TestParseRemaining(t *testing.T) {
	r := ParseRemaining(" 42 ")
	v, ok := r.Value()
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)
	assert.Equal(t, "42", r.String())

	r = ParseRemaining("")
	assert.False(t, r.IsKnown())
	assert.False(t, r.IsMalformed())
	assert.Equal(t, "unknown", r.String())

	r = ParseRemaining("ten")
	assert.True(t, r.IsMalformed())
	_, ok = r.Value()
	assert.False(t, ok)
	assert.Equal(t, "malformed(ten)", r.String())
}
