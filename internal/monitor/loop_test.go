package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gagbot/internal/eventbus"
	"gagbot/internal/fetcher"
	"gagbot/internal/prefs"
	"gagbot/internal/ratectl"
	"gagbot/internal/stock"
	kit "gagbot/internal/transport"
)

type scripted struct {
	outs []fetcher.Outcome
	i    int
}

func (s *scripted) Fetch(context.Context) fetcher.Outcome {
	if s.i >= len(s.outs) {
		return s.outs[len(s.outs)-1]
	}
	o := s.outs[s.i]
	s.i++
	return o
}

type sink struct {
	mu    sync.Mutex
	fail  int
	sent  []kit.Notification
	tries int
}

func (s *sink) Deliver(_ context.Context, n kit.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tries++
	if s.fail > 0 {
		s.fail--
		return errors.New("telegram down")
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *sink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, n := range s.sent {
		out = append(out, n.Kind)
	}
	return out
}

type staticPrefs []string

func (p staticPrefs) Names() []string { return p }

var target = kit.ChatTarget{ChatID: 99}

func okOutcome(snap stock.Snapshot, sig ratectl.Signal) fetcher.Outcome {
	return fetcher.Outcome{Status: fetcher.StatusOK, Snapshot: snap, Signal: sig}
}

var plenty = ratectl.Signal{PerCaller: ratectl.Known(1000), Global: ratectl.Known(100000)}

func carrots(n int) stock.Snapshot {
	return stock.Snapshot{stock.Seeds: {{DisplayName: "Carrot", Quantity: n}}}
}

func TestStepDeliversChangeOnce(t *testing.T) {
	f := &scripted{outs: []fetcher.Outcome{okOutcome(carrots(5), plenty), okOutcome(carrots(5), plenty), okOutcome(carrots(6), plenty)}}
	s := &sink{}
	l := New(f, s, staticPrefs{"carrot"}, Config{Target: target})

	assert.Equal(t, 30*time.Second, l.Step(context.Background()))
	assert.Equal(t, 30*time.Second, l.Step(context.Background()))
	l.Step(context.Background())

	require.Equal(t, []string{KindStock, KindStock}, s.kinds())
	assert.Contains(t, s.sent[0].Text, "🥕 Carrot x5")
	assert.Contains(t, s.sent[1].Text, "🥕 Carrot x6")
	assert.Equal(t, target, s.sent[0].Target)
	assert.Equal(t, kit.ParseModeHTML, s.sent[0].Options.ParseMode)
	assert.Equal(t, uint64(2), l.Stats().Deliveries)
}

func TestStepIdleWhenNothingRelevant(t *testing.T) {
	f := &scripted{outs: []fetcher.Outcome{okOutcome(carrots(5), plenty)}}
	s := &sink{}
	l := New(f, s, staticPrefs{"Tomato"}, Config{Target: target})

	l.Step(context.Background())
	assert.Empty(t, s.sent)
	assert.Nil(t, l.State().LastDelivered)
}

func TestStepDeliveryFailureKeepsBaseline(t *testing.T) {
	f := &scripted{outs: []fetcher.Outcome{okOutcome(carrots(5), plenty)}}
	s := &sink{fail: 1}
	l := New(f, s, staticPrefs{}, Config{Target: target})

	l.Step(context.Background())
	assert.Empty(t, s.sent)
	assert.Nil(t, l.State().LastDelivered)

	l.Step(context.Background())
	require.Len(t, s.sent, 1, "unsent change is retried against the same baseline")
	assert.Equal(t, carrots(5), l.State().LastDelivered)
}

func TestStepRateLimitedSleepsRetryAfter(t *testing.T) {
	f := &scripted{outs: []fetcher.Outcome{{Status: fetcher.StatusRateLimited, RetryAfter: 45 * time.Second, Signal: ratectl.Signal{PerCaller: ratectl.Known(0)}}}}
	s := &sink{}
	l := New(f, s, staticPrefs{}, Config{Target: target})

	assert.Equal(t, 45*time.Second, l.Step(context.Background()))
	assert.Empty(t, s.sent, "rate limited cycles skip the quota alert")
	assert.False(t, l.State().LowQuotaAlertSent)
}

func TestStepTransientFallsBackToNormalInterval(t *testing.T) {
	f := &scripted{outs: []fetcher.Outcome{
		okOutcome(carrots(5), ratectl.Signal{PerCaller: ratectl.Known(50)}),
		{Status: fetcher.StatusTransient, Err: fetcher.ErrTransient},
	}}
	s := &sink{}
	l := New(f, s, staticPrefs{}, Config{Target: target})

	assert.Equal(t, 60*time.Second, l.Step(context.Background()))
	assert.Equal(t, 30*time.Second, l.Step(context.Background()))
	assert.Equal(t, "transient", l.Stats().LastStatus)
	assert.Len(t, s.sent, 1)
}

func TestLowQuotaAlertIsEdgeTriggered(t *testing.T) {
	low := ratectl.Signal{PerCaller: ratectl.Known(9), Global: ratectl.Known(1000)}
	mid := ratectl.Signal{PerCaller: ratectl.Known(50), Global: ratectl.Known(1000)}
	f := &scripted{outs: []fetcher.Outcome{
		okOutcome(nil, low),
		okOutcome(nil, low),
		okOutcome(nil, mid),
		okOutcome(nil, low),
	}}
	s := &sink{}
	l := New(f, s, staticPrefs{}, Config{Target: target})

	assert.Equal(t, 180*time.Second, l.Step(context.Background()))
	assert.Equal(t, 180*time.Second, l.Step(context.Background()))
	assert.Equal(t, []string{"quota"}, s.kinds())
	assert.Contains(t, s.sent[0].Text, "API rate limit near!")
	assert.Contains(t, s.sent[0].Text, "IP: 9, Global: 1000")

	assert.Equal(t, 60*time.Second, l.Step(context.Background()))
	assert.False(t, l.State().LowQuotaAlertSent)

	l.Step(context.Background())
	assert.Equal(t, []string{"quota", "quota"}, s.kinds())
}

func TestLowQuotaAlertRetriesAfterFailedDelivery(t *testing.T) {
	low := ratectl.Signal{PerCaller: ratectl.Known(1)}
	f := &scripted{outs: []fetcher.Outcome{okOutcome(nil, low)}}
	s := &sink{fail: 1}
	l := New(f, s, staticPrefs{}, Config{Target: target})

	l.Step(context.Background())
	assert.False(t, l.State().LowQuotaAlertSent)
	l.Step(context.Background())
	assert.True(t, l.State().LowQuotaAlertSent)
	l.Step(context.Background())
	assert.Equal(t, 2, s.tries)
	assert.Len(t, s.sent, 1)
}

func TestMalformedQuotaKeepsFlag(t *testing.T) {
	f := &scripted{outs: []fetcher.Outcome{
		okOutcome(nil, ratectl.Signal{PerCaller: ratectl.Known(1)}),
		okOutcome(nil, ratectl.Signal{PerCaller: ratectl.Malformed("?")}),
		okOutcome(nil, ratectl.Signal{PerCaller: ratectl.Known(1)}),
	}}
	s := &sink{}
	l := New(f, s, staticPrefs{}, Config{Target: target})

	l.Step(context.Background())
	assert.Equal(t, 30*time.Second, l.Step(context.Background()))
	assert.True(t, l.State().LowQuotaAlertSent)
	l.Step(context.Background())
	assert.Len(t, s.sent, 1)
}

func TestPreferencesAreReadEachCycle(t *testing.T) {
	p := prefs.New(nil)
	p.Toggle("Tomato")
	f := &scripted{outs: []fetcher.Outcome{okOutcome(carrots(5), plenty)}}
	s := &sink{}
	l := New(f, s, p, Config{Target: target})

	l.Step(context.Background())
	assert.Empty(t, s.sent)

	p.Toggle("Carrot")
	l.Step(context.Background())
	assert.Len(t, s.sent, 1)
}

func TestStepPublishesEvents(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8, eventbus.TypeStockChanged, eventbus.TypeRateLimited)
	defer unsub()

	f := &scripted{outs: []fetcher.Outcome{
		okOutcome(carrots(1), plenty),
		{Status: fetcher.StatusRateLimited, RetryAfter: time.Second},
	}}
	l := New(f, &sink{}, staticPrefs{}, Config{Target: target}, WithBus(bus))
	l.Step(context.Background())
	l.Step(context.Background())

	assert.Equal(t, eventbus.TypeStockChanged, (<-ch).Type)
	assert.Equal(t, eventbus.TypeRateLimited, (<-ch).Type)
}

func TestStepPublishesIdle(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8, eventbus.TypeStockIdle, eventbus.TypeStockChanged)
	defer unsub()

	f := &scripted{outs: []fetcher.Outcome{okOutcome(carrots(1), plenty), okOutcome(carrots(1), plenty)}}
	l := New(f, &sink{}, staticPrefs{"Carrot"}, Config{Target: target}, WithBus(bus))
	l.Step(context.Background())
	l.Step(context.Background())

	assert.Equal(t, eventbus.TypeStockChanged, (<-ch).Type)
	e := <-ch
	assert.Equal(t, eventbus.TypeStockIdle, e.Type)
	assert.Equal(t, 1, e.Data)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &scripted{outs: []fetcher.Outcome{okOutcome(carrots(1), plenty)}}
	var slept []time.Duration
	l := New(f, &sink{}, staticPrefs{}, Config{Target: target},
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			if len(slept) == 3 {
				cancel()
			}
			return ctx.Err()
		}),
	)

	err := l.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second, 30 * time.Second}, slept)
	assert.Equal(t, uint64(3), l.Stats().Cycles)
}

func TestRunReturnsImmediatelyWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &scripted{outs: []fetcher.Outcome{okOutcome(carrots(1), plenty)}}
	l := New(f, &sink{}, staticPrefs{}, Config{Target: target})

	assert.ErrorIs(t, l.Run(ctx), context.Canceled)
	assert.Equal(t, uint64(0), l.Stats().Cycles)
}

func TestSleepCtxInterruptible(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	err := sleepCtx(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// End to end through the real fetcher.

func feed(t *testing.T, h http.HandlerFunc) *fetcher.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return fetcher.New(fetcher.WithEndpoint(srv.URL), fetcher.WithTimeout(2*time.Second))
}

func TestEndToEndIdenticalBodiesNotifyOnce(t *testing.T) {
	body := `{"seed_stock":[{"display_name":"Carrot","quantity":5},{"display_name":"Tomato","quantity":1}],"gear_stock":[]}`
	c := feed(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(fetcher.HeaderRemainingIP, "500")
		w.Header().Set(fetcher.HeaderRemainingGlobal, "5000")
		_, _ = w.Write([]byte(body))
	})
	s := &sink{}
	l := New(c, s, staticPrefs{"carrot"}, Config{Target: target})

	l.Step(context.Background())
	l.Step(context.Background())

	require.Len(t, s.sent, 1)
	assert.Contains(t, s.sent[0].Text, "Carrot x5")
	assert.False(t, strings.Contains(s.sent[0].Text, "Tomato"))
}

func TestEndToEndRetryAfter(t *testing.T) {
	c := feed(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(fetcher.HeaderRetryAfter, "45")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	s := &sink{}
	l := New(c, s, staticPrefs{}, Config{Target: target})

	assert.Equal(t, 45*time.Second, l.Step(context.Background()))
	assert.Empty(t, s.sent)
}
