package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gagbot/internal/eventbus"
	"gagbot/internal/storage"
	kit "gagbot/internal/transport"
	logx "gagbot/pkg/logx"
)

type fakeSender struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	texts    []string
	deadline []bool
}

func (f *fakeSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	_, ok := ctx.Deadline()
	f.deadline = append(f.deadline, ok)
	if f.failures > 0 {
		f.failures--
		return kit.MessageRef{}, f.err
	}
	f.texts = append(f.texts, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: f.calls}, nil
}

type memStore struct {
	mu      sync.Mutex
	entries []storage.AuditEntry
}

func (m *memStore) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *memStore) Close() error { return nil }

func fastConfig(retries int) Config {
	return Config{RatePerSec: 1000, RetryMax: retries, RetryBase: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond}
}

func note(text string) kit.Notification {
	return kit.Notification{Kind: "stock", Target: kit.ChatTarget{ChatID: 42}, Text: text}
}

func TestDeliverSuccess(t *testing.T) {
	snd := &fakeSender{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()
	st := &memStore{}

	s := New(fastConfig(2), snd, logx.Nop(), bus, st)
	require.NoError(t, s.Deliver(context.Background(), note("hello")))

	assert.Equal(t, 1, snd.calls)
	assert.Equal(t, []string{"hello"}, snd.texts)
	assert.True(t, snd.deadline[0], "each attempt must be bounded")

	last, ok := s.Last("stock")
	require.True(t, ok)
	assert.Equal(t, "hello", last.Text)
	_, ok = s.Last("quota")
	assert.False(t, ok)

	e := <-events
	assert.Equal(t, eventbus.TypeNotifySent, e.Type)
	require.Len(t, st.entries, 1)
	assert.Equal(t, "delivered", st.entries[0].Action)
}

func TestDeliverRetriesThenSucceeds(t *testing.T) {
	snd := &fakeSender{failures: 2, err: errors.New("flaky")}
	s := New(fastConfig(3), snd, logx.Nop(), nil, nil)

	require.NoError(t, s.Deliver(context.Background(), note("x")))
	assert.Equal(t, 3, snd.calls)
}

func TestDeliverExhaustsRetries(t *testing.T) {
	boom := errors.New("boom")
	snd := &fakeSender{failures: 10, err: boom}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4, eventbus.TypeNotifyFailed)
	defer unsub()
	st := &memStore{}

	s := New(fastConfig(2), snd, logx.Nop(), bus, st)
	err := s.Deliver(context.Background(), note("x"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDelivery)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, snd.calls)
	_, ok := s.Last("stock")
	assert.False(t, ok)

	e := <-events
	ev, ok := e.Data.(NotificationEvent)
	require.True(t, ok)
	assert.Equal(t, 3, ev.Attempts)
	require.Len(t, st.entries, 1)
	assert.Equal(t, "failed", st.entries[0].Action)
}

func TestDeliverCancelledContext(t *testing.T) {
	snd := &fakeSender{}
	s := New(fastConfig(0), snd, logx.Nop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Deliver(ctx, note("x"))
	assert.ErrorIs(t, err, ErrDelivery)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, snd.calls)
}

func TestDeliverRejectsEmptyAndMissingSender(t *testing.T) {
	s := New(fastConfig(0), &fakeSender{}, logx.Nop(), nil, nil)
	assert.ErrorIs(t, s.Deliver(context.Background(), note("  ")), ErrEmpty)

	s = New(fastConfig(0), nil, logx.Nop(), nil, nil)
	assert.ErrorIs(t, s.Deliver(context.Background(), note("x")), ErrNoSender)
}

func TestRetryDelayBounds(t *testing.T) {
	cfg := Config{RetryBase: 100 * time.Millisecond, RetryMaxDelay: 300 * time.Millisecond}
	for i := 0; i < 50; i++ {
		d := retryDelay(cfg, 1)
		assert.GreaterOrEqual(t, d, 70*time.Millisecond)
		assert.LessOrEqual(t, d, 130*time.Millisecond)

		d = retryDelay(cfg, 5)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
		assert.GreaterOrEqual(t, d, 210*time.Millisecond)
	}
}

func TestLastPicksNewestOfKind(t *testing.T) {
	s := New(fastConfig(0), &fakeSender{}, logx.Nop(), nil, nil)
	s.appendHistory(note("old"))
	s.appendHistory(kit.Notification{Kind: "quota", Text: "low"})
	s.appendHistory(note("new"))

	last, ok := s.Last("stock")
	require.True(t, ok)
	assert.Equal(t, "new", last.Text)
	last, ok = s.Last("quota")
	require.True(t, ok)
	assert.Equal(t, "low", last.Text)
}

func TestHistoryIsCapped(t *testing.T) {
	s := New(fastConfig(0), &fakeSender{}, logx.Nop(), nil, nil)
	s.appendHistory(kit.Notification{Kind: "quota", Text: "evicted"})
	for i := 0; i < historyMax; i++ {
		s.appendHistory(note("x"))
	}
	assert.Len(t, s.history, historyMax)
	_, ok := s.Last("quota")
	assert.False(t, ok)
}
