package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	kit "gagbot/internal/transport"
	logx "gagbot/pkg/logx"
)

const sentMessage = `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":1,"type":"private"}}}`

// apiServer fakes the Bot API. Requests block until release is closed
// when slow is set.
func apiServer(t *testing.T, slow bool) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slow {
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sentMessage))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv
}

func offlineAdapter(t *testing.T, url string) *Adapter {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Token: "123:test", URL: url, Offline: true})
	require.NoError(t, err)
	return &Adapter{log: logx.Nop(), bot: b}
}

func TestSendTextReturnsFirstMessageRef(t *testing.T) {
	a := offlineAdapter(t, apiServer(t, false).URL)

	ref, err := a.SendText(context.Background(), kit.ChatTarget{ChatID: 1, ThreadID: 3}, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, kit.MessageRef{ChatID: 1, ThreadID: 3, MessageID: 7}, ref)
}

func TestSendTextStopsAtDeadline(t *testing.T) {
	a := offlineAdapter(t, apiServer(t, true).URL)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := a.SendText(ctx, kit.ChatTarget{ChatID: 1}, "hi", nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAnswerCallbackStopsAtDeadline(t *testing.T) {
	a := offlineAdapter(t, apiServer(t, true).URL)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := a.AnswerCallback(ctx, "cb", "")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCallSkipsWorkOnDoneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	_, err := call(ctx, func() (int, error) {
		ran = true
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestCallPassesResultThrough(t *testing.T) {
	boom := errors.New("boom")
	v, err := call(context.Background(), func() (int, error) { return 5, boom })
	assert.Equal(t, 5, v)
	assert.ErrorIs(t, err, boom)
}
