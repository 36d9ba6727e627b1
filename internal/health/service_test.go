package health

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "gagbot/pkg/logx"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, rec.Body.String()
}

func TestRootReportsAlive(t *testing.T) {
	s := New(Config{Enabled: true}, logx.Nop())
	code, body := get(t, s.Handler(), "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Bot is alive!", body)
}

func TestAnyPathReportsAlive(t *testing.T) {
	h := New(Config{Enabled: true}, logx.Nop()).Handler()
	for _, path := range []string{"/ping", "/a/b", "/status?x=1"} {
		code, body := get(t, h, path)
		assert.Equal(t, http.StatusOK, code, path)
		assert.Equal(t, AliveText, body, path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/uptime", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzUsesCheck(t *testing.T) {
	var failing error
	s := New(Config{Enabled: true}, logx.Nop(), WithCheck(func() error { return failing }))
	h := s.Handler()

	code, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	failing = errors.New("poll loop stale")
	code, body = get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "poll loop stale", body)
}

func TestMetricsOnlyWhenEnabled(t *testing.T) {
	code, body := get(t, New(Config{Enabled: true}, logx.Nop()).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, AliveText, body)

	code, body = get(t, New(Config{Enabled: true, Metrics: true}, logx.Nop()).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
}

func TestStartServesAndStops(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, logx.Nop())
	require.NoError(t, s.Start(ctx))
	addr := s.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, AliveText, string(b))

	require.NoError(t, s.Stop(ctx))
	assert.Empty(t, s.Addr())
}

func TestStartDisabledIsNoop(t *testing.T) {
	s := New(Config{Enabled: false, Addr: "127.0.0.1:0"}, logx.Nop())
	require.NoError(t, s.Start(context.Background()))
	assert.Empty(t, s.Addr())
	require.NoError(t, s.Stop(context.Background()))
}

func TestStartReportsBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s := New(Config{Enabled: true, Addr: ln.Addr().String()}, logx.Nop())
	assert.Error(t, s.Start(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestWatchdogReturnsOutsideSystemd(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	t.Setenv("NOTIFY_SOCKET", "")
	done := make(chan struct{})
	go func() {
		RunWatchdog(context.Background(), logx.Nop())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchdog loop did not return")
	}
	NotifyReady(logx.Nop())
}
