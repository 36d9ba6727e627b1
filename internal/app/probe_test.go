package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gagbot/internal/config"
	logx "gagbot/pkg/logx"
)

func probeConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.Monitor.Endpoint = url
	cfg.Telegram.Timezone = "UTC"
	return cfg
}

func TestProbePrintsFilteredStock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("RateLimit-Remaining-IP", "42")
		_, _ = w.Write([]byte(`{"seed_stock":[{"display_name":"Carrot","quantity":5},{"display_name":"Tomato","quantity":2}]}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	require.NoError(t, Probe(context.Background(), probeConfig(srv.URL), []string{"carrot"}, &buf, logx.Nop()))
	out := buf.String()
	assert.Contains(t, out, "🥕 Carrot x5")
	assert.NotContains(t, out, "Tomato")
	assert.Contains(t, out, "quota remaining: ip=42 global=unknown")
}

func TestProbeRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "45")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	require.NoError(t, Probe(context.Background(), probeConfig(srv.URL), nil, &buf, logx.Nop()))
	assert.Equal(t, "rate limited, retry after 45s\n", buf.String())
}

func TestProbeTransientFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	assert.Error(t, Probe(context.Background(), probeConfig(srv.URL), nil, &buf, logx.Nop()))
}
