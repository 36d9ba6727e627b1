package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gagbot/internal/config"
	"gagbot/internal/fetcher"
	"gagbot/internal/health"
	"gagbot/internal/monitor"
	"gagbot/internal/notifier"
	"gagbot/internal/storage"
	logx "gagbot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Telegram.GroupLog,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	out := notifier.Config{RatePerSec: 3, RetryMax: 3}
	n := cfg.Notifier
	if n == nil {
		return out, nil
	}
	if n.RatePerSec > 0 {
		out.RatePerSec = n.RatePerSec
	}
	if n.RetryMax < 0 {
		return notifier.Config{}, errors.New("notifier.retry_max must be >= 0")
	}
	out.RetryMax = n.RetryMax
	var err error
	if out.RetryBase, err = config.ParseDurationOrDefault("notifier.retry_base", n.RetryBase, 500*time.Millisecond); err != nil {
		return notifier.Config{}, err
	}
	if out.RetryMaxDelay, err = config.ParseDurationOrDefault("notifier.retry_max_delay", n.RetryMaxDelay, 10*time.Second); err != nil {
		return notifier.Config{}, err
	}
	if out.SendTimeout, err = config.ParseDurationOrDefault("notifier.send_timeout", n.SendTimeout, 10*time.Second); err != nil {
		return notifier.Config{}, err
	}
	return out, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: driver, Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, errors.New("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapFetcherOptions(cfg *config.Config, log logx.Logger) ([]fetcher.Option, error) {
	m := cfg.Monitor
	timeout, err := config.ParseDurationOrDefault("monitor.fetch_timeout", m.FetchTimeout, fetcher.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	opts := []fetcher.Option{fetcher.WithTimeout(timeout), fetcher.WithLogger(log)}
	if e := strings.TrimSpace(m.Endpoint); e != "" {
		opts = append(opts, fetcher.WithEndpoint(e))
	}
	if m.MaxBodyBytes > 0 {
		opts = append(opts, fetcher.WithMaxBodyBytes(m.MaxBodyBytes))
	}
	if ua := strings.TrimSpace(m.UserAgent); ua != "" {
		opts = append(opts, fetcher.WithUserAgent(ua))
	}
	return opts, nil
}

func mapHealthConfig(cfg *config.Config) health.Config {
	return health.Config{
		Enabled:      cfg.Health.Enabled,
		Addr:         cfg.HealthAddr(),
		Metrics:      cfg.Health.Metrics,
		Systemd:      cfg.Health.Systemd,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// monitorGrace covers one fetch timeout plus a slow delivery.
const monitorGrace = 2 * time.Minute

// monitorCheck flags a poll loop that missed its next scheduled fetch.
func monitorCheck(st monitor.Stats, started, now time.Time) error {
	due := st.NextFetchAt
	if due.IsZero() {
		due = started
	}
	if late := now.Sub(due); late > monitorGrace {
		return fmt.Errorf("stock monitor stalled: next fetch overdue by %s", late.Round(time.Second))
	}
	return nil
}
