package config

import (
	"sort"
	"strings"

	logx "gagbot/pkg/logx"
)

var defaultNotifier = NotifierConfig{RatePerSec: 3, RetryMax: 3, RetryBase: "500ms", RetryMaxDelay: "10s", SendTimeout: "10s"}

// SummarizeConfigChange returns the changed sections and log fields
// describing the new values. Secrets (the bot token) are never included;
// only whether one is set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 24)

	o, n := oldCfg.Telegram, newCfg.Telegram
	if o.ChatID != n.ChatID || o.ThreadID != n.ThreadID || o.GroupLog != n.GroupLog ||
		strings.TrimSpace(o.PollTimeout) != strings.TrimSpace(n.PollTimeout) ||
		strings.TrimSpace(o.Timezone) != strings.TrimSpace(n.Timezone) ||
		o.Token != n.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int64("telegram.chat_id", n.ChatID),
			logx.Int("telegram.thread_id", n.ThreadID),
			logx.String("telegram.timezone", strings.TrimSpace(n.Timezone)),
			logx.Bool("telegram.token_changed", o.Token != n.Token),
			logx.Bool("telegram.group_log_set", n.GroupLog != 0),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		l := newCfg.Logging
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", l.Level),
			logx.Bool("logging.console", l.Console),
			logx.Bool("logging.file_enabled", l.File.Enabled),
			logx.Bool("logging.telegram_enabled", l.Telegram.Enabled),
		)
	}

	if oldCfg.Monitor != newCfg.Monitor {
		m := newCfg.Monitor
		changed = append(changed, "monitor")
		attrs = append(attrs,
			logx.String("monitor.endpoint", m.Endpoint),
			logx.String("monitor.fetch_timeout", m.FetchTimeout),
			logx.Int64("monitor.max_body_bytes", m.MaxBodyBytes),
		)
	}

	oldN, newN := defaultNotifier, defaultNotifier
	if oldCfg.Notifier != nil {
		oldN = *oldCfg.Notifier
	}
	if newCfg.Notifier != nil {
		newN = *newCfg.Notifier
	}
	if oldN != newN {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Int("notifier.rate_per_sec", newN.RatePerSec),
			logx.Int("notifier.retry_max", newN.RetryMax),
			logx.String("notifier.retry_base", newN.RetryBase),
		)
	}

	if oldCfg.Health != newCfg.Health {
		changed = append(changed, "health")
		attrs = append(attrs,
			logx.Bool("health.enabled", newCfg.Health.Enabled),
			logx.String("health.addr", newCfg.HealthAddr()),
			logx.Bool("health.metrics", newCfg.Health.Metrics),
		)
	}

	if oldCfg.Heartbeat != newCfg.Heartbeat {
		changed = append(changed, "heartbeat")
		attrs = append(attrs,
			logx.Bool("heartbeat.enabled", newCfg.Heartbeat.Enabled),
			logx.String("heartbeat.schedule", newCfg.HeartbeatSchedule()),
		)
	}

	var oS, nS StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RequiresRestart lists changed sections that only take effect on the next
// start. Logging and notifier settings apply live.
func RequiresRestart(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "logging", "notifier":
		default:
			out = append(out, s)
		}
	}
	return out
}
