package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Monitor   MonitorConfig   `json:"monitor"`
	Notifier  *NotifierConfig `json:"notifier,omitempty"`
	Health    HealthConfig    `json:"health"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
}

// TelegramConfig selects the bot and the chat stock messages go to.
// The token may also come from GAGBOT_TELEGRAM_TOKEN.
type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	// GroupLog receives log records when logging.telegram is enabled.
	GroupLog    int64  `json:"group_log,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
	// Timezone is an IANA name used for timestamps in chat messages.
	Timezone string `json:"timezone,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// MonitorConfig controls the stock feed fetch.
//
// Defaults:
//   - endpoint: https://api.joshlei.com/v2/growagarden/stock
//   - fetch_timeout: "10s"
//   - max_body_bytes: 4 MiB
type MonitorConfig struct {
	Endpoint     string `json:"endpoint,omitempty"`
	FetchTimeout string `json:"fetch_timeout,omitempty"`
	MaxBodyBytes int64  `json:"max_body_bytes,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
}

// NotifierConfig controls delivery pacing and retries.
type NotifierConfig struct {
	RatePerSec    int    `json:"rate_per_sec"`
	RetryMax      int    `json:"retry_max"`
	RetryBase     string `json:"retry_base"`
	RetryMaxDelay string `json:"retry_max_delay"`
	SendTimeout   string `json:"send_timeout,omitempty"`
}

// HealthConfig controls the liveness HTTP server and systemd notifications.
type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":8080"
	Metrics bool   `json:"metrics"`
	// Systemd sends READY/WATCHDOG/STOPPING when running under systemd.
	Systemd bool `json:"systemd,omitempty"`
}

// HeartbeatConfig posts a periodic status message to the chat.
type HeartbeatConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron expression, evaluated in telegram.timezone.
	Schedule string `json:"schedule,omitempty"`
}

// StorageConfig controls the audit trail.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/gagbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}
