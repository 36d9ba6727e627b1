package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

const (
	EnvToken = "GAGBOT_TELEGRAM_TOKEN"

	DefaultTimezone          = "Asia/Manila"
	DefaultHealthAddr        = ":8080"
	DefaultHeartbeatSchedule = "0 */6 * * *"
	DefaultPollTimeout       = 10 * time.Second
)

var ErrInvalid = errors.New("invalid config")

// applyEnv lets the token come from the environment so it can stay out of
// the config file.
func applyEnv(cfg *Config) {
	if tok := strings.TrimSpace(os.Getenv(EnvToken)); tok != "" {
		cfg.Telegram.Token = tok
	}
}

// Location resolves telegram.timezone, defaulting to Asia/Manila.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Telegram.Timezone)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("telegram.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) HealthAddr() string {
	if a := strings.TrimSpace(c.Health.Addr); a != "" {
		return a
	}
	return DefaultHealthAddr
}

func (c *Config) HeartbeatSchedule() string {
	if s := strings.TrimSpace(c.Heartbeat.Schedule); s != "" {
		return s
	}
	return DefaultHeartbeatSchedule
}

// Validate checks everything the bot needs before it starts.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, fmt.Errorf("telegram.token is required (or set %s)", EnvToken))
	}
	if c.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("telegram.chat_id is required"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("monitor.fetch_timeout", c.Monitor.FetchTimeout); err != nil {
		errs = append(errs, err)
	}
	if c.Monitor.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("monitor.max_body_bytes must be >= 0"))
	}
	if n := c.Notifier; n != nil {
		if n.RetryMax < 0 {
			errs = append(errs, errors.New("notifier.retry_max must be >= 0"))
		}
		for path, raw := range map[string]string{
			"notifier.retry_base":      n.RetryBase,
			"notifier.retry_max_delay": n.RetryMaxDelay,
			"notifier.send_timeout":    n.SendTimeout,
		} {
			if _, err := ParseDurationField(path, raw); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if c.Heartbeat.Enabled {
		if _, err := cron.ParseStandard(c.HeartbeatSchedule()); err != nil {
			errs = append(errs, fmt.Errorf("heartbeat.schedule: %w", err))
		}
	}
	if s := c.Storage; s != nil {
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
