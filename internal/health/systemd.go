package health

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "gagbot/pkg/logx"
)

// NotifyReady tells systemd (Type=notify) that startup finished. Outside
// systemd it is a no-op.
func NotifyReady(log logx.Logger) { notify(log, daemon.SdNotifyReady) }

func NotifyStopping(log logx.Logger) { notify(log, daemon.SdNotifyStopping) }

func notify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// RunWatchdog pings the systemd watchdog at half its configured interval
// until ctx is done. Returns at once when WatchdogSec is unset.
func RunWatchdog(ctx context.Context, log logx.Logger) {
	every, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("systemd watchdog lookup failed", logx.Err(err))
		return
	}
	if every <= 0 {
		return
	}
	t := time.NewTicker(every / 2)
	defer t.Stop()
	log.Info("systemd watchdog enabled", logx.Duration("interval", every))
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
