package eventbus

// Event types published by the monitor loop, the notifier and the bot
// commands.
const (
	TypeStockChanged   = "stock.changed"
	TypeStockIdle      = "stock.idle"
	TypeFetchFailed    = "stock.fetch_failed"
	TypeRateLimited    = "stock.rate_limited"
	TypeLowQuota       = "quota.low"
	TypeNotifySent     = "notifier.sent"
	TypeNotifyFailed   = "notifier.failed"
	TypePrefsToggled   = "prefs.toggled"
	TypeConfigReloaded = "config.reloaded"
)
