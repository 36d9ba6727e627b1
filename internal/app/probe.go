package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"gagbot/internal/config"
	"gagbot/internal/fetcher"
	"gagbot/internal/stock"
	logx "gagbot/pkg/logx"
)

// Probe runs one fetch and writes what the monitor would post for items
// (all items when empty), followed by the quota signals.
func Probe(ctx context.Context, cfg *config.Config, items []string, w io.Writer, log logx.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	opts, err := mapFetcherOptions(cfg, log)
	if err != nil {
		return err
	}
	c := fetcher.New(opts...)
	out := c.Fetch(ctx)

	switch out.Status {
	case fetcher.StatusRateLimited:
		fmt.Fprintf(w, "rate limited, retry after %s\n", out.RetryAfter)
		return nil
	case fetcher.StatusTransient:
		return out.Err
	}

	filtered := stock.Filter(out.Snapshot, items)
	if filtered.IsEmpty() {
		fmt.Fprintln(w, "(no matching items in stock)")
	} else {
		fmt.Fprintln(w, stock.RenderHTML(filtered, time.Now(), loc))
	}
	fmt.Fprintf(w, "\nquota remaining: ip=%s global=%s\n", out.Signal.PerCaller, out.Signal.Global)
	return nil
}
