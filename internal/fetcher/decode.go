package fetcher

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"gagbot/internal/stock"
)

type wireEntry struct {
	DisplayName string `json:"display_name"`
	Quantity    int    `json:"quantity"`
}

// decodeSnapshot parses the feed body. Unknown top-level keys are ignored,
// blank names are dropped and negative quantities clamp to zero.
func decodeSnapshot(body []byte) (stock.Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	out := make(stock.Snapshot, len(stock.Sections))
	for key, msg := range raw {
		sec, ok := stock.SectionByWireKey(key)
		if !ok || len(msg) == 0 || string(msg) == "null" {
			continue
		}
		var items []wireEntry
		if err := json.Unmarshal(msg, &items); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		entries := make([]stock.Entry, 0, len(items))
		for _, it := range items {
			name := strings.TrimSpace(it.DisplayName)
			if name == "" {
				continue
			}
			entries = append(entries, stock.Entry{DisplayName: name, Quantity: max(it.Quantity, 0)})
		}
		if len(entries) > 0 {
			out[sec] = entries
		}
	}
	return out, nil
}
