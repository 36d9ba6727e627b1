// Package stock holds the inventory model shared by the fetcher, the
// monitor loop and the bot commands: sections, entries, snapshots, name
// normalization, preference filtering, change detection and rendering.
package stock
