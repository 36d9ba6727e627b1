// Package main is the entry point for the gagbot stock notifier.
package main

import (
	"os"

	"gagbot/cmd/gagbot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
