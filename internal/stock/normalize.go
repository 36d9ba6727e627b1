package stock

import (
	"strings"

	"golang.org/x/text/cases"
)

// ItemKey is the canonical identity of a catalog item. Two raw names refer
// to the same item iff their keys are equal.
type ItemKey string

// Normalize trims surrounding whitespace and applies full Unicode case
// folding.
func Normalize(name string) ItemKey {
	return ItemKey(cases.Fold().String(strings.TrimSpace(name)))
}
