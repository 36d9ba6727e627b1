package stock

import "strings"

type Section int

const (
	Seeds Section = iota
	Gear
	Eggs
	Cosmetics
)

// Sections lists every section in rendering order.
var Sections = []Section{Seeds, Gear, Eggs, Cosmetics}

var wireKeys = [...]string{
	Seeds:     "seed_stock",
	Gear:      "gear_stock",
	Eggs:      "egg_stock",
	Cosmetics: "cosmetic_stock",
}

// WireKey is the JSON object key the feed uses for s.
func (s Section) WireKey() string {
	if s < Seeds || s > Cosmetics {
		return ""
	}
	return wireKeys[s]
}

// Title is the display heading, derived from the wire key ("Seed Stock").
func (s Section) Title() string {
	parts := strings.Split(s.WireKey(), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

func (s Section) String() string {
	switch s {
	case Seeds:
		return "seeds"
	case Gear:
		return "gear"
	case Eggs:
		return "eggs"
	case Cosmetics:
		return "cosmetics"
	default:
		return "unknown"
	}
}

// SectionByWireKey maps a feed key back to its Section.
func SectionByWireKey(key string) (Section, bool) {
	for _, s := range Sections {
		if wireKeys[s] == key {
			return s, true
		}
	}
	return 0, false
}

type Entry struct {
	DisplayName string
	Quantity    int
}

func (e Entry) Key() ItemKey { return Normalize(e.DisplayName) }

// Snapshot maps a section to its ordered entries. Snapshots are not
// mutated after construction; a missing section and an empty one are
// different values, so builders omit empty sections.
type Snapshot map[Section][]Entry

// IsEmpty reports whether no section holds an entry.
func (s Snapshot) IsEmpty() bool {
	for _, es := range s {
		if len(es) > 0 {
			return false
		}
	}
	return true
}

// Count returns the total number of entries across sections.
func (s Snapshot) Count() int {
	n := 0
	for _, es := range s {
		n += len(es)
	}
	return n
}
