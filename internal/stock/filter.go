package stock

import "sort"

// Filter projects s down to the entries selected by prefs.
//
// With no preferences every entry is kept. The CosmeticWildcard preference
// keeps every cosmetic entry. Otherwise an entry is kept when its ItemKey
// equals the key of some preference. Empty sections are omitted and the
// surviving entries of each section are stable-sorted by ItemKey.
func Filter(s Snapshot, prefs []string) Snapshot {
	keys := make(map[ItemKey]struct{}, len(prefs))
	for _, p := range prefs {
		keys[Normalize(p)] = struct{}{}
	}
	all := len(prefs) == 0
	_, allCosmetics := keys[Normalize(CosmeticWildcard)]

	out := make(Snapshot, len(s))
	for sec, entries := range s {
		type keyed struct {
			key ItemKey
			e   Entry
		}
		kept := make([]keyed, 0, len(entries))
		for _, e := range entries {
			k := e.Key()
			keep := all || (sec == Cosmetics && allCosmetics)
			if !keep {
				_, keep = keys[k]
			}
			if !keep {
				continue
			}
			kept = append(kept, keyed{key: k, e: e})
		}
		if len(kept) == 0 {
			continue
		}
		sort.SliceStable(kept, func(i, j int) bool { return kept[i].key < kept[j].key })
		es := make([]Entry, len(kept))
		for i, k := range kept {
			es[i] = k.e
		}
		out[sec] = es
	}
	return out
}
