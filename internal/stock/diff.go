package stock

// HasChanged reports whether cur differs from prev: a different set of
// non-empty sections, or any section whose entries differ in order, ItemKey
// or quantity. Display names that normalize to the same key are equal.
func HasChanged(prev, cur Snapshot) bool {
	for _, sec := range Sections {
		a, b := prev[sec], cur[sec]
		if len(a) != len(b) {
			return true
		}
		for i := range a {
			if a[i].Quantity != b[i].Quantity || a[i].Key() != b[i].Key() {
				return true
			}
		}
	}
	return false
}
