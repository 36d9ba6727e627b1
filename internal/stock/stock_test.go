package stock

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ItemKey
	}{
		{"trim and fold", "  Carrot ", "carrot"},
		{"already canonical", "carrot", "carrot"},
		{"inner spaces kept", "Green Apple", "green apple"},
		{"full folding", "STRASSE", "strasse"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func sample() Snapshot {
	return Snapshot{
		Seeds: {
			{DisplayName: "Tomato", Quantity: 2},
			{DisplayName: "carrot", Quantity: 5},
			{DisplayName: "Blueberry", Quantity: 1},
		},
		Gear: {
			{DisplayName: "Watering Can", Quantity: 3},
		},
		Cosmetics: {
			{DisplayName: "Sign Crate", Quantity: 1},
			{DisplayName: "Bench", Quantity: 4},
		},
	}
}

func assertSorted(t *testing.T, s Snapshot) {
	t.Helper()
	for sec, es := range s {
		require.NotEmpty(t, es, "section %s present but empty", sec)
		for i := 1; i < len(es); i++ {
			assert.LessOrEqual(t, es[i-1].Key(), es[i].Key(), "section %s not ordered", sec)
		}
	}
}

func TestFilterEmptyPreferencesKeepsEverything(t *testing.T) {
	s := sample()
	got := Filter(s, nil)

	assert.Equal(t, s.Count(), got.Count())
	assert.Len(t, got, 3)
	assertSorted(t, got)
	assert.Equal(t, []Entry{
		{DisplayName: "Blueberry", Quantity: 1},
		{DisplayName: "carrot", Quantity: 5},
		{DisplayName: "Tomato", Quantity: 2},
	}, got[Seeds])
}

func TestFilterCaseInsensitiveMatch(t *testing.T) {
	s := Snapshot{Seeds: {{DisplayName: "Carrot", Quantity: 5}}}
	got := Filter(s, []string{"carrot"})
	assert.Equal(t, Snapshot{Seeds: {{DisplayName: "Carrot", Quantity: 5}}}, got)
}

func TestFilterOmitsEmptySections(t *testing.T) {
	got := Filter(sample(), []string{"Tomato", "Carrot"})
	require.Len(t, got, 1)
	_, hasGear := got[Gear]
	assert.False(t, hasGear)
	assert.Equal(t, []Entry{
		{DisplayName: "carrot", Quantity: 5},
		{DisplayName: "Tomato", Quantity: 2},
	}, got[Seeds])
	assertSorted(t, got)
}

func TestFilterCosmeticWildcard(t *testing.T) {
	got := Filter(sample(), []string{"cosmetic "})
	require.Len(t, got, 1)
	assert.Equal(t, []Entry{
		{DisplayName: "Bench", Quantity: 4},
		{DisplayName: "Sign Crate", Quantity: 1},
	}, got[Cosmetics])
}

func TestFilterWildcardOnlyAppliesToCosmetics(t *testing.T) {
	s := Snapshot{Seeds: {{DisplayName: "Cosmetic", Quantity: 1}, {DisplayName: "Carrot", Quantity: 1}}}
	got := Filter(s, []string{"Cosmetic"})
	assert.Equal(t, Snapshot{Seeds: {{DisplayName: "Cosmetic", Quantity: 1}}}, got)
}

func TestFilterStableOnEqualKeys(t *testing.T) {
	s := Snapshot{Seeds: {
		{DisplayName: "Carrot", Quantity: 1},
		{DisplayName: "carrot", Quantity: 2},
		{DisplayName: "Apple", Quantity: 3},
	}}
	got := Filter(s, nil)
	assert.Equal(t, []Entry{
		{DisplayName: "Apple", Quantity: 3},
		{DisplayName: "Carrot", Quantity: 1},
		{DisplayName: "carrot", Quantity: 2},
	}, got[Seeds])
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	s := sample()
	_ = Filter(s, nil)
	assert.Equal(t, "Tomato", s[Seeds][0].DisplayName)
}

func TestHasChanged(t *testing.T) {
	base := Snapshot{Seeds: {{DisplayName: "Carrot", Quantity: 5}}}

	tests := []struct {
		name string
		prev Snapshot
		cur  Snapshot
		want bool
	}{
		{"identical", base, Snapshot{Seeds: {{DisplayName: "Carrot", Quantity: 5}}}, false},
		{"both empty", nil, Snapshot{}, false},
		{"from empty", nil, base, true},
		{"quantity", base, Snapshot{Seeds: {{DisplayName: "Carrot", Quantity: 6}}}, true},
		{"display case only", base, Snapshot{Seeds: {{DisplayName: " carrot", Quantity: 5}}}, false},
		{"other item", base, Snapshot{Seeds: {{DisplayName: "Tomato", Quantity: 5}}}, true},
		{"section moved", base, Snapshot{Gear: {{DisplayName: "Carrot", Quantity: 5}}}, true},
		{"extra section", base, Snapshot{Seeds: base[Seeds], Eggs: {{DisplayName: "Bug Egg", Quantity: 1}}}, true},
		{"present but empty equals omitted", base, Snapshot{Seeds: base[Seeds], Gear: {}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasChanged(tt.prev, tt.cur))
		})
	}
}

func TestHasChangedReflexiveOverFilter(t *testing.T) {
	for _, prefs := range [][]string{nil, {"carrot"}, {"Cosmetic", "Watering Can"}, {"nothing"}} {
		a := Filter(sample(), prefs)
		b := Filter(sample(), prefs)
		assert.False(t, HasChanged(a, b), "prefs %v", prefs)
	}
}

func TestEmojiLookupByKey(t *testing.T) {
	assert.Equal(t, "🥕", Emoji("carrot"))
	assert.Equal(t, "🐛🥚", Emoji(" BUG EGG "))
	assert.Equal(t, DefaultEmoji, Emoji("Mystery Seed"))
	assert.True(t, InCatalog("cosmetic"))
	assert.False(t, InCatalog("Mystery Seed"))
	assert.Equal(t, "🥕 Carrot", Label("Carrot"))
}

func TestSectionWireKeys(t *testing.T) {
	for _, sec := range Sections {
		got, ok := SectionByWireKey(sec.WireKey())
		require.True(t, ok)
		assert.Equal(t, sec, got)
	}
	_, ok := SectionByWireKey("event_stock")
	assert.False(t, ok)
	assert.Equal(t, "Seed Stock", Seeds.Title())
	assert.Equal(t, "Cosmetic Stock", Cosmetics.Title())
}

func TestRenderHTML(t *testing.T) {
	loc := time.FixedZone("PHT", 8*60*60)
	now := time.Date(2025, 7, 1, 6, 5, 0, 0, time.UTC)

	s := Snapshot{
		Eggs:  {{DisplayName: "Bug Egg", Quantity: 1}},
		Seeds: {{DisplayName: "Carrot", Quantity: 5}, {DisplayName: "A<b>", Quantity: 0}},
	}
	got := RenderHTML(s, now, loc)

	want := strings.Join([]string{
		"🕒 <b>New Stock Detected!</b>",
		"🗓️ Date & Time: <code>2025-07-01 02:05:00 PM</code>",
		"",
		"<b>SEED STOCK</b>",
		"🥕 Carrot x5",
		"📦 A&lt;b&gt; x0",
		"",
		"<b>EGG STOCK</b>",
		"🐛🥚 Bug Egg x1",
	}, "\n")
	assert.Equal(t, want, got)
}
