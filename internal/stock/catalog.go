package stock

// CosmeticWildcard is the preference that selects every cosmetic item.
const CosmeticWildcard = "Cosmetic"

// DefaultEmoji decorates items that have no entry of their own.
const DefaultEmoji = "📦"

type CatalogItem struct {
	Name  string
	Emoji string
}

// Catalog is the fixed list of selectable items, in menu order.
var Catalog = []CatalogItem{
	{"Carrot", "🥕"},
	{"Strawberry", "🍓"},
	{"Blueberry", "🫐"},
	{"Tomato", "🍅"},
	{"Cauliflower", "🥬"},
	{"Watermelon", "🍉"},
	{"Green apple", "🍏"},
	{"Avocado", "🥑"},
	{"Banana", "🍌"},
	{"Pineapple", "🍍"},
	{"Kiwi", "🥝"},
	{"Bell pepper", "🫑"},
	{"Prickly pear", "🌵"},
	{"Loquat", "🍑🌿"},
	{"Feijoa", "🍈"},
	{"Sugar apple", "🍬🍏"},

	{"Common Summer Egg", "🏖️⚪🥚"},
	{"Rare Summer Egg", "🏖️🔵🥚"},
	{"Paradise Egg", "🌴🏖️🥚"},
	{"Common Egg", "⚪🥚"},
	{"Uncommon Egg", "🟢🥚"},
	{"Rare Egg", "🔵🥚"},
	{"Legendary Egg", "🔹🥚"},
	{"Mythical Egg", "🔴🥚"},
	{"Bug Egg", "🐛🥚"},

	{"Godly Sprinkler", "💦⚡"},
	{"Tanning Mirror", "🪞"},
	{"Lightning Rod", "⚡"},
	{"Master Sprinkler", "👑💦"},
	{"Watering Can", "🚿"},
	{"Recall Wrench", "🔧"},
	{"Trowel", "📦"},
	{"Basic Sprinkler", "💧"},
	{"Advanced Sprinkler", "💦"},
	{"Favourite Tool", "⭐"},
	{"Harvest Tool", "✂️"},
	{"Friendship Pot", "🤝"},

	{CosmeticWildcard, "📦"},
}

var emojiByKey = func() map[ItemKey]string {
	m := make(map[ItemKey]string, len(Catalog))
	for _, it := range Catalog {
		m[Normalize(it.Name)] = it.Emoji
	}
	return m
}()

// Emoji returns the decoration for name, matched by ItemKey.
func Emoji(name string) string {
	if e, ok := emojiByKey[Normalize(name)]; ok {
		return e
	}
	return DefaultEmoji
}

// InCatalog reports whether name is one of the selectable items.
func InCatalog(name string) bool {
	_, ok := emojiByKey[Normalize(name)]
	return ok
}

// Label is "<emoji> <name>", as shown in menus and lists.
func Label(name string) string { return Emoji(name) + " " + name }
