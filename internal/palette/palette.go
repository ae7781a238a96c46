// Package palette maps event colors to CSS class triples.
//
// Colors are derived from a string (event or group id) so a record keeps
// the same color on every render without storing an index per day.
package palette

import (
	"strconv"
	"unicode/utf16"
)

// Entry is one pastel color and its utility classes.
type Entry struct {
	Key    string `json:"key"`
	Bg     string `json:"bg"`
	Text   string `json:"text"`
	Border string `json:"border"`
}

var entries = []Entry{
	{"pink", "bg-pink-100/80", "text-pink-900", "border-pink-200"},
	{"purple", "bg-purple-100/80", "text-purple-900", "border-purple-200"},
	{"indigo", "bg-indigo-100/80", "text-indigo-900", "border-indigo-200"},
	{"blue", "bg-blue-100/80", "text-blue-900", "border-blue-200"},
	{"cyan", "bg-cyan-100/80", "text-cyan-900", "border-cyan-200"},
	{"teal", "bg-teal-100/80", "text-teal-900", "border-teal-200"},
	{"emerald", "bg-emerald-100/80", "text-emerald-900", "border-emerald-200"},
	{"green", "bg-green-100/80", "text-green-900", "border-green-200"},
	{"lime", "bg-lime-100/80", "text-lime-900", "border-lime-200"},
	{"yellow", "bg-yellow-100/80", "text-yellow-900", "border-yellow-200"},
	{"amber", "bg-amber-100/80", "text-amber-900", "border-amber-200"},
	{"orange", "bg-orange-100/80", "text-orange-900", "border-orange-200"},
	{"red", "bg-red-100/80", "text-red-900", "border-red-200"},
	{"rose", "bg-rose-100/80", "text-rose-900", "border-rose-200"},
}

// Size is the number of palette entries.
func Size() int { return len(entries) }

// All returns a copy of the palette in index order.
func All() []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// At returns the entry for index i, wrapping modulo the palette size.
func At(i int) Entry {
	n := len(entries)
	return entries[((i%n)+n)%n]
}

// IndexFor hashes s with h = h*31 + c over UTF-16 code units, wrapping at
// 32 bits, and reduces |h| modulo the palette size. The exact algorithm is
// pinned: changing it recolors every stored event.
func IndexFor(s string) int {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v % int64(len(entries)))
}

// KeyFor is the palette key derived from s.
func KeyFor(s string) string { return entries[IndexFor(s)].Key }

// Lookup finds an entry by key or by a legacy numeric index string.
func Lookup(color string) (Entry, bool) {
	if color == "" {
		return Entry{}, false
	}
	for _, e := range entries {
		if e.Key == color {
			return e, true
		}
	}
	if n, err := strconv.Atoi(color); err == nil && n >= 0 {
		return At(n), true
	}
	return Entry{}, false
}

// Resolve returns the entry for color, deriving one from fallbackKey when
// color is empty or unknown.
func Resolve(color, fallbackKey string) Entry {
	if e, ok := Lookup(color); ok {
		return e
	}
	return entries[IndexFor(fallbackKey)]
}

// Normalize turns an explicitly chosen color into a palette key, or "" when
// it is not recognised.
func Normalize(color string) string {
	if e, ok := Lookup(color); ok {
		return e.Key
	}
	return ""
}
