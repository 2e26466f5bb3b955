package seating

import (
	"strconv"
	"strings"
)

// Category is the seat classification used for preference matching.
type Category string

const (
	Window Category = "window"
	Aisle  Category = "aisle"
	Middle Category = "middle"
)

// Preference is a passenger's requested seat category.  It is parsed once
// at the edge; the core never compares raw strings.
type Preference int

const (
	PreferAny Preference = iota
	PreferWindow
	PreferAisle
	PreferMiddle
)

func (p Preference) String() string {
	switch p {
	case PreferWindow:
		return "window"
	case PreferAisle:
		return "aisle"
	case PreferMiddle:
		return "middle"
	default:
		return "any"
	}
}

func (p Preference) category() Category {
	switch p {
	case PreferWindow:
		return Window
	case PreferAisle:
		return Aisle
	case PreferMiddle:
		return Middle
	}
	return ""
}

// ParsePreference maps a keyword (case-insensitive) to a Preference.  The
// empty string means any.
func ParsePreference(s string) (Preference, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return PreferAny, true
	case "window":
		return PreferWindow, true
	case "aisle":
		return PreferAisle, true
	case "middle":
		return PreferMiddle, true
	}
	return PreferAny, false
}

// IsPreferenceKeyword reports whether s names a preference explicitly.
// Unlike ParsePreference it does not accept the empty string.
func IsPreferenceKeyword(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	_, ok := ParsePreference(s)
	return ok
}

// Labels enumerates exactly capacity seat labels row-major: row 1 takes
// every column in order, then row 2, stopping at capacity so the last row
// may be partial.  The result is the canonical order used for every
// "first available" tie-break.
func Labels(capacity int, columns []string) []string {
	if capacity <= 0 || len(columns) == 0 {
		return []string{}
	}
	out := make([]string, 0, capacity)
	for row := 1; len(out) < capacity; row++ {
		prefix := strconv.Itoa(row)
		for _, col := range columns {
			if len(out) == capacity {
				break
			}
			out = append(out, prefix+col)
		}
	}
	return out
}

// Classify returns the category of a seat label for the given layout.
// First and last columns are window.  The columns at indices (n-1)/2 and
// n/2 are aisle; for odd widths that is the single centre column.  Every
// other column is middle.  Layouts of width one or two are all window.
// Labels without a known column letter (legacy numeric seats) are middle.
func Classify(label string, columns []string) Category {
	idx := columnIndex(label, columns)
	n := len(columns)
	if idx < 0 {
		return Middle
	}
	if idx == 0 || idx == n-1 {
		return Window
	}
	if idx == (n-1)/2 || idx == n/2 {
		return Aisle
	}
	return Middle
}

func columnIndex(label string, columns []string) int {
	_, col, ok := splitLabel(label)
	if !ok || col == "" {
		return -1
	}
	for i, c := range columns {
		if strings.EqualFold(c, col) {
			return i
		}
	}
	return -1
}

// splitLabel separates "12C" into row 12 and column "C".  Pure numerals
// return an empty column.
func splitLabel(label string) (int, string, bool) {
	i := 0
	for i < len(label) && label[i] >= '0' && label[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, "", false
	}
	row, err := strconv.Atoi(label[:i])
	if err != nil {
		return 0, "", false
	}
	return row, label[i:], true
}

// NormalizeLabel trims and upper-cases a seat label and validates its
// shape: a positive row number optionally followed by column letters.
func NormalizeLabel(raw string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" || len(s) > 8 {
		return "", false
	}
	row, col, ok := splitLabel(s)
	if !ok || row <= 0 {
		return "", false
	}
	for _, r := range col {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return strconv.Itoa(row) + col, true
}

// IsNumeric reports whether label is a legacy numeric seat ("7").
func IsNumeric(label string) bool {
	if label == "" {
		return false
	}
	for i := 0; i < len(label); i++ {
		if label[i] < '0' || label[i] > '9' {
			return false
		}
	}
	return true
}
