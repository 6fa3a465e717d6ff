package mapper

import (
	"cmp"
	"slices"

	"github.com/berfenger/yeelightpro2mqtt/internal/core/domain"
)

// SelectOptions derives the selectable options from an enumeration map of
// raw key to label, ordered by raw key. An empty map offers only the
// placeholder.
func SelectOptions(enum map[string]string, placeholder string) []string {
	if len(enum) == 0 {
		return []string{placeholder}
	}
	keys := make([]string, 0, len(enum))
	for k := range enum {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareEnumKeys)
	opts := make([]string, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, enum[k])
	}
	return opts
}

// compareEnumKeys orders numeric keys numerically, the rest lexically.
// Numerically equal keys such as "1" and "1.0" fall back to lexical order.
func compareEnumKeys(a, b string) int {
	fa, okA := Float(a)
	fb, okB := Float(b)
	switch {
	case okA && okB:
		if c := cmp.Compare(fa, fb); c != 0 {
			return c
		}
	case okA:
		return -1
	case okB:
		return 1
	}
	return cmp.Compare(a, b)
}

// SelectedOption reads the current option with no transformation.
func SelectedOption(raw any) string {
	return String(raw)
}

// SelectOptionProps writes the option as-is under the entity property name.
func SelectOptionProps(name, option string) domain.Props {
	return domain.Props{name: option}
}
