// Package query provides stateless filter and sort transforms over catalog
// snapshots. No function mutates its input slice.
package query

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// Key selects the field SortBy orders on.
type Key string

// Sort keys.
const (
	KeyTitle  Key = "title"
	KeyExpiry Key = "expiry"
)

// Direction is the sort order.
type Direction int

// Sort directions.
const (
	Ascending Direction = iota
	Descending
)

// ParseKey converts a flag value into a Key.
func ParseKey(s string) (Key, error) {
	switch Key(strings.ToLower(s)) {
	case KeyTitle:
		return KeyTitle, nil
	case KeyExpiry, "expiry_date":
		return KeyExpiry, nil
	default:
		return "", fmt.Errorf("%w: unknown sort key %q (valid: title, expiry)", types.ErrValidation, s)
	}
}

// ParseDirection converts "asc"/"desc" into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("%w: unknown sort direction %q (valid: asc, desc)", types.ErrValidation, s)
	}
}

// fold returns the case-folded form used for case-insensitive matching.
// A cases.Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// FilterByTitle returns the items whose title contains query, ignoring
// case. An empty query returns all items. Relative order is preserved.
func FilterByTitle(items []types.FoodItem, query string) []types.FoodItem {
	if query == "" {
		return slices.Clone(items)
	}
	needle := fold(query)
	return filter(items, func(item types.FoodItem) bool {
		return strings.Contains(fold(item.Title), needle)
	})
}

// Expired returns the items whose expiry date is before today, in input
// order.
func Expired(items []types.FoodItem, today types.Date) []types.FoodItem {
	return filter(items, func(item types.FoodItem) bool {
		return item.Expired(today)
	})
}

// Fresh returns the items that have not yet expired, in input order.
func Fresh(items []types.FoodItem, today types.Date) []types.FoodItem {
	return filter(items, func(item types.FoodItem) bool {
		return !item.Expired(today)
	})
}

// SortBy returns a stably sorted copy of items. Descending order is the
// exact reverse of the ascending result, so items with equal keys appear in
// reverse input order. A key not returned by ParseKey sorts nothing.
func SortBy(items []types.FoodItem, key Key, dir Direction) []types.FoodItem {
	out := slices.Clone(items)
	if out == nil {
		out = []types.FoodItem{}
	}
	switch key {
	case KeyTitle:
		// Fold once per item rather than once per comparison.
		keyed := make([]titleKeyed, len(out))
		for i, item := range out {
			keyed[i] = titleKeyed{item: item, key: fold(item.Title)}
		}
		slices.SortStableFunc(keyed, func(a, b titleKeyed) int {
			return strings.Compare(a.key, b.key)
		})
		for i := range keyed {
			out[i] = keyed[i].item
		}
	case KeyExpiry:
		slices.SortStableFunc(out, func(a, b types.FoodItem) int {
			return a.Expiry.Compare(b.Expiry)
		})
	default:
		// Unknown keys leave the input order; descending still reverses it.
	}
	if dir == Descending {
		slices.Reverse(out)
	}
	return out
}

type titleKeyed struct {
	item types.FoodItem
	key  string
}

func filter(items []types.FoodItem, keep func(types.FoodItem) bool) []types.FoodItem {
	out := make([]types.FoodItem, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
