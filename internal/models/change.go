package models

import "sort"

// ChangeSet lists the entities touched by a mutating operation so callers can
// invalidate whatever they cache.
type ChangeSet struct {
	Products    []int64  `json:"products,omitempty"`
	Vendors     []string `json:"vendors,omitempty"`
	Collections []int64  `json:"collections,omitempty"`
	Customers   []int64  `json:"customers,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Carts       []string `json:"carts,omitempty"`
}

func (c ChangeSet) Empty() bool {
	return len(c.Products) == 0 && len(c.Vendors) == 0 && len(c.Collections) == 0 &&
		len(c.Customers) == 0 && len(c.Tags) == 0 && len(c.Carts) == 0
}

// Merge folds other into c, keeping each list sorted and free of duplicates.
func (c *ChangeSet) Merge(other ChangeSet) {
	c.Products = mergeInts(c.Products, other.Products)
	c.Vendors = mergeStrings(c.Vendors, other.Vendors)
	c.Collections = mergeInts(c.Collections, other.Collections)
	c.Customers = mergeInts(c.Customers, other.Customers)
	c.Tags = mergeStrings(c.Tags, other.Tags)
	c.Carts = mergeStrings(c.Carts, other.Carts)
}

func mergeInts(a, b []int64) []int64 {
	if len(b) == 0 {
		return a
	}
	seen := make(map[int64]struct{}, len(a)+len(b))
	out := make([]int64, 0, len(a)+len(b))
	for _, v := range append(append([]int64{}, a...), b...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func mergeStrings(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range append(append([]string{}, a...), b...) {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
