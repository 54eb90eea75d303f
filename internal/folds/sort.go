package folds

import (
	"sort"

	"floodcv/domain/group"
)

// SortByLabel returns a copy of t with rows ordered by ascending label.
// Rows with equal labels keep their original relative order.
func SortByLabel(t *group.FeatureTable) *group.FeatureTable {
	idx := make([]int, t.Rows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return t.Y[idx[a]] < t.Y[idx[b]] })
	return t.Subset(idx)
}
