package folds

import (
	"fmt"
	"math/rand"

	"floodcv/domain/group"
	"floodcv/internal"
)

// InnerSplit indexes rows of a table into training and validation parts.
type InnerSplit struct {
	Train      []int
	Validation []int
}

// StratifiedKFold partitions rows into K folds preserving class proportions
// within one sample per class.
type StratifiedKFold struct {
	K       int
	Shuffle bool
	Seed    int64
	Logger  *internal.Logger
}

// NewStratifiedKFold returns a non-shuffled splitter with k folds.
func NewStratifiedKFold(k int) *StratifiedKFold {
	return &StratifiedKFold{K: k}
}

// Split assigns every row to exactly one validation fold. Labels are sorted,
// fold i receives the per-class counts found at positions i, i+K, i+2K, ... of
// the sorted labels, and each class's rows are handed out to the folds in
// contiguous blocks in row order.
func (s *StratifiedKFold) Split(y []int) ([]InnerSplit, error) {
	k, n := s.K, len(y)
	if k < 2 {
		return nil, fmt.Errorf("stratified k-fold needs k >= 2, got %d", k)
	}
	if k > n {
		return nil, fmt.Errorf("cannot split %d rows into %d folds", n, k)
	}

	var members [2][]int
	for i, label := range y {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("row %d has label %d, expected 0 or 1", i, label)
		}
		members[label] = append(members[label], i)
	}
	if s.Shuffle {
		r := rand.New(rand.NewSource(s.Seed))
		for c := range members {
			m := members[c]
			r.Shuffle(len(m), func(a, b int) { m[a], m[b] = m[b], m[a] })
		}
	}
	present, tooSmall := 0, 0
	for c, m := range members {
		if len(m) == 0 {
			continue
		}
		present++
		if len(m) < k {
			tooSmall++
			s.logger().Warn("class %d has only %d members, fewer than %d folds", c, len(m), k)
		}
	}
	if tooSmall == present {
		return nil, fmt.Errorf("k=%d exceeds the number of members in every class", k)
	}

	// classes are ranked by first appearance, then labels are sorted by rank
	first, second := 0, 1
	if y[0] == 1 {
		first, second = 1, 0
	}
	alloc := make([][2]int, k)
	for pos := 0; pos < n; pos++ {
		label := first
		if pos >= len(members[first]) {
			label = second
		}
		alloc[pos%k][label]++
	}

	testFold := make([]int, n)
	for c, m := range members {
		next := 0
		for f := 0; f < k; f++ {
			for j := 0; j < alloc[f][c]; j++ {
				testFold[m[next]] = f
				next++
			}
		}
	}

	splits := make([]InnerSplit, k)
	for i := 0; i < n; i++ {
		f := testFold[i]
		for g := range splits {
			if g == f {
				splits[g].Validation = append(splits[g].Validation, i)
			} else {
				splits[g].Train = append(splits[g].Train, i)
			}
		}
	}
	return splits, nil
}

// SplitTable applies Split to a table's labels.
func (s *StratifiedKFold) SplitTable(t *group.FeatureTable) ([]InnerSplit, error) {
	return s.Split(t.Y)
}

func (s *StratifiedKFold) logger() *internal.Logger {
	if s.Logger == nil {
		return internal.DefaultLogger.Named("StratifiedKFold")
	}
	return s.Logger
}

// InnerSplitSummary describes the class balance of one inner split.
type InnerSplitSummary struct {
	Fold                int `json:"fold"`
	TrainRows           int `json:"train_rows"`
	ValidationRows      int `json:"validation_rows"`
	TrainPositives      int `json:"train_positives"`
	ValidationPositives int `json:"validation_positives"`
}

// SummarizeInner describes the inner splits of t.
func SummarizeInner(t *group.FeatureTable, splits []InnerSplit) []InnerSplitSummary {
	count := func(idx []int) int {
		n := 0
		for _, i := range idx {
			n += t.Y[i]
		}
		return n
	}
	out := make([]InnerSplitSummary, len(splits))
	for f, s := range splits {
		out[f] = InnerSplitSummary{
			Fold:                f,
			TrainRows:           len(s.Train),
			ValidationRows:      len(s.Validation),
			TrainPositives:      count(s.Train),
			ValidationPositives: count(s.Validation),
		}
	}
	return out
}
