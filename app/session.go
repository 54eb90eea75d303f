package app

import (
	"fmt"

	"floodcv/domain/core"
	"floodcv/domain/group"
	"floodcv/internal/folds"
)

// Session is a prepared set of groups and the outer folds built from them.
type Session struct {
	Key      core.Hash                 `json:"key"`
	Groups   []*group.ObservationGroup `json:"-"`
	Features []string                  `json:"features"`
	Folds    []group.Fold              `json:"-"`
}

// FoldSummaries describes the outer folds.
func (s *Session) FoldSummaries() []group.FoldSummary {
	return group.Summarize(s.Folds, s.Groups)
}

// Select returns the outer folds restricted to features. An empty or full
// selection returns the session folds.
func (s *Session) Select(features []string) ([]group.Fold, error) {
	if len(features) == 0 || sameOrder(features, s.Features) {
		return s.Folds, nil
	}
	out := make([]group.Fold, len(s.Folds))
	for i, f := range s.Folds {
		train, err := f.Train.Select(features)
		if err != nil {
			return nil, core.NewFoldConstructionError(err.Error())
		}
		test, err := f.Test.Select(features)
		if err != nil {
			return nil, core.NewFoldConstructionError(err.Error())
		}
		f.Train, f.Test = train, test
		out[i] = f
	}
	return out, nil
}

// InnerSplits previews the stratified inner splits of every outer training
// split.
func (s *Session) InnerSplits(k int) ([][]folds.InnerSplitSummary, error) {
	out := make([][]folds.InnerSplitSummary, len(s.Folds))
	skf := folds.NewStratifiedKFold(k)
	for i, f := range s.Folds {
		splits, err := skf.SplitTable(f.Train)
		if err != nil {
			return nil, fmt.Errorf("outer fold %d: %w", f.Index, err)
		}
		out[i] = folds.SummarizeInner(f.Train, splits)
	}
	return out, nil
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
