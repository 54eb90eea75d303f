// Package folds builds leave-one-group-out outer folds and stratified inner
// folds over observation group feature tables.
package folds

import (
	"fmt"
	"strings"

	"floodcv/domain/core"
	"floodcv/domain/group"
)

// BuildLOGO creates one fold per group. The test split is the group's own
// table and the training split concatenates every other group in order; both
// pass through SortByLabel.
func BuildLOGO(groups []*group.ObservationGroup) ([]group.Fold, error) {
	if len(groups) < 2 {
		return nil, core.NewFoldConstructionError(fmt.Sprintf("need at least 2 observation groups, got %d", len(groups)))
	}

	var invalid []string
	for i, g := range groups {
		if g == nil || g.Table == nil || g.Table.Rows() == 0 {
			invalid = append(invalid, groupName(groups, i))
		}
	}
	if len(invalid) > 0 {
		return nil, core.NewFoldConstructionError("groups without samples: " + strings.Join(invalid, ", "))
	}

	ref := groups[0].Table
	for i, g := range groups[1:] {
		if !g.Table.SameFeatures(ref) {
			return nil, core.NewFoldConstructionError(fmt.Sprintf(
				"group %s has features %v, expected %v", groupName(groups, i+1), g.Table.Features, ref.Features))
		}
	}

	folds := make([]group.Fold, len(groups))
	for i := range groups {
		trainIdx := make([]int, 0, len(groups)-1)
		trainTables := make([]*group.FeatureTable, 0, len(groups)-1)
		for j := range groups {
			if j == i {
				continue
			}
			trainIdx = append(trainIdx, j)
			trainTables = append(trainTables, groups[j].Table)
		}
		train, err := group.Concat(trainTables...)
		if err != nil {
			return nil, core.NewFoldConstructionError(err.Error())
		}
		folds[i] = group.Fold{
			Index:       i,
			TestGroup:   i,
			TrainGroups: trainIdx,
			Train:       SortByLabel(train),
			Test:        SortByLabel(groups[i].Table),
		}
	}
	return folds, nil
}

func groupName(groups []*group.ObservationGroup, i int) string {
	if groups[i] == nil {
		return fmt.Sprintf("#%d", i)
	}
	return groups[i].Name()
}
