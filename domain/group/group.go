package group

import (
	"fmt"
	"time"

	"floodcv/domain/core"

	"github.com/paulmach/orb"
)

// ObservationGroup is one flood event: an area of interest, its flooded
// ground truth, and the samples drawn from it.
type ObservationGroup struct {
	Label       string
	Date        time.Time
	AOI         orb.MultiPolygon
	GroundTruth orb.MultiPolygon

	Sample *Sample
	Table  *FeatureTable
}

// Name returns the folder-style identifier YYYY_MM_DD_label.
func (g *ObservationGroup) Name() string {
	return fmt.Sprintf("%s_%s", g.Date.Format("2006_01_02"), g.Label)
}

// Fingerprint identifies the group by date and label.
func (g *ObservationGroup) Fingerprint() core.GroupFingerprint {
	return core.ComputeGroupFingerprint(g.Date, g.Label)
}

// SamplePoint is a sampled location and its class (1 flooded, 0 not flooded).
type SamplePoint struct {
	Point orb.Point
	Class int
}

// Sample holds the points drawn for one group. Flooded points come first.
type Sample struct {
	Group      string
	Points     []SamplePoint
	Flooded    int
	NonFlooded int
}

// Labels returns the class of every point in order.
func (s *Sample) Labels() []int {
	labels := make([]int, len(s.Points))
	for i, p := range s.Points {
		labels[i] = p.Class
	}
	return labels
}

// Fold is one leave-one-group-out split.
type Fold struct {
	Index       int
	TestGroup   int
	TrainGroups []int
	Train       *FeatureTable
	Test        *FeatureTable
}

// FoldSummary is the presentation-facing description of a fold.
type FoldSummary struct {
	Index          int    `json:"index" db:"fold_index"`
	TestGroup      string `json:"test_group" db:"test_group"`
	TrainRows      int    `json:"train_rows" db:"train_rows"`
	TestRows       int    `json:"test_rows" db:"test_rows"`
	TrainPositives int    `json:"train_positives" db:"train_positives"`
	TestPositives  int    `json:"test_positives" db:"test_positives"`
}

// Summarize describes folds using the labels of their test groups.
func Summarize(folds []Fold, groups []*ObservationGroup) []FoldSummary {
	out := make([]FoldSummary, len(folds))
	for i, f := range folds {
		label := fmt.Sprintf("group-%d", f.TestGroup)
		if f.TestGroup < len(groups) && groups[f.TestGroup] != nil {
			label = groups[f.TestGroup].Name()
		}
		out[i] = FoldSummary{
			Index:          f.Index,
			TestGroup:      label,
			TrainRows:      f.Train.Rows(),
			TestRows:       f.Test.Rows(),
			TrainPositives: f.Train.ClassCounts()[1],
			TestPositives:  f.Test.ClassCounts()[1],
		}
	}
	return out
}
