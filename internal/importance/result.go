package importance

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"floodcv/domain/group"
	"floodcv/internal/metrics"

	"gonum.org/v1/gonum/mat"
)

// FoldImportance is one fold's importance vector keyed by feature name.
type FoldImportance struct {
	Fold      int                `json:"fold"`
	TestGroup int                `json:"test_group"`
	Values    map[string]float64 `json:"values"`
}

// ShapleyFold holds the attributions of one fold's test split. Rows of Values
// line up with rows of Test. In JSON Values is a list of rows.
type ShapleyFold struct {
	Fold      int
	TestGroup int
	BaseValue float64
	Values    *mat.Dense
	Test      *group.FeatureTable
}

type shapleyFoldJSON struct {
	Fold      int                 `json:"fold"`
	TestGroup int                 `json:"test_group"`
	BaseValue float64             `json:"base_value"`
	Values    [][]float64         `json:"values"`
	Test      *group.FeatureTable `json:"test"`
}

func (f ShapleyFold) MarshalJSON() ([]byte, error) {
	return json.Marshal(shapleyFoldJSON{
		Fold:      f.Fold,
		TestGroup: f.TestGroup,
		BaseValue: f.BaseValue,
		Values:    denseRows(f.Values),
		Test:      f.Test,
	})
}

func (f *ShapleyFold) UnmarshalJSON(data []byte) error {
	var w shapleyFoldJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	values, err := rowsDense(w.Values, w.Test.Rows())
	if err != nil {
		return fmt.Errorf("shapley fold %d: %w", w.Fold, err)
	}
	*f = ShapleyFold{Fold: w.Fold, TestGroup: w.TestGroup, BaseValue: w.BaseValue, Values: values, Test: w.Test}
	return nil
}

// FoldWarning records a fold left out of every method.
type FoldWarning struct {
	Fold      int    `json:"fold"`
	TestGroup int    `json:"test_group"`
	Reason    string `json:"reason"`
}

// Result collects per-fold importances in fold order.
type Result struct {
	Methods     []Method         `json:"methods"`
	Features    []string         `json:"features"`
	Impurity    []FoldImportance `json:"impurity,omitempty"`
	Permutation []FoldImportance `json:"permutation,omitempty"`
	Shapley     []ShapleyFold    `json:"shapley,omitempty"`
	Skipped     []FoldWarning    `json:"skipped,omitempty"`

	// ShapleyAggregate stacks the Shapley fold matrices; AggregateTest is the
	// matching concatenation of their test tables.
	ShapleyAggregate *mat.Dense          `json:"-"`
	AggregateTest    *group.FeatureTable `json:"-"`
}

type resultJSON struct {
	ShapleyAggregate [][]float64         `json:"shapley_aggregate,omitempty"`
	AggregateTest    *group.FeatureTable `json:"aggregate_test,omitempty"`
}

// MarshalJSON adds the aggregate attribution rows and their test rows.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		resultJSON
	}{plain(r), resultJSON{ShapleyAggregate: denseRows(r.ShapleyAggregate), AggregateTest: r.AggregateTest}})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	var w struct {
		plain
		resultJSON
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	aggregate, err := rowsDense(w.resultJSON.ShapleyAggregate, w.resultJSON.AggregateTest.Rows())
	if err != nil {
		return fmt.Errorf("shapley aggregate: %w", err)
	}
	*r = Result(w.plain)
	r.ShapleyAggregate, r.AggregateTest = aggregate, w.resultJSON.AggregateTest
	return nil
}

func denseRows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	rows, _ := m.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = m.RawRowView(i)
	}
	return out
}

// rowsDense rebuilds a matrix that must have one row per test row.
func rowsDense(rows [][]float64, want int) (*mat.Dense, error) {
	if len(rows) != want {
		return nil, fmt.Errorf("%d attribution rows for %d test rows", len(rows), want)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, fmt.Errorf("attribution rows are empty")
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("attribution row %d has %d values, expected %d", i, len(row), cols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

// Ranking is one feature's mean importance across folds.
type Ranking struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Mean averages a method across the computed folds, ordered by decreasing
// importance. Shapley importance is the mean absolute attribution over the
// aggregate rows.
func (r *Result) Mean(m Method) []Ranking {
	out := make([]Ranking, 0, len(r.Features))
	switch m {
	case Impurity, Permutation:
		folds := r.Impurity
		if m == Permutation {
			folds = r.Permutation
		}
		if len(folds) == 0 {
			return nil
		}
		for _, name := range r.Features {
			values := make([]float64, len(folds))
			for i, f := range folds {
				values[i] = f.Values[name]
			}
			out = append(out, Ranking{Feature: name, Importance: metrics.Mean(values)})
		}
	case Shapley:
		if r.ShapleyAggregate == nil {
			return nil
		}
		rows, _ := r.ShapleyAggregate.Dims()
		for j, name := range r.Features {
			sum := 0.0
			for i := 0; i < rows; i++ {
				sum += math.Abs(r.ShapleyAggregate.At(i, j))
			}
			out = append(out, Ranking{Feature: name, Importance: sum / float64(rows)})
		}
	default:
		return nil
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}

// Below returns the real features whose mean importance does not exceed the
// best random calibration column. Nil when no calibration column was used.
func (r *Result) Below(m Method) []string {
	ranking := r.Mean(m)
	threshold, found := math.Inf(-1), false
	for _, rk := range ranking {
		if rk.Feature == HighCardRandom || rk.Feature == LowCardRandom {
			threshold, found = math.Max(threshold, rk.Importance), true
		}
	}
	if !found {
		return nil
	}
	var out []string
	for _, rk := range ranking {
		if rk.Feature != HighCardRandom && rk.Feature != LowCardRandom && rk.Importance <= threshold {
			out = append(out, rk.Feature)
		}
	}
	return out
}
