package tuning

import (
	"context"
	"fmt"
	"sort"

	"floodcv/domain/group"
	"floodcv/domain/search"
	"floodcv/internal/forest"

	"github.com/montanaflynn/stats"
)

// HistoryPoint is one complete trial and the best score seen up to it.
type HistoryPoint struct {
	Trial int     `json:"trial"`
	Score float64 `json:"score"`
	Best  float64 `json:"best"`
}

// ParamImportance is the share of the trial outcome attributed to one
// hyperparameter.
type ParamImportance struct {
	Param      string  `json:"param"`
	Importance float64 `json:"importance"`
}

// Analytics summarizes a finished study.
type Analytics struct {
	Completed   int               `json:"completed"`
	Infeasible  int               `json:"infeasible"`
	Best        *search.Trial     `json:"best,omitempty"`
	History     []HistoryPoint    `json:"history"`
	Importances []ParamImportance `json:"param_importances"`
}

// Analyze builds the optimization history and the parameter importances.
func Analyze(ctx context.Context, study *search.Study, seed int64) (*Analytics, error) {
	out := &Analytics{History: OptimizationHistory(study)}
	out.Completed = len(out.History)
	out.Infeasible = len(study.Trials) - out.Completed
	if best, ok := study.Best(); ok {
		out.Best = &best
	}
	imp, err := ParamImportances(ctx, study, seed)
	if err != nil {
		return nil, err
	}
	out.Importances = imp
	return out, nil
}

// OptimizationHistory returns the complete trials in order with the running
// maximum of their scores.
func OptimizationHistory(study *search.Study) []HistoryPoint {
	completed := study.Completed()
	out := make([]HistoryPoint, len(completed))
	for i, t := range completed {
		best := t.Score
		if i > 0 && out[i-1].Best > best {
			best = out[i-1].Best
		}
		out[i] = HistoryPoint{Trial: t.Number, Score: t.Score, Best: best}
	}
	return out
}

// ParamImportances fits a forest that separates trials scoring above the
// median from the rest, using the trial parameters as features, and returns
// its impurity importances in decreasing order. Parameters that never vary
// are left out. The result is empty when fewer than two trials complete, no
// parameter varies or every trial lands on the same side of the median.
func ParamImportances(ctx context.Context, study *search.Study, seed int64) ([]ParamImportance, error) {
	completed := study.Completed()
	if len(completed) < 2 {
		return nil, nil
	}
	names, rows := encodeTrials(completed)
	if len(names) == 0 {
		return nil, nil
	}

	scores := make([]float64, len(completed))
	for i, t := range completed {
		scores[i] = t.Score
	}
	median, err := stats.Median(scores)
	if err != nil {
		return nil, fmt.Errorf("median trial score: %w", err)
	}
	labels := make([]int, len(completed))
	for i, s := range scores {
		if s > median {
			labels[i] = 1
		}
	}

	table, err := group.NewFeatureTable(names, rows, labels)
	if err != nil {
		return nil, err
	}
	if table.SingleClass() {
		return nil, nil
	}

	p := forest.DefaultParams()
	p.NEstimators = 64
	p.MaxFeatures = len(names)
	p.Seed = seed
	f, err := forest.Fit(ctx, table, p)
	if err != nil {
		return nil, fmt.Errorf("fit parameter importance model: %w", err)
	}

	values := f.FeatureImportances()
	out := make([]ParamImportance, len(names))
	for j, name := range names {
		out[j] = ParamImportance{Param: name, Importance: values[j]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out, nil
}

// encodeTrials turns trial parameters into numeric columns, keeping only
// parameters present in every trial with more than one distinct value.
// Categorical values are coded by their sorted position.
func encodeTrials(trials []search.Trial) ([]string, [][]float64) {
	var names []string
	var cols [][]float64
	for _, name := range paramNames(trials) {
		col, ok := encodeParam(trials, name)
		if !ok {
			continue
		}
		names = append(names, name)
		cols = append(cols, col)
	}
	rows := make([][]float64, len(trials))
	for i := range rows {
		rows[i] = make([]float64, len(cols))
		for j, col := range cols {
			rows[i][j] = col[i]
		}
	}
	return names, rows
}

func paramNames(trials []search.Trial) []string {
	seen := map[string]int{}
	for _, t := range trials {
		for name := range t.Params {
			seen[name]++
		}
	}
	var names []string
	for name, n := range seen {
		if n == len(trials) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func encodeParam(trials []search.Trial, name string) ([]float64, bool) {
	col := make([]float64, len(trials))
	numeric := true
	for i, t := range trials {
		v, ok := search.AsFloat(t.Params[name])
		if !ok {
			numeric = false
			break
		}
		col[i] = v
	}
	if !numeric {
		var levels []string
		for _, t := range trials {
			levels = append(levels, fmt.Sprint(t.Params[name]))
		}
		sorted := append([]string(nil), levels...)
		sort.Strings(sorted)
		for i, l := range levels {
			col[i] = float64(sort.SearchStrings(sorted, l))
		}
	}
	for _, v := range col[1:] {
		if v != col[0] {
			return col, true
		}
	}
	return col, false
}
