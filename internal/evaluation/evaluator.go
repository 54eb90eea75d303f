// Package evaluation compares a tuned random forest against the library
// defaults on every leave-one-group-out fold.
package evaluation

import (
	"context"
	"fmt"

	"floodcv/domain/core"
	"floodcv/domain/group"
	"floodcv/internal"
	"floodcv/internal/forest"
	"floodcv/internal/metrics"

	"golang.org/x/sync/errgroup"
)

// Metric names in report order.
var MetricNames = []string{"accuracy", "precision", "recall", "f1"}

// MetricLists holds one score per outer fold for every metric.
type MetricLists struct {
	Accuracy  []float64 `json:"accuracy"`
	Precision []float64 `json:"precision"`
	Recall    []float64 `json:"recall"`
	F1        []float64 `json:"f1"`
}

func newMetricLists(n int) MetricLists {
	return MetricLists{
		Accuracy:  make([]float64, n),
		Precision: make([]float64, n),
		Recall:    make([]float64, n),
		F1:        make([]float64, n),
	}
}

func (m MetricLists) set(i int, s metrics.Scores) {
	m.Accuracy[i] = s.Accuracy
	m.Precision[i] = s.Precision
	m.Recall[i] = s.Recall
	m.F1[i] = s.F1
}

// Get returns the list for a metric name, nil if unknown.
func (m MetricLists) Get(metric string) []float64 {
	switch metric {
	case "accuracy":
		return m.Accuracy
	case "precision":
		return m.Precision
	case "recall":
		return m.Recall
	case "f1":
		return m.F1
	}
	return nil
}

// Result pairs best and default scores by fold index. The prediction vectors
// concatenate the test splits in fold order.
type Result struct {
	BestParams    forest.Params `json:"best_params"`
	DefaultParams forest.Params `json:"default_params"`
	TestGroups    []int         `json:"test_groups"`
	Best          MetricLists   `json:"best"`
	Default       MetricLists   `json:"default"`
	YTrue         []int         `json:"y_true"`
	YPredBest     []int         `json:"y_pred_best"`
	YPredDefault  []int         `json:"y_pred_default"`
}

// Summary derives mean, population std and best minus default delta for
// every metric.
func (r *Result) Summary() ([]metrics.Comparison, error) {
	out := make([]metrics.Comparison, 0, len(MetricNames))
	for _, name := range MetricNames {
		c, err := metrics.Compare(name, r.Best.Get(name), r.Default.Get(name))
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Confusion returns the confusion matrices of the best and default models
// over the concatenated predictions.
func (r *Result) Confusion() (best, def metrics.ConfusionMatrix, err error) {
	if best, err = metrics.Confusion(r.YTrue, r.YPredBest); err != nil {
		return
	}
	def, err = metrics.Confusion(r.YTrue, r.YPredDefault)
	return
}

// Evaluator trains and scores the two models per fold.
type Evaluator struct {
	Workers int
	logger  *internal.Logger
}

// NewEvaluator creates an evaluator running up to workers folds at once.
func NewEvaluator(workers int, logger *internal.Logger) *Evaluator {
	if workers < 1 {
		workers = 1
	}
	return &Evaluator{Workers: workers, logger: logger.Named("ModelEvaluator")}
}

type foldOutcome struct {
	best, def         metrics.Scores
	predBest, predDef []int
}

// Evaluate trains a forest with best and one with the library defaults
// (sharing best's seed) on every fold's training split and scores both on
// the test split.
func (e *Evaluator) Evaluate(ctx context.Context, folds []group.Fold, best forest.Params) (*Result, error) {
	if len(folds) == 0 {
		return nil, core.NewFoldConstructionError("no folds to evaluate")
	}
	def := forest.DefaultParams()
	def.Seed = best.Seed
	def.Workers = best.Workers

	outcomes := make([]foldOutcome, len(folds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Workers)
	for i, f := range folds {
		g.Go(func() error {
			out, err := e.evaluateFold(gctx, f, best, def)
			if err != nil {
				return fmt.Errorf("fold %d: %w", f.Index, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		BestParams:    best,
		DefaultParams: def,
		TestGroups:    make([]int, len(folds)),
		Best:          newMetricLists(len(folds)),
		Default:       newMetricLists(len(folds)),
	}
	for i, out := range outcomes {
		res.TestGroups[i] = folds[i].TestGroup
		res.Best.set(i, out.best)
		res.Default.set(i, out.def)
		res.YTrue = append(res.YTrue, folds[i].Test.Y...)
		res.YPredBest = append(res.YPredBest, out.predBest...)
		res.YPredDefault = append(res.YPredDefault, out.predDef...)
	}
	e.logger.Info("evaluated %d folds: mean F1 best %.4f, default %.4f",
		len(folds), metrics.Mean(res.Best.F1), metrics.Mean(res.Default.F1))
	return res, nil
}

func (e *Evaluator) evaluateFold(ctx context.Context, f group.Fold, best, def forest.Params) (foldOutcome, error) {
	var out foldOutcome
	tuned, err := forest.Fit(ctx, f.Train, best)
	if err != nil {
		return out, fmt.Errorf("fit best model: %w", err)
	}
	baseline, err := forest.Fit(ctx, f.Train, def)
	if err != nil {
		return out, fmt.Errorf("fit default model: %w", err)
	}

	out.predBest = tuned.Predict(f.Test)
	out.predDef = baseline.Predict(f.Test)
	if out.best, err = metrics.Score(f.Test.Y, out.predBest); err != nil {
		return out, err
	}
	if out.def, err = metrics.Score(f.Test.Y, out.predDef); err != nil {
		return out, err
	}
	e.logger.Debug("fold %d (test group %d): F1 best %.4f default %.4f", f.Index, f.TestGroup, out.best.F1, out.def.F1)
	return out, nil
}
