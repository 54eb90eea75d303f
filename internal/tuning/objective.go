package tuning

import (
	"context"
	"fmt"

	"floodcv/domain/core"
	"floodcv/domain/group"
	"floodcv/internal/folds"
	"floodcv/internal/forest"
	"floodcv/internal/metrics"

	"golang.org/x/sync/errgroup"
)

// Objective scores one parameter set. Higher is better.
type Objective interface {
	Name() string
	NumFeatures() int
	Evaluate(ctx context.Context, p forest.Params) (float64, error)
}

// Objective names
const (
	InnerCV = "inner_cv"
	OuterCV = "outer_cv"
)

type trainTest struct {
	train *group.FeatureTable
	test  *group.FeatureTable
}

// InnerCVObjective scores parameters by stratified k-fold cross-validation on
// the training split of the first outer fold.
type InnerCVObjective struct {
	Train   *group.FeatureTable
	Splits  []folds.InnerSplit
	Workers int

	pairs []trainTest
}

// NewInnerCVObjective builds the inner splits once; every trial reuses them.
func NewInnerCVObjective(outer []group.Fold, k int, workers int) (*InnerCVObjective, error) {
	if len(outer) == 0 {
		return nil, core.NewFoldConstructionError("no outer folds")
	}
	train := outer[0].Train
	splits, err := folds.NewStratifiedKFold(k).SplitTable(train)
	if err != nil {
		return nil, core.NewFoldConstructionError(err.Error())
	}
	pairs := make([]trainTest, len(splits))
	for i, s := range splits {
		pairs[i] = trainTest{train: train.Subset(s.Train), test: train.Subset(s.Validation)}
	}
	return &InnerCVObjective{Train: train, Splits: splits, Workers: workers, pairs: pairs}, nil
}

func (o *InnerCVObjective) Name() string    { return InnerCV }
func (o *InnerCVObjective) NumFeatures() int { return o.Train.Cols() }

// Evaluate returns the mean F1 over the inner validation folds.
func (o *InnerCVObjective) Evaluate(ctx context.Context, p forest.Params) (float64, error) {
	scores, err := crossValidate(ctx, o.pairs, p, o.Workers)
	if err != nil {
		return 0, err
	}
	return metrics.Mean(scores), nil
}

// OuterCVObjective scores parameters on every leave-one-group-out fold.
type OuterCVObjective struct {
	Folds   []group.Fold
	Workers int
}

// NewOuterCVObjective wraps the outer folds.
func NewOuterCVObjective(outer []group.Fold, workers int) (*OuterCVObjective, error) {
	if len(outer) == 0 {
		return nil, core.NewFoldConstructionError("no outer folds")
	}
	return &OuterCVObjective{Folds: outer, Workers: workers}, nil
}

func (o *OuterCVObjective) Name() string    { return OuterCV }
func (o *OuterCVObjective) NumFeatures() int { return o.Folds[0].Train.Cols() }

// Evaluate returns the mean F1 over the outer test splits.
func (o *OuterCVObjective) Evaluate(ctx context.Context, p forest.Params) (float64, error) {
	pairs := make([]trainTest, len(o.Folds))
	for i, f := range o.Folds {
		pairs[i] = trainTest{train: f.Train, test: f.Test}
	}
	scores, err := crossValidate(ctx, pairs, p, o.Workers)
	if err != nil {
		return 0, err
	}
	return metrics.Mean(scores), nil
}

// crossValidate fits one forest per pair and returns F1 scores indexed like
// pairs, independent of completion order.
func crossValidate(ctx context.Context, pairs []trainTest, p forest.Params, workers int) ([]float64, error) {
	if workers < 1 {
		workers = 1
	}
	scores := make([]float64, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, pair := range pairs {
		g.Go(func() error {
			model, err := forest.Fit(gctx, pair.train, p)
			if err != nil {
				return err
			}
			f1, err := metrics.F1(pair.test.Y, model.Predict(pair.test))
			if err != nil {
				return fmt.Errorf("fold %d: %w", i, err)
			}
			scores[i] = f1
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}
