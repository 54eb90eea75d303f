// Package importance estimates per-feature importance on every outer fold by
// impurity decrease, permutation accuracy drop and TreeSHAP attributions,
// with optional random columns as a null baseline.
package importance

import (
	"context"
	"fmt"

	"floodcv/domain/core"
	"floodcv/domain/group"
	"floodcv/internal"
	"floodcv/internal/forest"
	"floodcv/internal/metrics"
	"floodcv/internal/rng"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Engine computes importances fold by fold.
type Engine struct {
	config Config
	logger *internal.Logger
}

// NewEngine validates config and creates an engine.
func NewEngine(config Config, logger *internal.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Engine{config: config, logger: logger.Named("ImportanceEngine")}, nil
}

type foldOutcome struct {
	skipped     error
	features    []string
	impurity    map[string]float64
	permutation map[string]float64
	shapley     *ShapleyFold
}

// Compute runs every configured method on every fold. Single-class folds are
// skipped with a warning; the Shapley aggregate is checked against the
// concatenated test tables of the folds that produced it.
func (e *Engine) Compute(ctx context.Context, folds []group.Fold) (*Result, error) {
	if len(folds) == 0 {
		return nil, core.NewFoldConstructionError("no folds for importance")
	}

	outcomes := make([]foldOutcome, len(folds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)
	for i, f := range folds {
		g.Go(func() error {
			out, err := e.computeFold(gctx, f)
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

	res := &Result{Methods: append([]Method(nil), e.config.Methods...)}
	var attributions []*mat.Dense
	var tests []*group.FeatureTable
	for i, out := range outcomes {
		f := folds[i]
		if out.skipped != nil {
			e.logger.Warn("skipping fold %d: %v", f.Index, out.skipped)
			res.Skipped = append(res.Skipped, FoldWarning{Fold: f.Index, TestGroup: f.TestGroup, Reason: out.skipped.Error()})
			continue
		}
		if res.Features == nil {
			res.Features = out.features
		}
		if out.impurity != nil {
			res.Impurity = append(res.Impurity, FoldImportance{Fold: f.Index, TestGroup: f.TestGroup, Values: out.impurity})
		}
		if out.permutation != nil {
			res.Permutation = append(res.Permutation, FoldImportance{Fold: f.Index, TestGroup: f.TestGroup, Values: out.permutation})
		}
		if out.shapley != nil {
			res.Shapley = append(res.Shapley, *out.shapley)
			attributions = append(attributions, out.shapley.Values)
			tests = append(tests, out.shapley.Test)
		}
	}

	if len(attributions) > 0 {
		aggregate, test, err := stack(attributions, tests)
		if err != nil {
			return nil, err
		}
		res.ShapleyAggregate, res.AggregateTest = aggregate, test
	}
	e.logger.Info("computed %v importances on %d of %d folds", e.config.Methods, len(folds)-len(res.Skipped), len(folds))
	return res, nil
}

func (e *Engine) computeFold(ctx context.Context, f group.Fold) (foldOutcome, error) {
	var out foldOutcome
	switch {
	case f.Train.SingleClass():
		out.skipped = core.NewImportanceError(f.Index, "training split has a single class")
		return out, nil
	case f.Test.SingleClass():
		out.skipped = core.NewImportanceError(f.Index, "test split has a single class")
		return out, nil
	}

	train, test, err := e.withRandomColumns(f)
	if err != nil {
		return out, err
	}
	out.features = train.Features

	model, err := forest.Fit(ctx, train, e.config.Params)
	if err != nil {
		return out, fmt.Errorf("fit importance model: %w", err)
	}

	if e.config.enabled(Impurity) {
		out.impurity = keyed(train.Features, model.FeatureImportances())
	}
	if e.config.enabled(Permutation) {
		drops, err := e.permutationImportance(ctx, model, test, f.Index)
		if err != nil {
			return out, err
		}
		out.permutation = keyed(test.Features, drops)
	}
	if e.config.enabled(Shapley) {
		values, err := model.Explain(ctx, test)
		if err != nil {
			return out, fmt.Errorf("explain: %w", err)
		}
		out.shapley = &ShapleyFold{
			Fold:      f.Index,
			TestGroup: f.TestGroup,
			BaseValue: model.ExpectedValue(),
			Values:    values,
			Test:      test,
		}
	}
	return out, nil
}

// withRandomColumns appends the enabled calibration columns to copies of the
// fold's splits.
func (e *Engine) withRandomColumns(f group.Fold) (train, test *group.FeatureTable, err error) {
	train, test = f.Train, f.Test
	columns := []struct {
		name    string
		enabled bool
		limit   int
	}{
		{HighCardRandom, e.config.HighCardRandom, highCardRange},
		{LowCardRandom, e.config.LowCardRandom, lowCardRange},
	}
	for _, c := range columns {
		if !c.enabled {
			continue
		}
		if train, err = train.WithColumn(c.name, e.randomColumn(f.Index, "train", c.name, train.Rows(), c.limit)); err != nil {
			return nil, nil, err
		}
		if test, err = test.WithColumn(c.name, e.randomColumn(f.Index, "test", c.name, test.Rows(), c.limit)); err != nil {
			return nil, nil, err
		}
	}
	return train, test, nil
}

func (e *Engine) randomColumn(fold int, split, name string, n, limit int) []float64 {
	r := rng.Stream(e.config.RandomColumnSeed, rng.Index(fold), split, name)
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(r.Intn(limit))
	}
	return values
}

// permutationImportance returns, per feature, baseline accuracy minus the
// accuracy with that feature shuffled, averaged over the configured repeats.
func (e *Engine) permutationImportance(ctx context.Context, model *forest.Forest, test *group.FeatureTable, fold int) ([]float64, error) {
	baseline, err := metrics.Accuracy(test.Y, model.Predict(test))
	if err != nil {
		return nil, err
	}

	x := mat.DenseCopyOf(test.X)
	drops := make([]float64, test.Cols())
	column := make([]float64, test.Rows())
	for j, name := range test.Features {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		original := test.Column(j)
		r := rng.Stream(e.config.PermutationSeed, rng.Index(fold), name)
		total := 0.0
		for rep := 0; rep < e.config.PermutationRepeats; rep++ {
			copy(column, original)
			r.Shuffle(len(column), func(a, b int) { column[a], column[b] = column[b], column[a] })
			x.SetCol(j, column)
			acc, err := metrics.Accuracy(test.Y, model.PredictMatrix(x))
			if err != nil {
				return nil, err
			}
			total += baseline - acc
		}
		x.SetCol(j, original)
		drops[j] = total / float64(e.config.PermutationRepeats)
	}
	return drops, nil
}

// stack concatenates attribution matrices along the row axis and the matching
// test tables in the same order. Row counts must agree.
func stack(attributions []*mat.Dense, tests []*group.FeatureTable) (*mat.Dense, *group.FeatureTable, error) {
	test, err := group.Concat(tests...)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate test tables: %w", err)
	}

	rows, cols := 0, 0
	for _, a := range attributions {
		if a == nil {
			continue
		}
		r, c := a.Dims()
		rows += r
		cols = c
	}
	if rows != test.Rows() {
		return nil, nil, core.NewAlignmentError(rows, test.Rows())
	}
	if rows == 0 {
		return nil, test, nil
	}

	aggregate := mat.NewDense(rows, cols, nil)
	offset := 0
	for _, a := range attributions {
		if a == nil {
			continue
		}
		r, _ := a.Dims()
		aggregate.Slice(offset, offset+r, 0, cols).(*mat.Dense).Copy(a)
		offset += r
	}
	return aggregate, test, nil
}

func keyed(features []string, values []float64) map[string]float64 {
	out := make(map[string]float64, len(features))
	for j, name := range features {
		out[name] = values[j]
	}
	return out
}
