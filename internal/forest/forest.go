// Package forest implements a bagged CART random forest for binary
// classification, with mean-decrease-in-impurity importances and exact
// path-dependent TreeSHAP attributions.
package forest

import (
	"context"
	"fmt"

	"floodcv/domain/group"
	"floodcv/internal/rng"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Forest is a fitted random forest.
type Forest struct {
	Params   Params
	Features []string
	trees    []*Tree
}

// Fit trains a forest on table. Trees are grown from seeds drawn up front, so
// the result does not depend on Params.Workers.
func Fit(ctx context.Context, table *group.FeatureTable, p Params) (*Forest, error) {
	if err := p.Validate(table.Cols()); err != nil {
		return nil, err
	}
	if table.Rows() == 0 {
		return nil, fmt.Errorf("cannot fit a forest on an empty table")
	}

	raw := table.X.RawMatrix()
	x := matrix{data: raw.Data, stride: raw.Stride}
	seeds := rng.Seeds(p.Seed, p.NEstimators)
	trees := make([]*Tree, p.NEstimators)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			trees[i] = buildTree(x, table.Y, table.Cols(), p, seeds[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Forest{
		Params:   p,
		Features: append([]string(nil), table.Features...),
		trees:    trees,
	}, nil
}

// Trees returns the fitted trees.
func (f *Forest) Trees() []*Tree { return f.trees }

// Proba returns the averaged class probabilities for one row.
func (f *Forest) Proba(x []float64) [2]float64 {
	var sum [2]float64
	for _, t := range f.trees {
		v := t.predict(x)
		sum[0] += v[0]
		sum[1] += v[1]
	}
	n := float64(len(f.trees))
	return [2]float64{sum[0] / n, sum[1] / n}
}

// PredictRow returns the predicted class for one row. Ties go to class 0.
func (f *Forest) PredictRow(x []float64) int {
	p := f.Proba(x)
	if p[1] > p[0] {
		return 1
	}
	return 0
}

// Predict returns the predicted class for every row of table.
func (f *Forest) Predict(table *group.FeatureTable) []int {
	out := make([]int, table.Rows())
	for i := range out {
		out[i] = f.PredictRow(table.Row(i))
	}
	return out
}

// PredictMatrix predicts rows of a dense matrix laid out like the training table.
func (f *Forest) PredictMatrix(x *mat.Dense) []int {
	r, _ := x.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		out[i] = f.PredictRow(x.RawRowView(i))
	}
	return out
}

// FeatureImportances returns the normalized mean decrease in impurity per
// feature. Trees that never split are left out of the average.
func (f *Forest) FeatureImportances() []float64 {
	out := make([]float64, len(f.Features))
	used := 0
	for _, t := range f.trees {
		if t.NodeCount() <= 1 {
			continue
		}
		used++
		for j, v := range t.importance {
			out[j] += v
		}
	}
	if used == 0 {
		return out
	}
	for j := range out {
		out[j] /= float64(used)
	}
	normalize(out)
	return out
}
