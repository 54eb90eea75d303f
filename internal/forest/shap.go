package forest

import (
	"context"

	"floodcv/domain/group"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// ExpectedValue is the mean positive-class probability over the training
// distribution, the base value of the Shapley attributions.
func (f *Forest) ExpectedValue() float64 {
	sum := 0.0
	for _, t := range f.trees {
		sum += t.nodes[0].value[1]
	}
	return sum / float64(len(f.trees))
}

// ShapRow returns the Shapley attribution of every feature to the positive
// class probability of x. The values sum to Proba(x)[1] - ExpectedValue().
func (f *Forest) ShapRow(x []float64) []float64 {
	phi := make([]float64, len(f.Features))
	for _, t := range f.trees {
		t.shap(x, phi)
	}
	n := float64(len(f.trees))
	for j := range phi {
		phi[j] /= n
	}
	return phi
}

// Explain computes attributions for every row of table as a rows x features matrix.
func (f *Forest) Explain(ctx context.Context, table *group.FeatureTable) (*mat.Dense, error) {
	rows, cols := table.Rows(), len(f.Features)
	if rows == 0 {
		return nil, nil
	}
	out := mat.NewDense(rows, cols, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.Params.workers())
	for i := 0; i < rows; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out.SetRow(i, f.ShapRow(table.Row(i)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type pathElement struct {
	feature int
	zero    float64
	one     float64
	weight  float64
}

func (t *Tree) shap(x []float64, phi []float64) {
	maxd := t.depth + 3
	path := make([]pathElement, maxd*(maxd+1)/2)
	t.shapRecurse(0, x, phi, path, 0, 1, 1, -1)
}

func (t *Tree) shapRecurse(n int, x, phi []float64, parent []pathElement, depth int, zero, one float64, feature int) {
	path := parent[depth+1:]
	copy(path[:depth+1], parent[:depth+1])
	extendPath(path, depth, zero, one, feature)

	nd := &t.nodes[n]
	if nd.leaf() {
		for i := 1; i <= depth; i++ {
			w := unwoundPathSum(path, depth, i)
			el := path[i]
			phi[el.feature] += w * (el.one - el.zero) * nd.value[1]
		}
		return
	}

	hot, cold := nd.left, nd.right
	if x[nd.feature] > nd.threshold {
		hot, cold = cold, hot
	}
	hotZero := t.nodes[hot].cover / nd.cover
	coldZero := t.nodes[cold].cover / nd.cover
	inZero, inOne := 1.0, 1.0

	k := 0
	for ; k <= depth; k++ {
		if path[k].feature == nd.feature {
			break
		}
	}
	if k != depth+1 {
		inZero = path[k].zero
		inOne = path[k].one
		unwindPath(path, depth, k)
		depth--
	}

	t.shapRecurse(hot, x, phi, path, depth+1, hotZero*inZero, inOne, nd.feature)
	t.shapRecurse(cold, x, phi, path, depth+1, coldZero*inZero, 0, nd.feature)
}

func extendPath(path []pathElement, depth int, zero, one float64, feature int) {
	path[depth] = pathElement{feature: feature, zero: zero, one: one}
	if depth == 0 {
		path[depth].weight = 1
	}
	for i := depth - 1; i >= 0; i-- {
		path[i+1].weight += one * path[i].weight * float64(i+1) / float64(depth+1)
		path[i].weight = zero * path[i].weight * float64(depth-i) / float64(depth+1)
	}
}

func unwindPath(path []pathElement, depth, k int) {
	one := path[k].one
	zero := path[k].zero
	next := path[depth].weight
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := path[i].weight
			path[i].weight = next * float64(depth+1) / (float64(i+1) * one)
			next = tmp - path[i].weight*zero*float64(depth-i)/float64(depth+1)
		} else {
			path[i].weight = path[i].weight * float64(depth+1) / (zero * float64(depth-i))
		}
	}
	for i := k; i < depth; i++ {
		path[i].feature = path[i+1].feature
		path[i].zero = path[i+1].zero
		path[i].one = path[i+1].one
	}
}

func unwoundPathSum(path []pathElement, depth, k int) float64 {
	one := path[k].one
	zero := path[k].zero
	next := path[depth].weight
	total := 0.0
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := next * float64(depth+1) / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*float64(depth-i)/float64(depth+1)
		} else if zero != 0 {
			total += path[i].weight / zero / (float64(depth-i) / float64(depth+1))
		}
	}
	return total
}
