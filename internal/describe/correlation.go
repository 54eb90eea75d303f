// Package describe summarizes the sampled feature tables of observation
// groups: pairwise feature correlation and per-feature value ranges.
package describe

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"floodcv/domain/group"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CorrelationMethod selects the correlation coefficient.
type CorrelationMethod string

const (
	Pearson  CorrelationMethod = "pearson"
	Spearman CorrelationMethod = "spearman"
)

// ParseCorrelationMethod accepts "pearson" or "spearman" in any case.
func ParseCorrelationMethod(s string) (CorrelationMethod, error) {
	switch m := CorrelationMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case Pearson, Spearman:
		return m, nil
	case "":
		return Pearson, nil
	}
	return "", fmt.Errorf("unknown correlation method %q", s)
}

// Pair is the correlation of two features within one group. Value is nil
// when either feature is constant in the group.
type Pair struct {
	A     string   `json:"a"`
	B     string   `json:"b"`
	Value *float64 `json:"value"`
}

// GroupCorrelation lists the pairs i<j of one group in feature order.
type GroupCorrelation struct {
	Group string `json:"group"`
	Pairs []Pair `json:"pairs"`
}

// Correlation holds the per-group pairs and the average absolute matrix.
// Matrix[i][j] averages |r| over the groups where the pair is defined; the
// diagonal is 1 and pairs defined in no group are 0.
type Correlation struct {
	Method   CorrelationMethod  `json:"method"`
	Features []string           `json:"features"`
	Groups   []GroupCorrelation `json:"groups"`
	Matrix   [][]float64        `json:"matrix"`
}

// Correlate computes pairwise correlations of the named features in every
// group's table. Groups without a table are rejected.
func Correlate(groups []*group.ObservationGroup, features []string, method CorrelationMethod) (*Correlation, error) {
	if len(features) < 2 {
		return nil, fmt.Errorf("correlation needs at least 2 features, got %d", len(features))
	}
	n := len(features)
	sum := make([][]float64, n)
	count := make([][]int, n)
	for i := range sum {
		sum[i] = make([]float64, n)
		count[i] = make([]int, n)
	}

	out := &Correlation{Method: method, Features: append([]string(nil), features...)}
	for _, g := range groups {
		cols, err := columns(g, features)
		if err != nil {
			return nil, err
		}
		if method == Spearman {
			for j := range cols {
				cols[j] = ranks(cols[j])
			}
		}
		gc := GroupCorrelation{Group: g.Name()}
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				p := Pair{A: features[i], B: features[j]}
				if r, ok := correlation(cols[i], cols[j]); ok {
					p.Value = &r
					sum[i][j] += math.Abs(r)
					count[i][j]++
				}
				gc.Pairs = append(gc.Pairs, p)
			}
		}
		out.Groups = append(out.Groups, gc)
	}

	out.Matrix = make([][]float64, n)
	for i := range out.Matrix {
		out.Matrix[i] = make([]float64, n)
		out.Matrix[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if count[i][j] > 0 {
				v := sum[i][j] / float64(count[i][j])
				out.Matrix[i][j], out.Matrix[j][i] = v, v
			}
		}
	}
	return out, nil
}

func columns(g *group.ObservationGroup, features []string) ([][]float64, error) {
	if g.Table == nil || g.Table.Rows() == 0 {
		return nil, fmt.Errorf("group %s has no feature table", g.Name())
	}
	cols := make([][]float64, len(features))
	for i, name := range features {
		j := g.Table.FeatureIndex(name)
		if j < 0 {
			return nil, fmt.Errorf("group %s has no feature %q", g.Name(), name)
		}
		cols[i] = g.Table.Column(j)
	}
	return cols, nil
}

func correlation(x, y []float64) (float64, bool) {
	if len(x) < 2 || constant(x) || constant(y) {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return r, true
}

func constant(x []float64) bool {
	return floats.Min(x) == floats.Max(x)
}

// ranks returns 1-based ranks with ties sharing their average rank.
func ranks(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	out := make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && x[idx[j]] == x[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			out[idx[k]] = avg
		}
		i = j
	}
	return out
}
