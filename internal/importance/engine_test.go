package importance

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"floodcv/domain/core"
	"floodcv/domain/group"
	"floodcv/internal"
	"floodcv/internal/folds"
	"floodcv/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testFolds(t *testing.T) []group.Fold {
	t.Helper()
	cfg := testkit.DefaultFloodConfig()
	cfg.RowsPerGroup = 120
	cfg.Features = 4
	outer, err := folds.BuildLOGO(testkit.NewFloodDataGenerator(cfg).Generate())
	require.NoError(t, err)
	return outer
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.NEstimators = 20
	return cfg
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, internal.NewLogger(internal.LogLevelError))
	require.NoError(t, err)
	return e
}

func TestComputeAllMethods(t *testing.T) {
	outer := testFolds(t)
	res, err := newEngine(t, fastConfig()).Compute(context.Background(), outer)
	require.NoError(t, err)

	assert.Equal(t, []string{"f0", "f1", "f2", "f3", HighCardRandom, LowCardRandom}, res.Features)
	assert.Empty(t, res.Skipped)
	require.Len(t, res.Impurity, len(outer))
	require.Len(t, res.Permutation, len(outer))
	require.Len(t, res.Shapley, len(outer))

	for i, fi := range res.Impurity {
		assert.Equal(t, outer[i].Index, fi.Fold)
		sum := 0.0
		for _, v := range fi.Values {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
		assert.Len(t, res.Permutation[i].Values, len(res.Features))
	}

	total := 0
	for i, s := range res.Shapley {
		rows, cols := s.Values.Dims()
		assert.Equal(t, outer[i].Test.Rows(), rows)
		assert.Equal(t, len(res.Features), cols)
		assert.Greater(t, s.BaseValue, 0.0)
		assert.Less(t, s.BaseValue, 1.0)
		total += rows
	}
	aggRows, _ := res.ShapleyAggregate.Dims()
	assert.Equal(t, total, aggRows)
	assert.Equal(t, aggRows, res.AggregateTest.Rows())
}

func TestInformativeFeaturesBeatRandomColumns(t *testing.T) {
	res, err := newEngine(t, fastConfig()).Compute(context.Background(), testFolds(t))
	require.NoError(t, err)

	for _, m := range AllMethods {
		ranking := res.Mean(m)
		require.Len(t, ranking, len(res.Features), m)
		scores := map[string]float64{}
		for _, r := range ranking {
			scores[r.Feature] = r.Importance
		}
		assert.Greater(t, scores["f0"], scores[LowCardRandom], m)
		assert.Contains(t, []string{"f0", "f1"}, ranking[0].Feature, m)
		assert.NotContains(t, res.Below(m), "f0", m)
	}
}

func TestRandomColumns(t *testing.T) {
	outer := testFolds(t)
	e := newEngine(t, fastConfig())

	train, test, err := e.withRandomColumns(outer[0])
	require.NoError(t, err)
	assert.Equal(t, outer[0].Train.Cols()+2, train.Cols())
	assert.Equal(t, outer[0].Test.Cols()+2, test.Cols())
	assert.Equal(t, 4, outer[0].Train.Cols(), "fold tables are not modified")

	for _, c := range []struct {
		name  string
		limit float64
	}{{HighCardRandom, 10000}, {LowCardRandom, 10}} {
		for _, v := range train.Column(train.FeatureIndex(c.name)) {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, c.limit)
			assert.Equal(t, float64(int(v)), v)
		}
	}

	again, _, err := e.withRandomColumns(outer[0])
	require.NoError(t, err)
	assert.Equal(t, train.Column(train.FeatureIndex(HighCardRandom)), again.Column(again.FeatureIndex(HighCardRandom)))

	cfg := fastConfig()
	cfg.HighCardRandom = false
	cfg.LowCardRandom = false
	train, _, err = newEngine(t, cfg).withRandomColumns(outer[0])
	require.NoError(t, err)
	assert.Equal(t, outer[0].Train.Features, train.Features)
}

func TestSkipsSingleClassFolds(t *testing.T) {
	outer := testFolds(t)
	flooded := make([]int, 0)
	for i, y := range outer[1].Test.Y {
		if y == 1 {
			flooded = append(flooded, i)
		}
	}
	outer[1].Test = outer[1].Test.Subset(flooded)

	res, err := newEngine(t, fastConfig()).Compute(context.Background(), outer)
	require.NoError(t, err)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, outer[1].Index, res.Skipped[0].Fold)
	assert.Contains(t, res.Skipped[0].Reason, core.ErrImportanceComputation.Error())
	assert.Len(t, res.Impurity, len(outer)-1)
	assert.Len(t, res.Shapley, len(outer)-1)

	rows, _ := res.ShapleyAggregate.Dims()
	assert.Equal(t, rows, res.AggregateTest.Rows())
	assert.Equal(t, outer[0].Test.Rows()+outer[2].Test.Rows()+outer[3].Test.Rows(), rows)
}

func TestComputeDeterministicAcrossWorkers(t *testing.T) {
	outer := testFolds(t)
	seq, err := newEngine(t, fastConfig()).Compute(context.Background(), outer)
	require.NoError(t, err)

	cfg := fastConfig()
	cfg.Workers = 4
	par, err := newEngine(t, cfg).Compute(context.Background(), outer)
	require.NoError(t, err)

	assert.Equal(t, seq.Impurity, par.Impurity)
	assert.Equal(t, seq.Permutation, par.Permutation)
	assert.True(t, mat.Equal(seq.ShapleyAggregate, par.ShapleyAggregate))
}

func TestPermutationSeedIsIndependent(t *testing.T) {
	outer := testFolds(t)[:1]
	cfg := fastConfig()
	cfg.Methods = []Method{Permutation}
	a, err := newEngine(t, cfg).Compute(context.Background(), outer)
	require.NoError(t, err)

	cfg.PermutationSeed = 7
	b, err := newEngine(t, cfg).Compute(context.Background(), outer)
	require.NoError(t, err)

	assert.NotEqual(t, a.Permutation[0].Values, b.Permutation[0].Values)
	assert.Nil(t, a.Impurity)
	assert.Nil(t, a.ShapleyAggregate)
	assert.Nil(t, a.Mean(Shapley))
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.PermutationRepeats = 5
	assert.Error(t, cfg.Validate())

	cfg.Methods = []Method{Impurity}
	assert.NoError(t, cfg.Validate(), "repeats only matter for permutation")

	cfg.Methods = []Method{"gain"}
	assert.Error(t, cfg.Validate())

	cfg.Methods = nil
	_, err := NewEngine(cfg, nil)
	assert.Error(t, err)
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]Method{
		"Impurity Reduction":   Impurity,
		"permutation accuracy": Permutation,
		" Shapley ":            Shapley,
	} {
		got, err := ParseMethod(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMethod("lime")
	assert.Error(t, err)
}

func TestStackAlignment(t *testing.T) {
	table := testkit.Table(1, 6, 2, 1)
	_, _, err := stack([]*mat.Dense{mat.NewDense(5, 2, nil)}, []*group.FeatureTable{table})
	assert.True(t, errors.Is(err, core.ErrAlignment))

	agg, test, err := stack(
		[]*mat.Dense{mat.NewDense(6, 2, nil), mat.NewDense(6, 2, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1})},
		[]*group.FeatureTable{table, table})
	require.NoError(t, err)
	assert.Equal(t, 12, test.Rows())
	assert.Equal(t, 0.0, agg.At(5, 1))
	assert.Equal(t, 1.0, agg.At(6, 0))
}

func TestResultJSONCarriesShapleyMatrices(t *testing.T) {
	cfg := fastConfig()
	cfg.Methods = []Method{Impurity, Shapley}
	res, err := newEngine(t, cfg).Compute(context.Background(), testFolds(t))
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var wire struct {
		Shapley []struct {
			Values [][]float64 `json:"values"`
			Test   struct {
				Rows   [][]float64 `json:"rows"`
				Labels []int       `json:"labels"`
			} `json:"test"`
		} `json:"shapley"`
		Aggregate     [][]float64 `json:"shapley_aggregate"`
		AggregateTest struct {
			Rows [][]float64 `json:"rows"`
		} `json:"aggregate_test"`
	}
	require.NoError(t, json.Unmarshal(data, &wire))
	require.Len(t, wire.Shapley, len(res.Shapley))
	for i, f := range wire.Shapley {
		assert.Len(t, f.Values, res.Shapley[i].Test.Rows())
		assert.Len(t, f.Test.Rows, len(f.Values))
		assert.Len(t, f.Test.Labels, len(f.Values))
		assert.Len(t, f.Values[0], len(res.Features))
	}
	assert.Len(t, wire.Aggregate, res.AggregateTest.Rows())
	assert.Len(t, wire.AggregateTest.Rows, len(wire.Aggregate))

	var back Result
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, res.Features, back.Features)
	assert.True(t, mat.Equal(res.ShapleyAggregate, back.ShapleyAggregate))
	assert.Equal(t, res.AggregateTest.Y, back.AggregateTest.Y)
	require.Len(t, back.Shapley, len(res.Shapley))
	assert.True(t, mat.Equal(res.Shapley[0].Values, back.Shapley[0].Values))
	assert.Equal(t, res.Mean(Shapley), back.Mean(Shapley))
}

func TestResultJSONRejectsMisalignedRows(t *testing.T) {
	data := []byte(`{"methods":["shapley"],"features":["a"],
		"shapley_aggregate":[[0.1],[0.2]],
		"aggregate_test":{"features":["a"],"rows":[[1]],"labels":[1]}}`)
	var res Result
	err := json.Unmarshal(data, &res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 attribution rows for 1 test rows")
}
