package describe

import (
	"testing"
	"time"

	"floodcv/domain/group"
	"floodcv/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableGroup(t *testing.T, label string, rows [][]float64) *group.ObservationGroup {
	t.Helper()
	labels := make([]int, len(rows))
	for i := range labels {
		labels[i] = i % 2
	}
	table, err := group.NewFeatureTable([]string{"a", "b", "c"}, rows, labels)
	require.NoError(t, err)
	return &group.ObservationGroup{Label: label, Date: time.Date(2022, 9, 8, 0, 0, 0, 0, time.UTC), Table: table}
}

func pairValue(t *testing.T, gc GroupCorrelation, a, b string) *float64 {
	t.Helper()
	for _, p := range gc.Pairs {
		if p.A == a && p.B == b {
			return p.Value
		}
	}
	t.Fatalf("pair %s/%s missing", a, b)
	return nil
}

func TestCorrelate(t *testing.T) {
	// b = 2a, c = -a^3 (monotone but not linear), then a = 1 - b with c constant
	up := tableGroup(t, "up", [][]float64{{1, 2, -1}, {2, 4, -8}, {3, 6, -27}, {4, 8, -64}})
	flat := tableGroup(t, "flat", [][]float64{{1, 0, 5}, {2, -1, 5}, {3, -2, 5}, {4, -3, 5}})
	groups := []*group.ObservationGroup{up, flat}

	pearson, err := Correlate(groups, []string{"a", "b", "c"}, Pearson)
	require.NoError(t, err)
	require.Len(t, pearson.Groups, 2)
	assert.Equal(t, "2022_09_08_up", pearson.Groups[0].Group)
	assert.Len(t, pearson.Groups[0].Pairs, 3)

	ab := pairValue(t, pearson.Groups[0], "a", "b")
	require.NotNil(t, ab)
	assert.InDelta(t, 1.0, *ab, 1e-12)
	ac := pairValue(t, pearson.Groups[0], "a", "c")
	require.NotNil(t, ac)
	assert.Greater(t, *ac, -1.0+1e-6)
	assert.Nil(t, pairValue(t, pearson.Groups[1], "a", "c"), "constant feature")

	assert.InDelta(t, 1.0, pearson.Matrix[0][1], 1e-12, "|1| and |-1| average to 1")
	assert.Equal(t, pearson.Matrix[0][1], pearson.Matrix[1][0])
	assert.InDelta(t, -*ac, pearson.Matrix[0][2], 1e-12, "only the defined group counts")
	for i := range pearson.Matrix {
		assert.Equal(t, 1.0, pearson.Matrix[i][i])
	}

	spearman, err := Correlate(groups, []string{"a", "b", "c"}, Spearman)
	require.NoError(t, err)
	sac := pairValue(t, spearman.Groups[0], "a", "c")
	require.NotNil(t, sac)
	assert.InDelta(t, -1.0, *sac, 1e-12)
}

func TestCorrelateErrors(t *testing.T) {
	g := tableGroup(t, "up", [][]float64{{1, 2, 3}, {2, 3, 4}})

	_, err := Correlate([]*group.ObservationGroup{g}, []string{"a"}, Pearson)
	assert.Error(t, err)

	_, err = Correlate([]*group.ObservationGroup{g}, []string{"a", "z"}, Pearson)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no feature "z"`)

	g.Table = nil
	_, err = Correlate([]*group.ObservationGroup{g}, []string{"a", "b"}, Pearson)
	assert.Error(t, err)
}

func TestParseCorrelationMethod(t *testing.T) {
	for in, want := range map[string]CorrelationMethod{"": Pearson, "Pearson": Pearson, " spearman ": Spearman} {
		got, err := ParseCorrelationMethod(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCorrelationMethod("kendall")
	assert.Error(t, err)
}

func TestRanks(t *testing.T) {
	assert.Equal(t, []float64{3, 1, 3, 3, 5}, ranks([]float64{2, 1, 2, 2, 9}))
	assert.Equal(t, []float64{2.5, 2.5, 1, 4}, ranks([]float64{5, 5, 0, 7}))
}

func TestValueRanges(t *testing.T) {
	a := tableGroup(t, "a", [][]float64{{1, -2, 0}, {3, 5, 0}})
	b := tableGroup(t, "b", [][]float64{{-4, 1, 2}, {0, 1, 2}})

	ranges, err := ValueRanges([]*group.ObservationGroup{a, b}, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, ranges.Groups, 2)
	assert.Equal(t, Range{Feature: "a", Min: 1, Max: 3}, ranges.Groups[0].Ranges[0])
	assert.Equal(t, Range{Feature: "b", Min: 1, Max: 1}, ranges.Groups[1].Ranges[1])
	assert.Equal(t, []Range{
		{Feature: "a", Min: -4, Max: 3},
		{Feature: "b", Min: -2, Max: 5},
		{Feature: "c", Min: 0, Max: 2},
	}, ranges.Overall)

	empty, err := ValueRanges(nil, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, empty.Overall)
}

func TestCorrelateGeneratedGroups(t *testing.T) {
	cfg := testkit.DefaultFloodConfig()
	cfg.Features = 3
	groups := testkit.NewFloodDataGenerator(cfg).Generate()

	corr, err := Correlate(groups, testkit.FeatureNames(3), Spearman)
	require.NoError(t, err)
	assert.Len(t, corr.Groups, cfg.Groups)
	for i, row := range corr.Matrix {
		for j, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0+1e-12)
			assert.Equal(t, v, corr.Matrix[j][i])
		}
	}
}
