package group

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *FeatureTable {
	t.Helper()
	table, err := NewFeatureTable(
		[]string{"VV", "VH", "DEM"},
		[][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}},
		[]int{1, 0, 1},
	)
	require.NoError(t, err)
	return table
}

func TestNewFeatureTableValidation(t *testing.T) {
	tests := []struct {
		name     string
		features []string
		rows     [][]float64
		labels   []int
	}{
		{"no features", nil, nil, nil},
		{"label count mismatch", []string{"a"}, [][]float64{{1}}, []int{0, 1}},
		{"ragged row", []string{"a", "b"}, [][]float64{{1}}, []int{0}},
		{"non-binary label", []string{"a"}, [][]float64{{1}}, []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFeatureTable(tt.features, tt.rows, tt.labels)
			assert.Error(t, err)
		})
	}
}

func TestEmptyTable(t *testing.T) {
	table, err := NewFeatureTable([]string{"a"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Rows())
	assert.Nil(t, table.X)
	assert.Equal(t, 1, table.Cols())
}

func TestSubsetAndSelect(t *testing.T) {
	table := sampleTable(t)

	sub := table.Subset([]int{2, 0})
	assert.Equal(t, []int{1, 1}, sub.Y)
	assert.Equal(t, []float64{7, 8, 9}, sub.Row(0))

	sel, err := table.Select([]string{"DEM", "VV"})
	require.NoError(t, err)
	assert.Equal(t, []string{"DEM", "VV"}, sel.Features)
	assert.Equal(t, []float64{6, 4}, sel.Row(1))

	_, err = table.Select([]string{"slope"})
	assert.Error(t, err)
}

func TestConcat(t *testing.T) {
	a := sampleTable(t)
	b := a.Subset([]int{1})

	c, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Rows())
	assert.Equal(t, []int{1, 0, 1, 0}, c.Y)
	assert.Equal(t, []float64{4, 5, 6}, c.Row(3))

	other, err := a.Select([]string{"VV"})
	require.NoError(t, err)
	_, err = Concat(a, other)
	assert.Error(t, err)
}

func TestWithColumnDoesNotMutate(t *testing.T) {
	table := sampleTable(t)

	wide, err := table.WithColumn("RANDOM", []float64{10, 20, 30})
	require.NoError(t, err)
	assert.Equal(t, 4, wide.Cols())
	assert.Equal(t, 3, table.Cols())
	assert.Equal(t, []float64{4, 5, 6, 20}, wide.Row(1))

	_, err = table.WithColumn("VV", []float64{1, 2, 3})
	assert.Error(t, err)
	_, err = table.WithColumn("X", []float64{1})
	assert.Error(t, err)
}

func TestClassCounts(t *testing.T) {
	table := sampleTable(t)
	assert.Equal(t, [2]int{1, 2}, table.ClassCounts())
	assert.False(t, table.SingleClass())
	assert.True(t, table.Subset([]int{0, 2}).SingleClass())
}

func TestGroupNameAndSummary(t *testing.T) {
	g := &ObservationGroup{Label: "valencia", Date: time.Date(2022, 9, 14, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "2022_09_14_valencia", g.Name())

	table := sampleTable(t)
	folds := []Fold{{Index: 0, TestGroup: 0, TrainGroups: []int{1}, Train: table, Test: table.Subset([]int{1})}}
	summaries := Summarize(folds, []*ObservationGroup{g})
	require.Len(t, summaries, 1)
	assert.Equal(t, "2022_09_14_valencia", summaries[0].TestGroup)
	assert.Equal(t, 3, summaries[0].TrainRows)
	assert.Equal(t, 2, summaries[0].TrainPositives)
	assert.Equal(t, 0, summaries[0].TestPositives)
}

func TestFeatureTableJSON(t *testing.T) {
	table := sampleTable(t)
	data, err := json.Marshal(table)
	require.NoError(t, err)
	assert.JSONEq(t, `{"features":["VV","VH","DEM"],"rows":[[1,2,3],[4,5,6],[7,8,9]],"labels":[1,0,1]}`, string(data))

	var back FeatureTable
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, table.Features, back.Features)
	assert.Equal(t, table.Y, back.Y)
	assert.Equal(t, table.X.RawMatrix().Data, back.X.RawMatrix().Data)

	err = json.Unmarshal([]byte(`{"features":["VV"],"rows":[[1],[2]],"labels":[1]}`), &back)
	assert.Error(t, err)
}
