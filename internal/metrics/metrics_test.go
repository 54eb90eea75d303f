package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name  string
		yTrue []int
		yPred []int
		want  Scores
	}{
		{
			name:  "perfect",
			yTrue: []int{1, 0, 1, 0},
			yPred: []int{1, 0, 1, 0},
			want:  Scores{Accuracy: 1, Precision: 1, Recall: 1, F1: 1},
		},
		{
			name:  "mixed",
			yTrue: []int{1, 1, 1, 0, 0},
			yPred: []int{1, 1, 0, 1, 0},
			want:  Scores{Accuracy: 0.6, Precision: 2.0 / 3.0, Recall: 2.0 / 3.0, F1: 2.0 / 3.0},
		},
		{
			name:  "no positive predictions",
			yTrue: []int{1, 0, 0},
			yPred: []int{0, 0, 0},
			want:  Scores{Accuracy: 2.0 / 3.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Score(tt.yTrue, tt.yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Accuracy, got.Accuracy, 1e-12)
			assert.InDelta(t, tt.want.Precision, got.Precision, 1e-12)
			assert.InDelta(t, tt.want.Recall, got.Recall, 1e-12)
			assert.InDelta(t, tt.want.F1, got.F1, 1e-12)
		})
	}
}

func TestScoreLengthMismatch(t *testing.T) {
	_, err := Score([]int{1}, []int{1, 0})
	assert.Error(t, err)
}

func TestConfusion(t *testing.T) {
	m, err := Confusion([]int{1, 1, 0, 0, 1}, []int{1, 0, 0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, ConfusionMatrix{TN: 1, FP: 1, FN: 1, TP: 2}, m)
	assert.Equal(t, 5, m.Total())
}

func TestSummarizeUsesPopulationStd(t *testing.T) {
	s, err := Summarize([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, 1.118033988749895, s.Std, 1e-12)

	empty, err := Summarize(nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, empty)
}

func TestCompare(t *testing.T) {
	c, err := Compare("f1", []float64{0.8, 0.9}, []float64{0.7, 0.7})
	require.NoError(t, err)
	assert.Equal(t, "f1", c.Metric)
	assert.InDelta(t, 0.85, c.Best.Mean, 1e-12)
	assert.InDelta(t, 0.15, c.Delta, 1e-12)
	assert.InDelta(t, 0.0, c.Default.Std, 1e-12)
}
