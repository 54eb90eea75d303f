package tuning

import (
	"context"
	"testing"

	"floodcv/domain/search"
	"floodcv/internal/forest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func studyOf(trials ...search.Trial) *search.Study {
	s := search.NewStudy("stub", len(trials))
	for i, t := range trials {
		t.Number = i
		if t.State == "" {
			t.State = search.TrialComplete
		}
		s.Record(t)
	}
	return s
}

func TestOptimizationHistory(t *testing.T) {
	study := studyOf(
		search.Trial{Score: 0.5},
		search.Trial{Score: 0.7},
		search.Trial{Score: 0.6},
		search.Trial{State: search.TrialInfeasible, Error: "max_features too large"},
		search.Trial{Score: 0.8},
	)

	history := OptimizationHistory(study)
	assert.Equal(t, []HistoryPoint{
		{Trial: 0, Score: 0.5, Best: 0.5},
		{Trial: 1, Score: 0.7, Best: 0.7},
		{Trial: 2, Score: 0.6, Best: 0.7},
		{Trial: 4, Score: 0.8, Best: 0.8},
	}, history)
}

func TestParamImportancesFindsDecisiveParam(t *testing.T) {
	var trials []search.Trial
	for i := 0; i < 12; i++ {
		criterion, score := "gini", 0.9+float64(i)*0.001
		if i%2 == 1 {
			criterion, score = "entropy", 0.5+float64(i)*0.001
		}
		trials = append(trials, search.Trial{
			Score: score,
			Params: search.Assignment{
				forest.ParamCriterion:   criterion,
				forest.ParamNEstimators: 10 * (i/2 + 1),
				forest.ParamMaxDepth:    5,
			},
		})
	}

	analytics, err := Analyze(context.Background(), studyOf(trials...), 42)
	require.NoError(t, err)
	assert.Equal(t, 12, analytics.Completed)
	assert.Zero(t, analytics.Infeasible)
	require.NotNil(t, analytics.Best)
	assert.Equal(t, 10, analytics.Best.Number)
	assert.Len(t, analytics.History, 12)

	require.Len(t, analytics.Importances, 2, "constant max_depth is left out")
	assert.Equal(t, forest.ParamCriterion, analytics.Importances[0].Param)
	assert.Greater(t, analytics.Importances[0].Importance, 0.8)
	assert.Equal(t, forest.ParamNEstimators, analytics.Importances[1].Param)
}

func TestParamImportancesWithoutSignal(t *testing.T) {
	tests := []struct {
		name  string
		study *search.Study
	}{
		{"single trial", studyOf(search.Trial{Score: 0.5, Params: search.Assignment{"n_estimators": 10}})},
		{"no varying param", studyOf(
			search.Trial{Score: 0.5, Params: search.Assignment{"n_estimators": 10}},
			search.Trial{Score: 0.6, Params: search.Assignment{"n_estimators": 10}},
		)},
		{"equal scores", studyOf(
			search.Trial{Score: 0.5, Params: search.Assignment{"n_estimators": 10}},
			search.Trial{Score: 0.5, Params: search.Assignment{"n_estimators": 20}},
		)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp, err := ParamImportances(context.Background(), tt.study, 1)
			require.NoError(t, err)
			assert.Empty(t, imp)
		})
	}
}
