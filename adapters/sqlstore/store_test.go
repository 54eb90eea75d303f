package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"floodcv/domain/core"
	"floodcv/domain/group"
	"floodcv/domain/search"
	"floodcv/internal"
	"floodcv/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), "sqlite3", ":memory:", internal.NewLogger(internal.LogLevelError))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleStudy(objective string, created time.Time) *search.Study {
	study := search.NewStudy(objective, 3)
	study.CreatedAt = created
	study.Record(search.Trial{
		Number: 0, Params: search.Assignment{"n_estimators": 60, "criterion": "gini"},
		Score: 0.81, State: search.TrialComplete, StartedAt: created, Duration: 1500 * time.Millisecond,
	})
	study.Record(search.Trial{
		Number: 1, Params: search.Assignment{"n_estimators": 90, "max_features": 12},
		State: search.TrialInfeasible, Error: "max_features exceeds 8 features", StartedAt: created,
	})
	study.Record(search.Trial{
		Number: 2, Params: search.Assignment{"n_estimators": 75, "criterion": "entropy"},
		Score: 0.86, State: search.TrialComplete, StartedAt: created, Duration: 2 * time.Second,
	})
	return study
}

func TestStudyRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	study := sampleStudy("inner_cv", created)

	require.NoError(t, store.SaveStudy(ctx, study))
	loaded, err := store.GetStudy(ctx, study.ID)
	require.NoError(t, err)

	assert.Equal(t, study.ID, loaded.ID)
	assert.Equal(t, "inner_cv", loaded.Objective)
	assert.Equal(t, 3, loaded.NTrials)
	assert.True(t, created.Equal(loaded.CreatedAt))
	require.Len(t, loaded.Trials, 3)

	assert.Equal(t, search.TrialInfeasible, loaded.Trials[1].State)
	assert.Equal(t, "max_features exceeds 8 features", loaded.Trials[1].Error)
	assert.Equal(t, 1500*time.Millisecond, loaded.Trials[0].Duration)

	best, ok := loaded.Best()
	require.True(t, ok)
	assert.Equal(t, 2, best.Number)
	n, ok := best.Params.Int("n_estimators")
	require.True(t, ok)
	assert.Equal(t, 75, n)
	c, _ := best.Params.String("criterion")
	assert.Equal(t, "entropy", c)
}

func TestSaveStudyReplacesTrials(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	study := sampleStudy("inner_cv", time.Now().UTC())
	require.NoError(t, store.SaveStudy(ctx, study))

	study.Trials = study.Trials[:1]
	require.NoError(t, store.SaveStudy(ctx, study))

	loaded, err := store.GetStudy(ctx, study.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Trials, 1)

	summaries, err := store.ListStudies(ctx, ports.StudyFilters{})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.NotNil(t, summaries[0].BestScore)
	assert.InDelta(t, 0.81, *summaries[0].BestScore, 1e-12)
	assert.Equal(t, 1, summaries[0].Completed)
}

func TestListStudies(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, objective := range []string{"inner_cv", "outer_cv", "inner_cv"} {
		require.NoError(t, store.SaveStudy(ctx, sampleStudy(objective, base.Add(time.Duration(i)*time.Hour))))
	}
	empty := search.NewStudy("outer_cv", 5)
	empty.CreatedAt = base.Add(-time.Hour)
	require.NoError(t, store.SaveStudy(ctx, empty))

	all, err := store.ListStudies(ctx, ports.StudyFilters{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))
	assert.Nil(t, all[3].BestScore)
	assert.Equal(t, 2, all[0].Completed)

	inner, err := store.ListStudies(ctx, ports.StudyFilters{Objective: "inner_cv"})
	require.NoError(t, err)
	assert.Len(t, inner, 2)

	page, err := store.ListStudies(ctx, ports.StudyFilters{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[1].ID, page[0].ID)
}

func TestFoldSummariesAndDelete(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	study := sampleStudy("outer_cv", time.Now().UTC())
	require.NoError(t, store.SaveStudy(ctx, study))

	folds := []group.FoldSummary{
		{Index: 0, TestGroup: "2022_09_01_event0", TrainRows: 1500, TestRows: 500, TrainPositives: 750, TestPositives: 250},
		{Index: 1, TestGroup: "2022_09_08_event1", TrainRows: 1500, TestRows: 500, TrainPositives: 750, TestPositives: 250},
	}
	require.NoError(t, store.SaveFoldSummaries(ctx, study.ID, folds))
	loaded, err := store.GetFoldSummaries(ctx, study.ID)
	require.NoError(t, err)
	assert.Equal(t, folds, loaded)

	require.NoError(t, store.DeleteStudy(ctx, study.ID))
	_, err = store.GetStudy(ctx, study.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	loaded, err = store.GetFoldSummaries(ctx, study.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	err = store.DeleteStudy(ctx, study.ID)
	assert.True(t, core.IsNotFoundError(err))
}
