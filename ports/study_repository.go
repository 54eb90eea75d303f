package ports

import (
	"context"
	"time"

	"floodcv/domain/core"
	"floodcv/domain/group"
	"floodcv/domain/search"
)

// StudyRepository checkpoints searches and the folds they ran on.
type StudyRepository interface {
	SaveStudy(ctx context.Context, study *search.Study) error
	GetStudy(ctx context.Context, id core.StudyID) (*search.Study, error)
	ListStudies(ctx context.Context, filters StudyFilters) ([]StudySummary, error)
	DeleteStudy(ctx context.Context, id core.StudyID) error

	SaveFoldSummaries(ctx context.Context, id core.StudyID, folds []group.FoldSummary) error
	GetFoldSummaries(ctx context.Context, id core.StudyID) ([]group.FoldSummary, error)
}

// StudyFilters for listing studies
type StudyFilters struct {
	Objective string
	Limit     int
	Offset    int
}

// StudySummary is a study without its trial history.
type StudySummary struct {
	ID        core.StudyID `json:"id" db:"id"`
	Objective string       `json:"objective" db:"objective"`
	NTrials   int          `json:"n_trials" db:"n_trials"`
	Completed int          `json:"completed" db:"completed"`
	BestScore *float64     `json:"best_score,omitempty" db:"best_score"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
