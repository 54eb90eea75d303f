// Package sqlstore checkpoints studies and fold summaries in a SQL database
// through sqlx. Both sqlite3 and postgres are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"floodcv/domain/core"
	"floodcv/domain/group"
	"floodcv/domain/search"
	"floodcv/internal"
	"floodcv/internal/errors"
	"floodcv/internal/migration"
	"floodcv/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements ports.StudyRepository.
type Store struct {
	db     *sqlx.DB
	logger *internal.Logger
}

var _ ports.StudyRepository = (*Store)(nil)

// Open connects with driver ("sqlite3" or "postgres") and applies migrations.
func Open(ctx context.Context, driver, url string, logger *internal.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, driver, url)
	if err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to connect to %s", driver), err)
	}
	if driver == "sqlite3" {
		// sqlite allows a single writer; in-memory databases exist per connection
		db.SetMaxOpenConns(1)
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.DatabaseError("failed to migrate study store", err)
	}
	return New(db, logger), nil
}

// New wraps an open, migrated database.
func New(db *sqlx.DB, logger *internal.Logger) *Store {
	return &Store{db: db, logger: logger.Named("StudyStore")}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type studyRow struct {
	ID         string          `db:"id"`
	Objective  string          `db:"objective"`
	NTrials    int             `db:"n_trials"`
	BestParams sql.NullString  `db:"best_params"`
	BestScore  sql.NullFloat64 `db:"best_score"`
	CreatedAt  time.Time       `db:"created_at"`
}

type trialRow struct {
	StudyID    string    `db:"study_id"`
	Number     int       `db:"number"`
	Params     string    `db:"params"`
	Score      float64   `db:"score"`
	State      string    `db:"state"`
	Error      string    `db:"error_message"`
	StartedAt  time.Time `db:"started_at"`
	DurationMS int64     `db:"duration_ms"`
}

type foldRow struct {
	StudyID string `db:"study_id"`
	group.FoldSummary
}

// SaveStudy inserts or replaces a study and its full trial history.
func (s *Store) SaveStudy(ctx context.Context, study *search.Study) error {
	row := studyRow{
		ID:        study.ID.String(),
		Objective: study.Objective,
		NTrials:   study.NTrials,
		CreatedAt: study.CreatedAt.UTC(),
	}
	if best, ok := study.Best(); ok {
		params, err := json.Marshal(best.Params)
		if err != nil {
			return fmt.Errorf("encode best params: %w", err)
		}
		row.BestParams = sql.NullString{String: string(params), Valid: true}
		row.BestScore = sql.NullFloat64{Float64: best.Score, Valid: true}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO studies (id, objective, n_trials, best_params, best_score, created_at)
		VALUES (:id, :objective, :n_trials, :best_params, :best_score, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			objective = excluded.objective,
			n_trials = excluded.n_trials,
			best_params = excluded.best_params,
			best_score = excluded.best_score
	`, row)
	if err != nil {
		return errors.DatabaseError("failed to save study", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM trials WHERE study_id = ?`), row.ID); err != nil {
		return errors.DatabaseError("failed to clear trials", err)
	}
	for _, t := range study.Trials {
		params, err := json.Marshal(t.Params)
		if err != nil {
			return fmt.Errorf("encode trial %d params: %w", t.Number, err)
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO trials (study_id, number, params, score, state, error_message, started_at, duration_ms)
			VALUES (:study_id, :number, :params, :score, :state, :error_message, :started_at, :duration_ms)
		`, trialRow{
			StudyID:    row.ID,
			Number:     t.Number,
			Params:     string(params),
			Score:      t.Score,
			State:      string(t.State),
			Error:      t.Error,
			StartedAt:  t.StartedAt.UTC(),
			DurationMS: t.Duration.Milliseconds(),
		})
		if err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to save trial %d", t.Number), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit study", err)
	}
	s.logger.Debug("saved study %s with %d trials", row.ID, len(study.Trials))
	return nil
}

// GetStudy loads a study with its trials ordered by number.
func (s *Store) GetStudy(ctx context.Context, id core.StudyID) (*search.Study, error) {
	var row studyRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT id, objective, n_trials, best_params, best_score, created_at
		FROM studies WHERE id = ?
	`), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("study", id.String())
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to load study", err)
	}

	var trials []trialRow
	err = s.db.SelectContext(ctx, &trials, s.db.Rebind(`
		SELECT study_id, number, params, score, state, error_message, started_at, duration_ms
		FROM trials WHERE study_id = ? ORDER BY number
	`), id.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to load trials", err)
	}

	study := &search.Study{
		ID:        core.StudyID(row.ID),
		Objective: row.Objective,
		NTrials:   row.NTrials,
		Trials:    make([]search.Trial, 0, len(trials)),
		CreatedAt: row.CreatedAt.UTC(),
	}
	for _, t := range trials {
		var params search.Assignment
		if err := json.Unmarshal([]byte(t.Params), &params); err != nil {
			return nil, fmt.Errorf("decode trial %d params: %w", t.Number, err)
		}
		study.Trials = append(study.Trials, search.Trial{
			Number:    t.Number,
			Params:    params,
			Score:     t.Score,
			State:     search.TrialState(t.State),
			Error:     t.Error,
			StartedAt: t.StartedAt.UTC(),
			Duration:  time.Duration(t.DurationMS) * time.Millisecond,
		})
	}
	return study, nil
}

// ListStudies returns study summaries, newest first.
func (s *Store) ListStudies(ctx context.Context, filters ports.StudyFilters) ([]ports.StudySummary, error) {
	query := `
		SELECT s.id, s.objective, s.n_trials, s.best_score, s.created_at,
			(SELECT COUNT(*) FROM trials t WHERE t.study_id = s.id AND t.state = 'complete') AS completed
		FROM studies s`
	var args []interface{}
	if filters.Objective != "" {
		query += ` WHERE s.objective = ?`
		args = append(args, filters.Objective)
	}
	query += ` ORDER BY s.created_at DESC, s.id DESC`
	if filters.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filters.Limit, filters.Offset)
	}

	var out []ports.StudySummary
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, errors.DatabaseError("failed to list studies", err)
	}
	for i := range out {
		out[i].CreatedAt = out[i].CreatedAt.UTC()
	}
	return out, nil
}

// DeleteStudy removes a study, its trials and its fold summaries.
func (s *Store) DeleteStudy(ctx context.Context, id core.StudyID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"fold_summaries", "trials"} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE study_id = ?`), id.String()); err != nil {
			return errors.DatabaseError("failed to delete "+table, err)
		}
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM studies WHERE id = ?`), id.String())
	if err != nil {
		return errors.DatabaseError("failed to delete study", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.NewNotFoundError("study", id.String())
	}
	return errors.Wrap(tx.Commit(), "failed to commit delete")
}

// SaveFoldSummaries replaces the fold summaries of a study.
func (s *Store) SaveFoldSummaries(ctx context.Context, id core.StudyID, folds []group.FoldSummary) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM fold_summaries WHERE study_id = ?`), id.String()); err != nil {
		return errors.DatabaseError("failed to clear fold summaries", err)
	}
	for _, f := range folds {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO fold_summaries (study_id, fold_index, test_group, train_rows, test_rows, train_positives, test_positives)
			VALUES (:study_id, :fold_index, :test_group, :train_rows, :test_rows, :train_positives, :test_positives)
		`, foldRow{StudyID: id.String(), FoldSummary: f})
		if err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to save fold %d", f.Index), err)
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit fold summaries")
}

// GetFoldSummaries returns the fold summaries of a study in fold order.
func (s *Store) GetFoldSummaries(ctx context.Context, id core.StudyID) ([]group.FoldSummary, error) {
	var out []group.FoldSummary
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT fold_index, test_group, train_rows, test_rows, train_positives, test_positives
		FROM fold_summaries WHERE study_id = ? ORDER BY fold_index
	`), id.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to load fold summaries", err)
	}
	return out, nil
}
