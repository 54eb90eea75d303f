// Package tuning searches random forest hyperparameters by sequential
// suggest-then-score trials against a cross-validated F1 objective.
package tuning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"floodcv/domain/core"
	"floodcv/domain/search"
	"floodcv/internal"
	"floodcv/internal/forest"
)

// Progress is reported after every trial.
type Progress struct {
	Trial     int               `json:"trial"`
	NTrials   int               `json:"n_trials"`
	State     search.TrialState `json:"state"`
	Score     float64           `json:"score"`
	BestScore float64           `json:"best_score"`
	HasBest   bool              `json:"has_best"`
	Elapsed   time.Duration     `json:"elapsed"`
	Remaining time.Duration     `json:"remaining"`
	Params    search.Assignment `json:"params"`
}

// ProgressFunc observes a running search. It must not block for long.
type ProgressFunc func(Progress)

// Config configures one search
type Config struct {
	NTrials    int
	Space      search.Space
	BaseParams forest.Params
	Sampler    TPEConfig
	Progress   ProgressFunc
}

// DefaultConfig returns ten trials over an empty space with a fixed model seed
func DefaultConfig() Config {
	return Config{
		NTrials:    10,
		Space:      search.Space{},
		BaseParams: forest.DefaultParams(),
		Sampler:    DefaultTPEConfig(),
	}
}

// Engine runs hyperparameter searches.
type Engine struct {
	logger *internal.Logger
}

// NewEngine creates an engine.
func NewEngine(logger *internal.Logger) *Engine {
	return &Engine{logger: logger.Named("SearchEngine")}
}

// Optimize runs cfg.NTrials trials against objective and returns the study.
// Infeasible trials are recorded and skipped. Cancellation is checked before
// every trial; the trials recorded so far are returned with the error.
func (e *Engine) Optimize(ctx context.Context, objective Objective, cfg Config) (*search.Study, error) {
	if cfg.NTrials <= 0 {
		return nil, fmt.Errorf("%w: got %d", core.ErrInvalidTrialCount, cfg.NTrials)
	}
	if err := forest.ValidateSpace(cfg.Space); err != nil {
		return nil, err
	}

	study := search.NewStudy(objective.Name(), cfg.NTrials)
	sampler := NewTPESampler(cfg.Sampler)
	start := time.Now()
	e.logger.Info("starting %s search with %d trials over %d parameters", objective.Name(), cfg.NTrials, len(cfg.Space))

	for i := 0; i < cfg.NTrials; i++ {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("search cancelled after %d of %d trials", i, cfg.NTrials)
			return study, fmt.Errorf("%w: %w", core.ErrSearchCancelled, err)
		}

		trial, err := e.runTrial(ctx, objective, cfg, sampler, study, i)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				e.logger.Warn("search cancelled during trial %d of %d", i, cfg.NTrials)
				return study, fmt.Errorf("%w: %w", core.ErrSearchCancelled, err)
			}
			return study, fmt.Errorf("trial %d: %w", i, err)
		}
		study.Record(*trial)

		if cfg.Progress != nil {
			elapsed := time.Since(start)
			done := i + 1
			p := Progress{
				Trial:     done,
				NTrials:   cfg.NTrials,
				State:     trial.State,
				Score:     trial.Score,
				Elapsed:   elapsed,
				Remaining: time.Duration(float64(elapsed) / float64(done) * float64(cfg.NTrials-done)),
				Params:    trial.Params,
			}
			if best, ok := study.Best(); ok {
				p.BestScore, p.HasBest = best.Score, true
			}
			cfg.Progress(p)
		}
	}

	best, ok := study.Best()
	if !ok {
		return study, fmt.Errorf("%w: all %d trials were infeasible", core.ErrSearchExhausted, cfg.NTrials)
	}
	e.logger.Info("search finished: best trial %d with F1 %.4f (%d/%d feasible)", best.Number, best.Score, study.CompletedCount(), cfg.NTrials)
	return study, nil
}

// runTrial evaluates one proposal. Infeasible proposals become infeasible
// trials; any other failure is returned as an error.
func (e *Engine) runTrial(ctx context.Context, objective Objective, cfg Config, sampler *TPESampler, study *search.Study, number int) (*search.Trial, error) {
	params := sampler.Sample(cfg.Space, study.Completed())
	trial := &search.Trial{Number: number, Params: params, StartedAt: time.Now().UTC()}

	p, err := forest.ParamsFromAssignment(params, cfg.BaseParams)
	if err == nil {
		err = p.Validate(objective.NumFeatures())
	}
	var score float64
	if err == nil {
		score, err = objective.Evaluate(ctx, p)
	}
	trial.Duration = time.Since(trial.StartedAt)

	switch {
	case err == nil:
		trial.State = search.TrialComplete
		trial.Score = score
		e.logger.Debug("trial %d: F1 %.4f with %v", number, score, params)
	case core.IsInfeasible(err):
		trial.State = search.TrialInfeasible
		trial.Error = err.Error()
		e.logger.Warn("trial %d skipped: %v", number, err)
	default:
		return nil, err
	}
	return trial, nil
}
