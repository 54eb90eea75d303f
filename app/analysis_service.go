package app

import (
	"context"
	"fmt"

	"floodcv/domain/core"
	"floodcv/domain/group"
	"floodcv/domain/search"
	"floodcv/internal"
	"floodcv/internal/cache"
	"floodcv/internal/config"
	"floodcv/internal/errors"
	"floodcv/internal/evaluation"
	"floodcv/internal/folds"
	"floodcv/internal/forest"
	"floodcv/internal/importance"
	"floodcv/internal/metrics"
	"floodcv/internal/sampling"
	"floodcv/internal/tuning"
	"floodcv/ports"
)

// AnalysisService runs the stages of an analysis session: sampling, feature
// loading, fold construction, search, evaluation and importance.
type AnalysisService struct {
	config   config.AnalysisConfig
	geometry ports.GeometryProvider
	features ports.FeatureStackProvider
	studies  ports.StudyRepository
	sampler  *sampling.Sampler
	engine   *tuning.Engine
	tables   *cache.Cache[*group.FeatureTable]
	logger   *internal.Logger
}

// NewAnalysisService creates the service. Any provider may be nil when the
// caller supplies groups with samples and tables attached; a nil study
// repository disables checkpointing.
func NewAnalysisService(cfg config.AnalysisConfig, geometry ports.GeometryProvider, features ports.FeatureStackProvider, studies ports.StudyRepository, logger *internal.Logger) *AnalysisService {
	samplerCfg := sampling.DefaultConfig()
	samplerCfg.Seed = cfg.Seed
	samplerCfg.Workers = cfg.Workers
	return &AnalysisService{
		config:   cfg,
		geometry: geometry,
		features: features,
		studies:  studies,
		sampler:  sampling.NewSampler(samplerCfg, logger),
		engine:   tuning.NewEngine(logger),
		tables:   cache.New[*group.FeatureTable](),
		logger:   logger.Named("AnalysisService"),
	}
}

// Config returns the analysis defaults.
func (a *AnalysisService) Config() config.AnalysisConfig { return a.config }

// Studies returns the study repository, nil when checkpointing is off.
func (a *AnalysisService) Studies() ports.StudyRepository { return a.studies }

// CacheStats reports feature table cache usage.
func (a *AnalysisService) CacheStats() cache.Stats { return a.tables.Stats() }

// Load reads groups from the geometry provider and prepares a session.
func (a *AnalysisService) Load(ctx context.Context) (*Session, error) {
	if a.geometry == nil {
		return nil, errors.ConfigInvalid("no geometry provider configured")
	}
	groups, err := a.geometry.LoadGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	return a.Prepare(ctx, groups)
}

// Sample draws points for every group that has no sample yet.
func (a *AnalysisService) Sample(ctx context.Context, groups []*group.ObservationGroup) error {
	mode, err := sampling.ParseAllocation(a.config.Allocation)
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	var pending []*group.ObservationGroup
	for _, g := range groups {
		if g.Sample == nil {
			pending = append(pending, g)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	return a.sampler.SampleGroups(ctx, pending, a.config.SamplesPerGroup, mode)
}

// Prepare samples groups lacking a sample, loads missing feature tables
// through the cache and builds the outer folds.
func (a *AnalysisService) Prepare(ctx context.Context, groups []*group.ObservationGroup) (*Session, error) {
	if err := a.Sample(ctx, groups); err != nil {
		return nil, err
	}

	fingerprints := make([]core.GroupFingerprint, len(groups))
	for i, g := range groups {
		fingerprints[i] = g.Fingerprint()
		if g.Table != nil {
			continue
		}
		table, err := a.table(ctx, g, a.config.Features)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", g.Name(), err)
		}
		g.Table = table
	}

	outer, err := folds.BuildLOGO(groups)
	if err != nil {
		return nil, err
	}
	features := append([]string(nil), groups[0].Table.Features...)
	session := &Session{
		Key:      core.ComputeSessionKey(fingerprints, features...),
		Groups:   groups,
		Features: features,
		Folds:    outer,
	}
	a.logger.Info("session %s: %d groups, %d features, %d folds", session.Key.Short(), len(groups), len(features), len(outer))
	return session, nil
}

func (a *AnalysisService) table(ctx context.Context, g *group.ObservationGroup, features []string) (*group.FeatureTable, error) {
	if a.features == nil {
		return nil, errors.ConfigInvalid("no feature stack provider configured")
	}
	key := core.ComputeTableKey(g.Fingerprint(), features)
	return a.tables.GetOrCompute(ctx, key, func(ctx context.Context) (*group.FeatureTable, error) {
		return a.features.FeatureTable(ctx, g, features)
	})
}

// BaseParams returns the library defaults with the given model seed.
func (a *AnalysisService) BaseParams(seed int64) forest.Params {
	p := forest.DefaultParams()
	p.Seed = seed
	p.Workers = a.config.Workers
	return p
}

// RunStudy searches hyperparameters on the experiment's feature subset. The
// study is checkpointed even when the search stops early, so recorded trials
// survive cancellation.
func (a *AnalysisService) RunStudy(ctx context.Context, session *Session, exp *config.Experiment, progress tuning.ProgressFunc) (*search.Study, error) {
	outer, err := session.Select(exp.Features)
	if err != nil {
		return nil, err
	}
	space, err := exp.SearchSpace()
	if err != nil {
		return nil, err
	}

	var objective tuning.Objective
	switch exp.Objective {
	case config.ObjectiveOuterCV:
		objective, err = tuning.NewOuterCVObjective(outer, a.config.Workers)
	default:
		objective, err = tuning.NewInnerCVObjective(outer, exp.KFolds, a.config.Workers)
	}
	if err != nil {
		return nil, err
	}

	cfg := tuning.DefaultConfig()
	cfg.NTrials = exp.NTrials
	cfg.Space = space
	cfg.BaseParams = a.BaseParams(exp.Seed)
	cfg.Sampler.Seed = exp.Seed
	cfg.Progress = progress

	study, err := a.engine.Optimize(ctx, objective, cfg)
	if study != nil && a.studies != nil {
		if saveErr := a.checkpoint(context.WithoutCancel(ctx), study, session); saveErr != nil {
			a.logger.Error("failed to checkpoint study %s: %v", study.ID, saveErr)
		}
	}
	return study, err
}

func (a *AnalysisService) checkpoint(ctx context.Context, study *search.Study, session *Session) error {
	if err := a.studies.SaveStudy(ctx, study); err != nil {
		return err
	}
	return a.studies.SaveFoldSummaries(ctx, study.ID, session.FoldSummaries())
}

// BestParams resolves the best trial of a study into forest parameters.
func (a *AnalysisService) BestParams(study *search.Study, seed int64) (forest.Params, error) {
	best := study.BestParams()
	if best == nil {
		return forest.Params{}, fmt.Errorf("%w: study %s has no complete trial", core.ErrSearchExhausted, study.ID)
	}
	return forest.ParamsFromAssignment(best, a.BaseParams(seed))
}

// Evaluate compares best against the defaults on every outer fold.
func (a *AnalysisService) Evaluate(ctx context.Context, session *Session, features []string, best forest.Params) (*evaluation.Result, error) {
	outer, err := session.Select(features)
	if err != nil {
		return nil, err
	}
	return evaluation.NewEvaluator(a.config.Workers, a.logger).Evaluate(ctx, outer, best)
}

// ImportanceConfig builds the importance configuration of an experiment.
func (a *AnalysisService) ImportanceConfig(exp *config.Experiment) (importance.Config, error) {
	cfg := importance.DefaultConfig()
	cfg.Methods = cfg.Methods[:0]
	for _, name := range exp.Importance.Methods {
		m, err := importance.ParseMethod(name)
		if err != nil {
			return cfg, errors.WithCode(errors.CodeInvalidInput, err)
		}
		cfg.Methods = append(cfg.Methods, m)
	}
	cfg.HighCardRandom = exp.Importance.HighCardRandom
	cfg.LowCardRandom = exp.Importance.LowCardRandom
	cfg.RandomColumnSeed = exp.Seed
	cfg.PermutationRepeats = exp.Importance.Repeats
	cfg.PermutationSeed = exp.Importance.PermutationSeed
	cfg.Params.Seed = exp.Seed
	cfg.Params.Workers = a.config.Workers
	cfg.Workers = a.config.Workers
	return cfg, cfg.Validate()
}

// Importance computes feature importances on every outer fold.
func (a *AnalysisService) Importance(ctx context.Context, session *Session, features []string, cfg importance.Config) (*importance.Result, error) {
	outer, err := session.Select(features)
	if err != nil {
		return nil, err
	}
	engine, err := importance.NewEngine(cfg, a.logger)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return engine.Compute(ctx, outer)
}

// Report is the outcome of a full experiment.
type Report struct {
	Experiment string                                     `json:"experiment"`
	SessionKey core.Hash                                  `json:"session_key"`
	Features   []string                                   `json:"features"`
	Folds      []group.FoldSummary                        `json:"folds"`
	Study      *search.Study                              `json:"study"`
	Analytics  *tuning.Analytics                          `json:"analytics"`
	BestParams forest.Params                              `json:"best_params"`
	Evaluation *evaluation.Result                         `json:"evaluation"`
	Metrics    []metrics.Comparison                       `json:"metrics"`
	Confusion  ConfusionReport                            `json:"confusion"`
	Importance *importance.Result                         `json:"importance,omitempty"`
	Rankings   map[importance.Method][]importance.Ranking `json:"rankings,omitempty"`
}

// ConfusionReport holds the confusion matrices over all outer test splits.
type ConfusionReport struct {
	Best    metrics.ConfusionMatrix `json:"best"`
	Default metrics.ConfusionMatrix `json:"default"`
}

// Run executes an experiment end to end: search, evaluation of the best
// parameters and, when methods are configured, importance.
func (a *AnalysisService) Run(ctx context.Context, session *Session, exp *config.Experiment, progress tuning.ProgressFunc) (*Report, error) {
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	study, err := a.RunStudy(ctx, session, exp, progress)
	if err != nil {
		return nil, err
	}
	best, err := a.BestParams(study, exp.Seed)
	if err != nil {
		return nil, err
	}
	analytics, err := tuning.Analyze(ctx, study, exp.Seed)
	if err != nil {
		return nil, fmt.Errorf("study analytics: %w", err)
	}

	eval, err := a.Evaluate(ctx, session, exp.Features, best)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	summary, err := eval.Summary()
	if err != nil {
		return nil, err
	}
	cmBest, cmDefault, err := eval.Confusion()
	if err != nil {
		return nil, err
	}

	report := &Report{
		Experiment: exp.Name,
		SessionKey: session.Key,
		Features:   exp.Features,
		Folds:      session.FoldSummaries(),
		Study:      study,
		Analytics:  analytics,
		BestParams: best,
		Evaluation: eval,
		Metrics:    summary,
		Confusion:  ConfusionReport{Best: cmBest, Default: cmDefault},
	}

	if len(exp.Importance.Methods) > 0 {
		cfg, err := a.ImportanceConfig(exp)
		if err != nil {
			return nil, err
		}
		imp, err := a.Importance(ctx, session, exp.Features, cfg)
		if err != nil {
			return nil, fmt.Errorf("importance: %w", err)
		}
		report.Importance = imp
		report.Rankings = make(map[importance.Method][]importance.Ranking, len(cfg.Methods))
		for _, m := range cfg.Methods {
			report.Rankings[m] = imp.Mean(m)
		}
	}
	a.logger.Info("experiment %s finished: best F1 %.4f", exp.Name, metrics.Mean(eval.Best.F1))
	return report, nil
}
