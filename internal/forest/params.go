package forest

import (
	"fmt"
	"math"

	"floodcv/domain/core"
)

// Criterion is the split quality measure.
type Criterion string

const (
	Gini    Criterion = "gini"
	Entropy Criterion = "entropy"
	LogLoss Criterion = "log_loss"
)

// Params configures a random forest. Zero values of MaxDepth, MaxFeatures and
// MaxSamples mean unlimited depth, sqrt(features) and a full-size bootstrap.
type Params struct {
	NEstimators     int       `json:"n_estimators"`
	Criterion       Criterion `json:"criterion"`
	MaxDepth        int       `json:"max_depth"`
	MinSamplesSplit int       `json:"min_samples_split"`
	MinSamplesLeaf  int       `json:"min_samples_leaf"`
	MaxFeatures     int       `json:"max_features"`
	MaxSamples      float64   `json:"max_samples"`
	Seed            int64     `json:"seed"`

	// Workers bounds concurrent tree construction. It does not change the model.
	Workers int `json:"-"`
}

// DefaultParams returns the library defaults used for the untuned baseline model.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		Criterion:       Gini,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		MaxSamples:      0,
		Seed:            42,
		Workers:         1,
	}
}

// Validate reports parameter combinations that cannot be trained on nFeatures
// columns. All failures wrap core.ErrTrialInfeasible.
func (p Params) Validate(nFeatures int) error {
	switch {
	case p.NEstimators < 1:
		return core.NewInfeasibleError(ParamNEstimators, fmt.Sprintf("must be at least 1, got %d", p.NEstimators))
	case p.MaxDepth < 0:
		return core.NewInfeasibleError(ParamMaxDepth, fmt.Sprintf("must not be negative, got %d", p.MaxDepth))
	case p.MinSamplesSplit < 2:
		return core.NewInfeasibleError(ParamMinSamplesSplit, fmt.Sprintf("must be at least 2, got %d", p.MinSamplesSplit))
	case p.MinSamplesLeaf < 1:
		return core.NewInfeasibleError(ParamMinSamplesLeaf, fmt.Sprintf("must be at least 1, got %d", p.MinSamplesLeaf))
	case p.MaxFeatures < 0 || p.MaxFeatures > nFeatures:
		return core.NewInfeasibleError(ParamMaxFeatures, fmt.Sprintf("%d exceeds the %d available features", p.MaxFeatures, nFeatures))
	case p.MaxSamples < 0 || p.MaxSamples > 1 || math.IsNaN(p.MaxSamples):
		return core.NewInfeasibleError(ParamMaxSamples, fmt.Sprintf("must be in (0, 1], got %g", p.MaxSamples))
	}
	switch p.Criterion {
	case Gini, Entropy, LogLoss:
	default:
		return core.NewInfeasibleError(ParamCriterion, fmt.Sprintf("unknown criterion %q", p.Criterion))
	}
	return nil
}

func (p Params) featuresPerSplit(nFeatures int) int {
	if p.MaxFeatures > 0 {
		return p.MaxFeatures
	}
	m := int(math.Sqrt(float64(nFeatures)))
	if m < 1 {
		m = 1
	}
	return m
}

func (p Params) bootstrapSize(nRows int) int {
	if p.MaxSamples <= 0 {
		return nRows
	}
	m := int(math.Round(float64(nRows) * p.MaxSamples))
	if m < 1 {
		m = 1
	}
	return m
}

func (p Params) workers() int {
	if p.Workers < 1 {
		return 1
	}
	return p.Workers
}
