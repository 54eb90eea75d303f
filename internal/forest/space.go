package forest

import (
	"fmt"
	"math"

	"floodcv/domain/core"
	"floodcv/domain/search"
)

// Tunable parameter names.
const (
	ParamNEstimators     = "n_estimators"
	ParamCriterion       = "criterion"
	ParamMaxDepth        = "max_depth"
	ParamMinSamplesSplit = "min_samples_split"
	ParamMinSamplesLeaf  = "min_samples_leaf"
	ParamMaxFeatures     = "max_features"
	ParamMaxSamples      = "max_samples"
)

type intDomain struct{ lo, hi int }

// hi < 0 means unbounded above; max_features is bounded per trial instead.
var intDomains = map[string]intDomain{
	ParamNEstimators:     {10, 10000},
	ParamMaxDepth:        {1, 1000},
	ParamMinSamplesSplit: {2, 32},
	ParamMinSamplesLeaf:  {1, 50},
	ParamMaxFeatures:     {1, -1},
}

var (
	maxSamplesLo = 0.1
	maxSamplesHi = 1.0
	criteria     = map[string]bool{string(Gini): true, string(Entropy): true, string(LogLoss): true}
)

// ValidateSpace rejects unknown parameters, mismatched kinds and ranges
// outside the allowed domains. Errors wrap core.ErrInvalidSpace.
func ValidateSpace(space search.Space) error {
	if err := space.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidSpace, err)
	}
	for _, name := range space.Names() {
		if err := validateParam(name, space[name]); err != nil {
			return err
		}
	}
	return nil
}

func validateParam(name string, p search.Param) error {
	if d, ok := intDomains[name]; ok {
		check := func(v int) error {
			if v < d.lo || (d.hi >= 0 && v > d.hi) {
				if d.hi < 0 {
					return core.NewInvalidSpaceError(name, fmt.Sprintf("value %d below %d", v, d.lo))
				}
				return core.NewInvalidSpaceError(name, fmt.Sprintf("value %d outside [%d, %d]", v, d.lo, d.hi))
			}
			return nil
		}
		switch v := p.(type) {
		case search.IntRange:
			if err := check(v.Lo); err != nil {
				return err
			}
			return check(v.Hi)
		case search.FixedValue:
			n, ok := search.AsInt(v.Value)
			if !ok {
				return core.NewInvalidSpaceError(name, fmt.Sprintf("fixed value %v is not an integer", v.Value))
			}
			return check(n)
		default:
			return core.NewInvalidSpaceError(name, "must be an integer range or fixed integer, got "+p.String())
		}
	}

	switch name {
	case ParamMaxSamples:
		check := func(v float64) error {
			if math.IsNaN(v) || v < maxSamplesLo || v > maxSamplesHi {
				return core.NewInvalidSpaceError(name, fmt.Sprintf("value %g outside [%g, %g]", v, maxSamplesLo, maxSamplesHi))
			}
			return nil
		}
		switch v := p.(type) {
		case search.FloatRange:
			if err := check(v.Lo); err != nil {
				return err
			}
			return check(v.Hi)
		case search.FixedValue:
			f, ok := search.AsFloat(v.Value)
			if !ok {
				return core.NewInvalidSpaceError(name, fmt.Sprintf("fixed value %v is not a number", v.Value))
			}
			return check(f)
		default:
			return core.NewInvalidSpaceError(name, "must be a float range or fixed number, got "+p.String())
		}

	case ParamCriterion:
		var options []string
		switch v := p.(type) {
		case search.CategoricalSet:
			options = v.Options
		case search.FixedValue:
			s, ok := v.Value.(string)
			if !ok {
				return core.NewInvalidSpaceError(name, fmt.Sprintf("fixed value %v is not a string", v.Value))
			}
			options = []string{s}
		default:
			return core.NewInvalidSpaceError(name, "must be a categorical set, got "+p.String())
		}
		for _, o := range options {
			if !criteria[o] {
				return core.NewInvalidSpaceError(name, fmt.Sprintf("unknown criterion %q", o))
			}
		}
		return nil
	}

	return core.NewInvalidSpaceError(name, "is not a tunable parameter")
}

// DefaultSpace is the search space offered when an experiment declares none.
func DefaultSpace(nFeatures int) search.Space {
	return search.Space{
		ParamNEstimators:     search.IntRange{Lo: 100, Hi: 1000},
		ParamCriterion:       search.CategoricalSet{Options: []string{string(Gini), string(Entropy), string(LogLoss)}},
		ParamMaxDepth:        search.IntRange{Lo: 10, Hi: 100},
		ParamMinSamplesSplit: search.IntRange{Lo: 2, Hi: 20},
		ParamMinSamplesLeaf:  search.IntRange{Lo: 1, Hi: 10},
		ParamMaxFeatures:     search.IntRange{Lo: 1, Hi: nFeatures},
		ParamMaxSamples:      search.FloatRange{Lo: 0.5, Hi: 1.0},
	}
}

// ParamsFromAssignment overlays an assignment on base. Parameters missing
// from the assignment keep their base value.
func ParamsFromAssignment(a search.Assignment, base Params) (Params, error) {
	p := base
	for name, v := range a {
		switch name {
		case ParamCriterion:
			s, ok := v.(string)
			if !ok {
				return p, core.NewInfeasibleError(name, fmt.Sprintf("value %v is not a string", v))
			}
			p.Criterion = Criterion(s)
		case ParamMaxSamples:
			f, ok := search.AsFloat(v)
			if !ok {
				return p, core.NewInfeasibleError(name, fmt.Sprintf("value %v is not a number", v))
			}
			p.MaxSamples = f
		default:
			n, ok := search.AsInt(v)
			if !ok {
				return p, core.NewInfeasibleError(name, fmt.Sprintf("value %v is not an integer", v))
			}
			switch name {
			case ParamNEstimators:
				p.NEstimators = n
			case ParamMaxDepth:
				p.MaxDepth = n
			case ParamMinSamplesSplit:
				p.MinSamplesSplit = n
			case ParamMinSamplesLeaf:
				p.MinSamplesLeaf = n
			case ParamMaxFeatures:
				p.MaxFeatures = n
			default:
				return p, core.NewInvalidSpaceError(name, "is not a tunable parameter")
			}
		}
	}
	return p, nil
}

// Assignment describes p using the tunable parameter names.
func (p Params) Assignment() search.Assignment {
	a := search.Assignment{
		ParamNEstimators:     p.NEstimators,
		ParamCriterion:       string(p.Criterion),
		ParamMinSamplesSplit: p.MinSamplesSplit,
		ParamMinSamplesLeaf:  p.MinSamplesLeaf,
	}
	if p.MaxDepth > 0 {
		a[ParamMaxDepth] = p.MaxDepth
	}
	if p.MaxFeatures > 0 {
		a[ParamMaxFeatures] = p.MaxFeatures
	}
	if p.MaxSamples > 0 {
		a[ParamMaxSamples] = p.MaxSamples
	}
	return a
}
