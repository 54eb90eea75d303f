package search

import (
	"fmt"
)

// ParamSpec is the serializable form of a Param used by experiment files and the API.
type ParamSpec struct {
	Type    string   `yaml:"type" json:"type"`
	Lo      float64  `yaml:"lo,omitempty" json:"lo,omitempty"`
	Hi      float64  `yaml:"hi,omitempty" json:"hi,omitempty"`
	Options []string `yaml:"options,omitempty" json:"options,omitempty"`
	Value   any      `yaml:"value,omitempty" json:"value,omitempty"`
}

const (
	SpecFixed       = "fixed"
	SpecInt         = "int"
	SpecFloat       = "float"
	SpecCategorical = "categorical"
)

// ToParam converts the spec into its tagged variant.
func (s ParamSpec) ToParam() (Param, error) {
	switch s.Type {
	case SpecFixed:
		if s.Value == nil {
			return nil, fmt.Errorf("fixed parameter needs a value")
		}
		return FixedValue{Value: s.Value}, nil
	case SpecInt:
		lo, okLo := AsInt(s.Lo)
		hi, okHi := AsInt(s.Hi)
		if !okLo || !okHi {
			return nil, fmt.Errorf("int range bounds must be integers, got [%g, %g]", s.Lo, s.Hi)
		}
		return IntRange{Lo: lo, Hi: hi}, nil
	case SpecFloat:
		return FloatRange{Lo: s.Lo, Hi: s.Hi}, nil
	case SpecCategorical:
		return CategoricalSet{Options: append([]string(nil), s.Options...)}, nil
	default:
		return nil, fmt.Errorf("unknown parameter type %q", s.Type)
	}
}

// SpecOf converts a Param back into its serializable form.
func SpecOf(p Param) ParamSpec {
	switch v := p.(type) {
	case FixedValue:
		return ParamSpec{Type: SpecFixed, Value: v.Value}
	case IntRange:
		return ParamSpec{Type: SpecInt, Lo: float64(v.Lo), Hi: float64(v.Hi)}
	case FloatRange:
		return ParamSpec{Type: SpecFloat, Lo: v.Lo, Hi: v.Hi}
	case CategoricalSet:
		return ParamSpec{Type: SpecCategorical, Options: append([]string(nil), v.Options...)}
	}
	return ParamSpec{}
}

// SpaceFromSpecs builds and validates a Space.
func SpaceFromSpecs(specs map[string]ParamSpec) (Space, error) {
	space := make(Space, len(specs))
	for name, spec := range specs {
		p, err := spec.ToParam()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		space[name] = p
	}
	if err := space.Validate(); err != nil {
		return nil, err
	}
	return space, nil
}

// Specs converts a Space into serializable specs.
func (s Space) Specs() map[string]ParamSpec {
	out := make(map[string]ParamSpec, len(s))
	for name, p := range s {
		out[name] = SpecOf(p)
	}
	return out
}
