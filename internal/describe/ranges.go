package describe

import (
	"math"

	"floodcv/domain/group"

	"gonum.org/v1/gonum/floats"
)

// Range is the observed interval of one feature.
type Range struct {
	Feature string  `json:"feature"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// GroupRanges lists one group's ranges in feature order.
type GroupRanges struct {
	Group  string  `json:"group"`
	Ranges []Range `json:"ranges"`
}

// Ranges holds per-group ranges and their envelope over all groups.
type Ranges struct {
	Features []string      `json:"features"`
	Groups   []GroupRanges `json:"groups"`
	Overall  []Range       `json:"overall"`
}

// ValueRanges returns the min and max of every named feature per group.
func ValueRanges(groups []*group.ObservationGroup, features []string) (*Ranges, error) {
	out := &Ranges{Features: append([]string(nil), features...), Overall: make([]Range, len(features))}
	for i, name := range features {
		out.Overall[i] = Range{Feature: name, Min: math.Inf(1), Max: math.Inf(-1)}
	}
	for _, g := range groups {
		cols, err := columns(g, features)
		if err != nil {
			return nil, err
		}
		gr := GroupRanges{Group: g.Name(), Ranges: make([]Range, len(features))}
		for i, col := range cols {
			r := Range{Feature: features[i], Min: floats.Min(col), Max: floats.Max(col)}
			gr.Ranges[i] = r
			out.Overall[i].Min = math.Min(out.Overall[i].Min, r.Min)
			out.Overall[i].Max = math.Max(out.Overall[i].Max, r.Max)
		}
		out.Groups = append(out.Groups, gr)
	}
	if len(out.Groups) == 0 {
		out.Overall = nil
	}
	return out, nil
}
