package sampling

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Region is Include minus Exclude. Area assumes Exclude lies inside Include.
type Region struct {
	Include orb.MultiPolygon
	Exclude orb.MultiPolygon

	area  float64
	bound orb.Bound
}

// NewRegion computes the area and bounding box of include minus exclude once.
func NewRegion(include, exclude orb.MultiPolygon) *Region {
	area := Area(include)
	if len(exclude) > 0 {
		area -= Area(exclude)
	}
	if area < 0 {
		area = 0
	}
	r := &Region{Include: include, Exclude: exclude, area: area}
	if len(include) > 0 {
		r.bound = include.Bound()
	}
	return r
}

// Area returns the planar area of the region.
func (r *Region) Area() float64 { return r.area }

// Bound returns the bounding box of Include.
func (r *Region) Bound() orb.Bound { return r.bound }

// Contains reports whether p lies in Include and outside Exclude.
func (r *Region) Contains(p orb.Point) bool {
	if !planar.MultiPolygonContains(r.Include, p) {
		return false
	}
	return len(r.Exclude) == 0 || !planar.MultiPolygonContains(r.Exclude, p)
}

// Area returns the unsigned planar area of a multipolygon.
func Area(mp orb.MultiPolygon) float64 {
	if len(mp) == 0 {
		return 0
	}
	return math.Abs(planar.Area(mp))
}
