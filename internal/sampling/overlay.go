package sampling

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/planar"
	"github.com/peterstace/simplefeatures/geom"
)

// Dissolve unions the polygons of mp into non-overlapping polygons, so shared
// area is counted once. Polygons without area are dropped.
func Dissolve(mp orb.MultiPolygon) (orb.MultiPolygon, error) {
	g, ok, err := union(mp)
	if err != nil || !ok {
		return nil, err
	}
	return fromGeom(g)
}

// Clip returns the dissolved part of mp that lies inside clip.
func Clip(mp, clip orb.MultiPolygon) (orb.MultiPolygon, error) {
	a, ok, err := union(mp)
	if err != nil || !ok {
		return nil, err
	}
	b, ok, err := union(clip)
	if err != nil || !ok {
		return nil, err
	}
	g, err := geom.Intersection(a, b)
	if err != nil {
		return nil, fmt.Errorf("intersect polygons: %w", err)
	}
	return fromGeom(g)
}

func union(mp orb.MultiPolygon) (geom.Geometry, bool, error) {
	var acc geom.Geometry
	ok := false
	for i, p := range mp {
		if planar.Area(p) <= 0 {
			continue
		}
		g, err := toGeom(p)
		if err != nil {
			return geom.Geometry{}, false, fmt.Errorf("polygon %d: %w", i, err)
		}
		if !ok {
			acc, ok = g, true
			continue
		}
		if acc, err = geom.Union(acc, g); err != nil {
			return geom.Geometry{}, false, fmt.Errorf("union polygon %d: %w", i, err)
		}
	}
	return acc, ok, nil
}

func toGeom(p orb.Polygon) (geom.Geometry, error) {
	b, err := wkb.Marshal(p)
	if err != nil {
		return geom.Geometry{}, err
	}
	return geom.UnmarshalWKB(b)
}

func fromGeom(g geom.Geometry) (orb.MultiPolygon, error) {
	if g.IsEmpty() {
		return nil, nil
	}
	og, err := wkb.Unmarshal(g.AsBinary())
	if err != nil {
		return nil, fmt.Errorf("decode overlay result: %w", err)
	}
	return polygons(og), nil
}

// polygons keeps the areal parts of an overlay result; lines and points
// left where shapes only touch are dropped.
func polygons(g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}
	case orb.MultiPolygon:
		return v
	case orb.Collection:
		var out orb.MultiPolygon
		for _, c := range v {
			out = append(out, polygons(c)...)
		}
		return out
	}
	return nil
}
