// Package geojson loads observation groups from a directory of GeoJSON files.
//
// Every group lives in its own sub-directory named YYYY_MM_DD_<label> holding
// aoi.geojson and ground_truth.geojson. Polygon and MultiPolygon features of
// each file are unioned into one MultiPolygon.
package geojson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"floodcv/domain/group"
	"floodcv/internal"
	"floodcv/internal/sampling"
	"floodcv/ports"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	AOIFile         = "aoi.geojson"
	GroundTruthFile = "ground_truth.geojson"

	dateLayout = "2006_01_02"
)

// Provider implements ports.GeometryProvider over a directory tree.
type Provider struct {
	Dir    string
	logger *internal.Logger
}

var _ ports.GeometryProvider = (*Provider)(nil)

// NewProvider creates a provider rooted at dir.
func NewProvider(dir string, logger *internal.Logger) *Provider {
	return &Provider{Dir: dir, logger: logger.Named("GeometryProvider")}
}

// ParseGroupDir splits a directory name into date and label.
func ParseGroupDir(name string) (time.Time, string, error) {
	if len(name) < len(dateLayout)+2 || name[len(dateLayout)] != '_' {
		return time.Time{}, "", fmt.Errorf("directory %q does not match YYYY_MM_DD_<label>", name)
	}
	date, err := time.Parse(dateLayout, name[:len(dateLayout)])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("directory %q: %w", name, err)
	}
	return date, name[len(dateLayout)+1:], nil
}

// LoadGroups reads every group directory in name order. Directories that do
// not follow the naming scheme are skipped.
func (p *Provider) LoadGroups(ctx context.Context) ([]*group.ObservationGroup, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("read group directory: %w", err)
	}

	var groups []*group.ObservationGroup
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		date, label, err := ParseGroupDir(entry.Name())
		if err != nil {
			p.logger.Warn("skipping %s: %v", entry.Name(), err)
			continue
		}

		dir := filepath.Join(p.Dir, entry.Name())
		aoi, err := ReadMultiPolygon(filepath.Join(dir, AOIFile))
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", entry.Name(), err)
		}
		gt, err := ReadMultiPolygon(filepath.Join(dir, GroundTruthFile))
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", entry.Name(), err)
		}
		if aoi, err = sampling.Dissolve(aoi); err != nil {
			return nil, fmt.Errorf("group %s: area of interest: %w", entry.Name(), err)
		}
		if gt, err = sampling.Dissolve(gt); err != nil {
			return nil, fmt.Errorf("group %s: ground truth: %w", entry.Name(), err)
		}
		groups = append(groups, &group.ObservationGroup{Label: label, Date: date, AOI: aoi, GroundTruth: gt})
		p.logger.Debug("loaded group %s: %d AOI polygons, %d ground truth polygons", entry.Name(), len(aoi), len(gt))
	}
	p.logger.Info("loaded %d observation groups from %s", len(groups), p.Dir)
	return groups, nil
}

// ReadMultiPolygon reads a GeoJSON file holding a FeatureCollection, a Feature
// or a bare geometry and merges all polygons into one MultiPolygon.
func ReadMultiPolygon(path string) (orb.MultiPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var geometries []orb.Geometry
	switch kind := typeOf(data); kind {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, f := range fc.Features {
			geometries = append(geometries, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		geometries = append(geometries, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		geometries = append(geometries, g.Geometry())
	}

	mp := Merge(geometries...)
	if len(mp) == 0 {
		return nil, fmt.Errorf("%s: no polygon geometry", path)
	}
	return mp, nil
}

// Merge collects the polygons of the given geometries without dissolving
// overlaps. Other geometry types are ignored.
func Merge(geometries ...orb.Geometry) orb.MultiPolygon {
	var out orb.MultiPolygon
	for _, g := range geometries {
		switch v := g.(type) {
		case orb.Polygon:
			out = append(out, v)
		case orb.MultiPolygon:
			out = append(out, v...)
		case orb.Collection:
			out = append(out, Merge(v...)...)
		}
	}
	return out
}

func typeOf(data []byte) string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	return head.Type
}
