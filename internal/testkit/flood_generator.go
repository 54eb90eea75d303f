package testkit

import (
	"fmt"
	"math/rand"
	"time"

	"floodcv/domain/group"

	"github.com/paulmach/orb"
)

// FloodGeneratorConfig configures synthetic observation groups
type FloodGeneratorConfig struct {
	Groups       int       `json:"groups"`
	RowsPerGroup int       `json:"rows_per_group"`
	Features     int       `json:"features"`
	Informative  int       `json:"informative"`
	Shift        float64   `json:"shift"`
	Noise        float64   `json:"noise"`
	StartDate    time.Time `json:"start_date"`
	Seed         int64     `json:"seed"`
}

// DefaultFloodConfig returns four groups of 500 rows with eight features, two of them informative
func DefaultFloodConfig() FloodGeneratorConfig {
	return FloodGeneratorConfig{
		Groups:       4,
		RowsPerGroup: 500,
		Features:     8,
		Informative:  2,
		Shift:        3.0,
		Noise:        1.0,
		StartDate:    time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC),
		Seed:         42,
	}
}

// FloodDataGenerator produces observation groups with geometries, samples and feature tables
type FloodDataGenerator struct {
	config FloodGeneratorConfig
	rng    *rand.Rand
}

// NewFloodDataGenerator creates a new generator
func NewFloodDataGenerator(config FloodGeneratorConfig) *FloodDataGenerator {
	return &FloodDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// FeatureNames returns f0..fN-1.
func FeatureNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("f%d", i)
	}
	return names
}

// SquareAOI returns the 10x10 area of interest of group g.
func SquareAOI(g int) orb.MultiPolygon {
	return rect(float64(g)*10, 0, float64(g)*10+10, 10)
}

// GroundTruthRect returns the flooded rectangle of group g, inside its AOI.
func GroundTruthRect(g int) orb.MultiPolygon {
	return rect(float64(g)*10+1, 1, float64(g)*10+5, 6)
}

func rect(minX, minY, maxX, maxY float64) orb.MultiPolygon {
	return orb.MultiPolygon{orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}}
}

// Generate builds all groups. Flooded rows come first in every table.
func (g *FloodDataGenerator) Generate() []*group.ObservationGroup {
	groups := make([]*group.ObservationGroup, g.config.Groups)
	for i := range groups {
		groups[i] = g.generateGroup(i)
	}
	return groups
}

func (g *FloodDataGenerator) generateGroup(idx int) *group.ObservationGroup {
	cfg := g.config
	n := cfg.RowsPerGroup
	flooded := n / 2
	drift := g.rng.NormFloat64() * 0.2

	rows := make([][]float64, n)
	labels := make([]int, n)
	points := make([]group.SamplePoint, n)
	for i := 0; i < n; i++ {
		label := 0
		if i < flooded {
			label = 1
		}
		row := make([]float64, cfg.Features)
		for j := range row {
			row[j] = g.rng.NormFloat64() * cfg.Noise
			if j < cfg.Informative {
				row[j] += float64(label)*cfg.Shift + drift
			}
		}
		rows[i] = row
		labels[i] = label
		points[i] = group.SamplePoint{Point: g.point(idx, label), Class: label}
	}

	table, err := group.NewFeatureTable(FeatureNames(cfg.Features), rows, labels)
	if err != nil {
		panic(err)
	}

	return &group.ObservationGroup{
		Label:       fmt.Sprintf("event%d", idx),
		Date:        cfg.StartDate.AddDate(0, 0, 7*idx),
		AOI:         SquareAOI(idx),
		GroundTruth: GroundTruthRect(idx),
		Sample: &group.Sample{
			Group:      fmt.Sprintf("event%d", idx),
			Points:     points,
			Flooded:    flooded,
			NonFlooded: n - flooded,
		},
		Table: table,
	}
}

func (g *FloodDataGenerator) point(idx int, label int) orb.Point {
	x0 := float64(idx) * 10
	if label == 1 {
		return orb.Point{x0 + 1 + 4*g.rng.Float64(), 1 + 5*g.rng.Float64()}
	}
	return orb.Point{x0 + 5.5 + 4*g.rng.Float64(), 10 * g.rng.Float64()}
}

// Table returns a single separable table with the given size.
func Table(seed int64, rows, features, informative int) *group.FeatureTable {
	cfg := DefaultFloodConfig()
	cfg.Groups = 1
	cfg.RowsPerGroup = rows
	cfg.Features = features
	cfg.Informative = informative
	cfg.Seed = seed
	return NewFloodDataGenerator(cfg).Generate()[0].Table
}
