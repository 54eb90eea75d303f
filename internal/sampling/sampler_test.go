package sampling

import (
	"context"
	"errors"
	"testing"

	"floodcv/domain/core"
	"floodcv/internal"
	"floodcv/internal/testkit"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSampler(cfg Config) *Sampler {
	return NewSampler(cfg, internal.NewLogger(internal.LogLevelError))
}

func squareRequest(total int, mode Allocation) Request {
	return Request{
		Group:       "event0",
		AOI:         testkit.SquareAOI(0),
		GroundTruth: testkit.GroundTruthRect(0),
		Total:       total,
		Allocation:  mode,
	}
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		mode        Allocation
		gt, aoi     float64
		wantFlooded int
	}{
		{"equalized even", 500, Equalized, 20, 100, 250},
		{"equalized odd", 501, Equalized, 20, 100, 250},
		{"proportional", 500, Proportional, 20, 100, 100},
		{"proportional rounds", 7, Proportional, 50, 100, 4},
		{"proportional empty ground truth", 10, Proportional, 0, 100, 0},
		{"proportional clamps", 10, Proportional, 150, 100, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flooded, dry, err := Allocate(tt.total, tt.mode, tt.gt, tt.aoi)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFlooded, flooded)
			assert.Equal(t, tt.total, flooded+dry)
		})
	}

	_, _, err := Allocate(0, Equalized, 1, 1)
	assert.Error(t, err)
	_, _, err = Allocate(10, "random", 1, 1)
	assert.Error(t, err)
}

func TestSampleEqualized(t *testing.T) {
	s := newTestSampler(DefaultConfig())
	req := squareRequest(500, Equalized)

	sample, err := s.Sample(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, sample.Points, 500)
	assert.Equal(t, 250, sample.Flooded)
	assert.Equal(t, 250, sample.NonFlooded)

	for i, p := range sample.Points {
		inGT := planar.MultiPolygonContains(req.GroundTruth, p.Point)
		inAOI := planar.MultiPolygonContains(req.AOI, p.Point)
		if i < 250 {
			assert.Equal(t, 1, p.Class)
			assert.True(t, inGT, "flooded point %v outside ground truth", p.Point)
		} else {
			assert.Equal(t, 0, p.Class)
			assert.True(t, inAOI && !inGT, "non-flooded point %v misplaced", p.Point)
		}
	}
}

func TestSampleProportional(t *testing.T) {
	s := newTestSampler(DefaultConfig())
	sample, err := s.Sample(context.Background(), squareRequest(500, Proportional))
	require.NoError(t, err)

	// ground truth 4x5 inside a 10x10 area of interest
	assert.Equal(t, 100, sample.Flooded)
	assert.Equal(t, 400, sample.NonFlooded)
	assert.Len(t, sample.Points, 500)
}

func TestSampleProportionalCountsGroundTruthOnce(t *testing.T) {
	aoi := rectangle(0, 0, 10, 10)
	strip := rectangle(0, 0, 2, 10)

	tests := []struct {
		name string
		gt   orb.MultiPolygon
	}{
		{"identical features", orb.MultiPolygon{strip[0], strip[0]}},
		{"overlapping features", orb.MultiPolygon{rectangle(0, 0, 2, 6)[0], rectangle(0, 4, 2, 10)[0]}},
		{"feature past the aoi", rectangle(-2, 0, 2, 10)},
	}

	s := newTestSampler(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample, err := s.Sample(context.Background(), Request{
				Group:       "strip",
				AOI:         aoi,
				GroundTruth: tt.gt,
				Total:       500,
				Allocation:  Proportional,
			})
			require.NoError(t, err)
			assert.Equal(t, 100, sample.Flooded)
			assert.Equal(t, 400, sample.NonFlooded)
			for _, p := range sample.Points[:sample.Flooded] {
				assert.True(t, planar.MultiPolygonContains(aoi, p.Point), "flooded point %v outside aoi", p.Point)
			}
		})
	}
}

func TestDissolveAndClip(t *testing.T) {
	left, right := rectangle(0, 0, 6, 10), rectangle(4, 0, 10, 10)

	dissolved, err := Dissolve(orb.MultiPolygon{left[0], right[0]})
	require.NoError(t, err)
	assert.Len(t, dissolved, 1)
	assert.InDelta(t, 100.0, Area(dissolved), 1e-9)

	clipped, err := Clip(rectangle(-5, -5, 5, 5), rectangle(0, 0, 10, 10))
	require.NoError(t, err)
	assert.InDelta(t, 25.0, Area(clipped), 1e-9)

	outside, err := Clip(rectangle(20, 20, 30, 30), rectangle(0, 0, 10, 10))
	require.NoError(t, err)
	assert.Zero(t, Area(outside))

	empty, err := Dissolve(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func rectangle(minX, minY, maxX, maxY float64) orb.MultiPolygon {
	return orb.MultiPolygon{orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}}
}

func TestSampleDeterministic(t *testing.T) {
	a, err := newTestSampler(DefaultConfig()).Sample(context.Background(), squareRequest(50, Equalized))
	require.NoError(t, err)
	b, err := newTestSampler(DefaultConfig()).Sample(context.Background(), squareRequest(50, Equalized))
	require.NoError(t, err)
	assert.Equal(t, a.Points, b.Points)

	cfg := DefaultConfig()
	cfg.Seed = 7
	c, err := newTestSampler(cfg).Sample(context.Background(), squareRequest(50, Equalized))
	require.NoError(t, err)
	assert.NotEqual(t, a.Points, c.Points)
}

func TestSampleZeroAreaRegions(t *testing.T) {
	degenerate := orb.MultiPolygon{orb.Polygon{orb.Ring{{1, 1}, {2, 2}, {3, 3}, {1, 1}}}}

	tests := []struct {
		name string
		req  Request
	}{
		{"ground truth without area", Request{Group: "flat", AOI: testkit.SquareAOI(0), GroundTruth: degenerate, Total: 10, Allocation: Equalized}},
		{"ground truth covers aoi", Request{Group: "drowned", AOI: testkit.SquareAOI(0), GroundTruth: testkit.SquareAOI(0), Total: 10, Allocation: Equalized}},
		{"aoi without area", Request{Group: "empty", AOI: degenerate, GroundTruth: degenerate, Total: 10, Allocation: Equalized}},
	}

	s := newTestSampler(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Sample(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrSampling))
			assert.Contains(t, err.Error(), tt.req.Group)
		})
	}
}

func TestSampleProportionalWithEmptyGroundTruth(t *testing.T) {
	s := newTestSampler(DefaultConfig())
	sample, err := s.Sample(context.Background(), Request{
		Group:      "dry",
		AOI:        testkit.SquareAOI(0),
		Total:      20,
		Allocation: Proportional,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, sample.Flooded)
	assert.Equal(t, 20, sample.NonFlooded)
}

func TestSampleRetryLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRounds = 1
	cfg.Oversample = 0.01

	_, err := newTestSampler(cfg).Sample(context.Background(), squareRequest(500, Equalized))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSampling))
	assert.Contains(t, err.Error(), "after 1 rounds")
}

func TestSampleGroups(t *testing.T) {
	cfg := testkit.DefaultFloodConfig()
	cfg.RowsPerGroup = 10
	groups := testkit.NewFloodDataGenerator(cfg).Generate()
	for _, g := range groups {
		g.Sample = nil
	}

	sc := DefaultConfig()
	sc.Workers = 3
	require.NoError(t, newTestSampler(sc).SampleGroups(context.Background(), groups, 100, Equalized))
	for _, g := range groups {
		require.NotNil(t, g.Sample)
		assert.Equal(t, g.Name(), g.Sample.Group)
		assert.Len(t, g.Sample.Points, 100)
	}

	groups[2].GroundTruth = groups[2].AOI
	err := newTestSampler(sc).SampleGroups(context.Background(), groups, 100, Equalized)
	require.Error(t, err)
	assert.Contains(t, err.Error(), groups[2].Name())
}
