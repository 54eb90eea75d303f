// Package sampling draws class-labelled points inside observation group
// geometries: flooded points inside the ground truth, non-flooded points in
// the rest of the area of interest.
package sampling

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"floodcv/domain/core"
	"floodcv/domain/group"
	"floodcv/internal"
	"floodcv/internal/rng"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// Allocation decides how the target count is split between the two classes.
type Allocation string

const (
	Equalized    Allocation = "equalized"
	Proportional Allocation = "proportional"
)

// ParseAllocation accepts "equalized" or "proportional".
func ParseAllocation(s string) (Allocation, error) {
	switch Allocation(s) {
	case Equalized, Proportional:
		return Allocation(s), nil
	}
	return "", fmt.Errorf("unknown allocation %q", s)
}

// zeroAreaTolerance is relative to the AOI area.
const zeroAreaTolerance = 1e-12

// Config configures the sampler
type Config struct {
	Seed       int64
	MaxRounds  int
	Oversample float64
	MaxBatch   int
	Workers    int
}

// DefaultConfig returns sensible defaults for sampling
func DefaultConfig() Config {
	return Config{
		Seed:       42,
		MaxRounds:  100,
		Oversample: 1.2,
		MaxBatch:   1_000_000,
		Workers:    1,
	}
}

// Request describes the sample wanted for one group.
type Request struct {
	Group       string
	AOI         orb.MultiPolygon
	GroundTruth orb.MultiPolygon
	Total       int
	Allocation  Allocation
}

// Sampler draws stratified point samples.
type Sampler struct {
	config Config
	logger *internal.Logger
}

// NewSampler creates a sampler, filling unset config fields with defaults.
func NewSampler(config Config, logger *internal.Logger) *Sampler {
	defaults := DefaultConfig()
	if config.MaxRounds <= 0 {
		config.MaxRounds = defaults.MaxRounds
	}
	if config.Oversample <= 0 {
		config.Oversample = defaults.Oversample
	}
	if config.MaxBatch <= 0 {
		config.MaxBatch = defaults.MaxBatch
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Sampler{config: config, logger: logger.Named("Sampler")}
}

// Allocate splits total between flooded and non-flooded points.
func Allocate(total int, mode Allocation, gtArea, aoiArea float64) (flooded, nonFlooded int, err error) {
	if total <= 0 {
		return 0, 0, fmt.Errorf("target count must be positive, got %d", total)
	}
	switch mode {
	case Equalized:
		flooded = total / 2
	case Proportional:
		if aoiArea <= 0 {
			return 0, 0, fmt.Errorf("area of interest has zero area")
		}
		flooded = int(math.Round(float64(total) * gtArea / aoiArea))
		if flooded > total {
			flooded = total
		}
		if flooded < 0 {
			flooded = 0
		}
	default:
		return 0, 0, fmt.Errorf("unknown allocation %q", mode)
	}
	return flooded, total - flooded, nil
}

// Sample draws the requested points. Flooded points come first. Ground truth
// is dissolved and clipped to the area of interest before areas are taken.
func (s *Sampler) Sample(ctx context.Context, req Request) (*group.Sample, error) {
	aoi, err := Dissolve(req.AOI)
	if err != nil {
		return nil, core.NewSamplingError(req.Group, "area of interest: "+err.Error())
	}
	aoiArea := Area(aoi)
	if aoiArea <= 0 {
		return nil, core.NewSamplingError(req.Group, "area of interest has zero area")
	}
	gt, err := Clip(req.GroundTruth, aoi)
	if err != nil {
		return nil, core.NewSamplingError(req.Group, "ground truth: "+err.Error())
	}
	floodedRegion := NewRegion(gt, nil)
	dryRegion := NewRegion(aoi, gt)

	nFlooded, nDry, err := Allocate(req.Total, req.Allocation, floodedRegion.Area(), aoiArea)
	if err != nil {
		return nil, core.NewSamplingError(req.Group, err.Error())
	}

	r := rng.Stream(s.config.Seed, "sampling", req.Group)
	tol := zeroAreaTolerance * aoiArea

	flooded, err := s.draw(ctx, r, floodedRegion, nFlooded, tol)
	if err != nil {
		return nil, core.NewSamplingError(req.Group, "flooded region: "+err.Error())
	}
	dry, err := s.draw(ctx, r, dryRegion, nDry, tol)
	if err != nil {
		return nil, core.NewSamplingError(req.Group, "non-flooded region: "+err.Error())
	}

	points := make([]group.SamplePoint, 0, req.Total)
	for _, p := range flooded {
		points = append(points, group.SamplePoint{Point: p, Class: 1})
	}
	for _, p := range dry {
		points = append(points, group.SamplePoint{Point: p, Class: 0})
	}

	s.logger.Debug("group %s: %d flooded, %d non-flooded points", req.Group, nFlooded, nDry)
	return &group.Sample{
		Group:      req.Group,
		Points:     points,
		Flooded:    nFlooded,
		NonFlooded: nDry,
	}, nil
}

// draw rejection-samples n uniform points from region, retrying batches until
// the count is met or MaxRounds is exhausted.
func (s *Sampler) draw(ctx context.Context, r *rand.Rand, region *Region, n int, tol float64) ([]orb.Point, error) {
	if n == 0 {
		return nil, nil
	}
	if region.Area() <= tol {
		return nil, fmt.Errorf("%d points requested from a region with zero area", n)
	}

	b := region.Bound()
	w, h := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	accept := region.Area() / (w * h)
	if accept > 1 || math.IsNaN(accept) {
		accept = 1
	}

	points := make([]orb.Point, 0, n)
	for round := 0; round < s.config.MaxRounds && len(points) < n; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		need := n - len(points)
		batch := int(math.Ceil(float64(need)/accept*s.config.Oversample)) + 1
		if batch > s.config.MaxBatch {
			batch = s.config.MaxBatch
		}
		for k := 0; k < batch && len(points) < n; k++ {
			p := orb.Point{b.Min[0] + r.Float64()*w, b.Min[1] + r.Float64()*h}
			if region.Contains(p) {
				points = append(points, p)
			}
		}
	}
	if len(points) < n {
		return nil, fmt.Errorf("only %d of %d points drawn after %d rounds", len(points), n, s.config.MaxRounds)
	}
	return points, nil
}

// SampleGroups draws total points for every group and stores them in
// group.Sample. The first failure aborts and names its group.
func (s *Sampler) SampleGroups(ctx context.Context, groups []*group.ObservationGroup, total int, mode Allocation) error {
	samples := make([]*group.Sample, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i, og := range groups {
		g.Go(func() error {
			sample, err := s.Sample(gctx, Request{
				Group:       og.Name(),
				AOI:         og.AOI,
				GroundTruth: og.GroundTruth,
				Total:       total,
				Allocation:  mode,
			})
			if err != nil {
				return err
			}
			samples[i] = sample
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, og := range groups {
		og.Sample = samples[i]
	}
	s.logger.Info("sampled %d groups with %d points each (%s)", len(groups), total, mode)
	return nil
}
