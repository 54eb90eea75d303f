package ports

import (
	"context"

	"floodcv/domain/group"
)

// FeatureStackProvider returns the feature values of a group at its sample
// points. Rows follow the order of g.Sample.Points and labels are the point
// classes.
type FeatureStackProvider interface {
	FeatureTable(ctx context.Context, g *group.ObservationGroup, features []string) (*group.FeatureTable, error)
}

// SampleWriter exports sample points for the external feature pipeline.
type SampleWriter interface {
	WriteSamples(ctx context.Context, groups []*group.ObservationGroup) error
}
