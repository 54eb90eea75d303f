package ports

import (
	"context"

	"floodcv/domain/group"
)

// GeometryProvider supplies observation groups with their area of interest
// and unified ground truth. Samples and tables are left empty.
type GeometryProvider interface {
	LoadGroups(ctx context.Context) ([]*group.ObservationGroup, error)
}
