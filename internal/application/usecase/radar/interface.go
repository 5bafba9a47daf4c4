package radar

import (
	"context"
)

type ComputeNearbyUseCase interface {
	Execute(ctx context.Context, input NearbyInput) (NearbyOutput, error)
}

type DirectoryNearbyUseCase interface {
	Execute(ctx context.Context, input DirectoryNearbyInput) (NearbyOutput, error)
}

type UpdateLocationUseCase interface {
	Execute(ctx context.Context, input UpdateLocationInput) error
}
