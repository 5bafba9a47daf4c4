package radar

import (
	"context"
	"fmt"

	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/domain/entity"
	"github.com/DioGolang/Zoned/internal/domain/proximity"
)

// DirectoryNearbyUseCaseImpl asks the entity provider for candidates around
// the origin and filters them with the user-facing (clamped) radius.
type DirectoryNearbyUseCaseImpl struct {
	Provider outbound.EntityProvider
}

func NewDirectoryNearbyUseCase(provider outbound.EntityProvider) *DirectoryNearbyUseCaseImpl {
	return &DirectoryNearbyUseCaseImpl{Provider: provider}
}

func (uc *DirectoryNearbyUseCaseImpl) Execute(ctx context.Context, input DirectoryNearbyInput) (NearbyOutput, error) {
	origin, err := input.Origin.ToEntity()
	if err != nil {
		return NearbyOutput{}, fmt.Errorf("invalid origin: %w", err)
	}
	radius := entity.ClampRadius(input.RadiusFeet)

	candidates, err := uc.Provider.FetchNearby(ctx, origin)
	if err != nil {
		return NearbyOutput{}, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	return NearbyOutput{
		Origin:     input.Origin,
		RadiusFeet: radius,
		Nearby:     UsersFromEntities(origin, proximity.ComputeNearby(origin, radius, candidates)),
	}, nil
}
