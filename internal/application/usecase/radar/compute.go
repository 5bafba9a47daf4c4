package radar

import (
	"context"
	"fmt"

	"github.com/DioGolang/Zoned/internal/domain/proximity"
)

// ComputeNearbyUseCaseImpl exposes the proximity engine over caller-supplied
// users. Only input validation can fail.
type ComputeNearbyUseCaseImpl struct{}

func NewComputeNearbyUseCase() *ComputeNearbyUseCaseImpl {
	return &ComputeNearbyUseCaseImpl{}
}

func (uc *ComputeNearbyUseCaseImpl) Execute(ctx context.Context, input NearbyInput) (NearbyOutput, error) {
	origin, err := input.Origin.ToEntity()
	if err != nil {
		return NearbyOutput{}, fmt.Errorf("invalid origin: %w", err)
	}
	users, err := UsersToEntities(input.Users)
	if err != nil {
		return NearbyOutput{}, fmt.Errorf("invalid entity: %w", err)
	}

	nearby := proximity.ComputeNearby(origin, input.RadiusFeet, users)

	return NearbyOutput{
		Origin:     input.Origin,
		RadiusFeet: input.RadiusFeet,
		Nearby:     UsersFromEntities(origin, nearby),
	}, nil
}
