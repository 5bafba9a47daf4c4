package radar

import (
	"context"
	"fmt"

	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/domain/entity"
)

type UpdateLocationUseCaseImpl struct {
	Publisher outbound.LocationPublisher
}

func NewUpdateLocationUseCase(publisher outbound.LocationPublisher) *UpdateLocationUseCaseImpl {
	return &UpdateLocationUseCaseImpl{Publisher: publisher}
}

func (uc *UpdateLocationUseCaseImpl) Execute(ctx context.Context, input UpdateLocationInput) error {
	pos, err := entity.NewPosition(input.Lat, input.Lng)
	if err != nil {
		return err
	}
	user, err := entity.NewUser(input.UserID, pos, input.Attributes)
	if err != nil {
		return err
	}

	if err := uc.Publisher.Publish(ctx, user); err != nil {
		return fmt.Errorf("failed to publish location: %w", err)
	}
	return nil
}
