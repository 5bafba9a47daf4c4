package outbound

import (
	"context"

	"github.com/DioGolang/Zoned/internal/domain/entity"
)

// LocationPublisher pushes a user's own position to the directory.
type LocationPublisher interface {
	Publish(ctx context.Context, user entity.User) error
}
