package outbound

import (
	"context"

	"github.com/DioGolang/Zoned/internal/domain/entity"
)

// EntityProvider supplies the candidate users around an origin. Candidates are
// filtered by the proximity engine afterwards, so a provider may over-fetch.
type EntityProvider interface {
	FetchNearby(ctx context.Context, origin entity.Position) ([]entity.User, error)
}
