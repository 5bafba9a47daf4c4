package directory

import (
	"context"

	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/domain/entity"
)

// SearchPadding widens the directory query. Below roughly 37.7° latitude the
// proximity engine's fixed longitude factor under-estimates east-west
// distances, so a radar box reaches up to about 1.27 times its nominal radius
// in true feet.
const SearchPadding = 1.5

// RepositoryProvider adapts a LocationRepository to an EntityProvider by
// querying a fixed search radius around each origin.
type RepositoryProvider struct {
	repo             outbound.LocationRepository
	searchRadiusFeet float64
}

func NewRepositoryProvider(repo outbound.LocationRepository, searchRadiusFeet float64) *RepositoryProvider {
	if searchRadiusFeet <= 0 {
		searchRadiusFeet = entity.MaxRadiusFeet
	}
	return &RepositoryProvider{repo: repo, searchRadiusFeet: searchRadiusFeet}
}

func (p *RepositoryProvider) FetchNearby(ctx context.Context, origin entity.Position) ([]entity.User, error) {
	return p.repo.GetNearbyUsers(ctx, origin, p.searchRadiusFeet*SearchPadding)
}
