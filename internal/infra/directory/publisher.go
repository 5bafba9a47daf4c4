package directory

import (
	"context"
	"errors"
	"time"

	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/domain/entity"
)

// RepositoryPublisher writes own-position pushes straight into the
// repository, for deployments without a broker.
type RepositoryPublisher struct {
	repo outbound.LocationRepository
	now  func() time.Time
}

func NewRepositoryPublisher(repo outbound.LocationRepository) *RepositoryPublisher {
	return &RepositoryPublisher{repo: repo, now: time.Now}
}

// Publish stamps the push with the current time. A stale rejection means a
// newer push already landed, so it is not an error for the caller.
func (p *RepositoryPublisher) Publish(ctx context.Context, user entity.User) error {
	err := p.repo.UpdateLocation(ctx, user, p.now())
	if errors.Is(err, entity.ErrStaleLocation) {
		return nil
	}
	return err
}

// DiscardPublisher accepts and drops every push; used with the dummy directory.
type DiscardPublisher struct{}

func (DiscardPublisher) Publish(context.Context, entity.User) error { return nil }
