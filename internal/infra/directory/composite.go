package directory

import (
	"context"
	"fmt"

	"github.com/DioGolang/Zoned/internal/application/port/outbound"
	"github.com/DioGolang/Zoned/internal/domain/entity"
	"golang.org/x/sync/errgroup"
)

// CompositeProvider queries several providers concurrently and concatenates
// their answers in provider order. The first occurrence of an id wins.
type CompositeProvider struct {
	providers []outbound.EntityProvider
	limit     int
}

func NewCompositeProvider(providers ...outbound.EntityProvider) *CompositeProvider {
	return &CompositeProvider{providers: providers, limit: 4}
}

func (c *CompositeProvider) FetchNearby(ctx context.Context, origin entity.Position) ([]entity.User, error) {
	results := make([][]entity.User, len(c.providers))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)
	for i, p := range c.providers {
		g.Go(func() error {
			users, err := p.FetchNearby(gCtx, origin)
			if err != nil {
				return fmt.Errorf("provider %d: %w", i, err)
			}
			results[i] = users
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var merged []entity.User
	for _, users := range results {
		for _, u := range users {
			if _, dup := seen[u.ID()]; dup {
				continue
			}
			seen[u.ID()] = struct{}{}
			merged = append(merged, u)
		}
	}
	return merged, nil
}
