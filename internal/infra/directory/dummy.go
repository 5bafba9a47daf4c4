package directory

import (
	"context"
	"fmt"

	"github.com/DioGolang/Zoned/internal/domain/entity"
)

// DummyOffsetDegrees is how far the fabricated users sit from the origin on
// each axis.
const DummyOffsetDegrees = 0.0001

// DummyProvider fabricates two users around every origin, one north-east and
// one south-west, with placeholder social handles. It stands in for a real
// directory during demos and local development.
type DummyProvider struct{}

func NewDummyProvider() *DummyProvider {
	return &DummyProvider{}
}

func (d *DummyProvider) FetchNearby(ctx context.Context, origin entity.Position) ([]entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	offsets := []float64{DummyOffsetDegrees, -DummyOffsetDegrees}
	users := make([]entity.User, 0, len(offsets))
	for i, off := range offsets {
		id := fmt.Sprintf("%d", i+1)
		u, err := entity.NewUser(id, origin.Offset(off, off), map[string]string{
			entity.AttrInstagram: fmt.Sprintf("user%s_insta", id),
			entity.AttrSnapchat:  fmt.Sprintf("user%s_snap", id),
		})
		if err != nil {
			// origin at the edge of the valid range; skip the user that falls off
			continue
		}
		users = append(users, u)
	}
	return users, nil
}
