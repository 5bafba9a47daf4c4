package radar

import (
	"fmt"

	"github.com/DioGolang/Zoned/internal/domain/entity"
	"github.com/DioGolang/Zoned/internal/domain/proximity"
)

type PositionDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p PositionDTO) ToEntity() (entity.Position, error) {
	return entity.NewPosition(p.Lat, p.Lng)
}

func PositionFromEntity(p entity.Position) PositionDTO {
	return PositionDTO{Lat: p.Latitude(), Lng: p.Longitude()}
}

type UserDTO struct {
	ID         string            `json:"id"`
	Lat        float64           `json:"lat"`
	Lng        float64           `json:"lng"`
	Attributes map[string]string `json:"attributes,omitempty"`
	// Filled on output only.
	OffsetLatFeet float64 `json:"offset_lat_ft,omitempty"`
	OffsetLngFeet float64 `json:"offset_lng_ft,omitempty"`
}

func (u UserDTO) ToEntity() (entity.User, error) {
	pos, err := entity.NewPosition(u.Lat, u.Lng)
	if err != nil {
		return entity.User{}, err
	}
	return entity.NewUser(u.ID, pos, u.Attributes)
}

func UsersToEntities(in []UserDTO) ([]entity.User, error) {
	out := make([]entity.User, len(in))
	for i, dto := range in {
		u, err := dto.ToEntity()
		if err != nil {
			return nil, fmt.Errorf("user %d (%q): %w", i, dto.ID, err)
		}
		out[i] = u
	}
	return out, nil
}

// UsersFromEntities converts users for presenters, with their offsets from
// origin in feet.
func UsersFromEntities(origin entity.Position, users []entity.User) []UserDTO {
	out := make([]UserDTO, len(users))
	for i, u := range users {
		latFeet, lngFeet := proximity.Offset(origin, u.Position())
		out[i] = UserDTO{
			ID:            u.ID(),
			Lat:           u.Position().Latitude(),
			Lng:           u.Position().Longitude(),
			Attributes:    u.Attributes(),
			OffsetLatFeet: latFeet,
			OffsetLngFeet: lngFeet,
		}
	}
	return out
}

// Input

type NearbyInput struct {
	Origin     PositionDTO `json:"origin"`
	RadiusFeet float64     `json:"radius_ft"`
	Users      []UserDTO   `json:"entities"`
}

type DirectoryNearbyInput struct {
	Origin     PositionDTO
	RadiusFeet float64
}

type UpdateLocationInput struct {
	UserID     string            `json:"user_id"`
	Lat        float64           `json:"lat"`
	Lng        float64           `json:"lng"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Output

type NearbyOutput struct {
	Origin     PositionDTO `json:"origin"`
	RadiusFeet float64     `json:"radius_ft"`
	Nearby     []UserDTO   `json:"nearby"`
}

// SnapshotOutput is a Tracker snapshot as presenters receive it.
type SnapshotOutput struct {
	Sequence   uint64       `json:"sequence"`
	State      string       `json:"state"`
	Position   *PositionDTO `json:"position,omitempty"`
	RadiusFeet float64      `json:"radius_ft"`
	Nearby     []UserDTO    `json:"nearby"`
	Error      string       `json:"error,omitempty"`
}

func SnapshotFromTracker(s Snapshot) SnapshotOutput {
	out := SnapshotOutput{
		Sequence:   s.Sequence,
		State:      s.State,
		RadiusFeet: s.RadiusFeet,
		Nearby:     []UserDTO{},
	}
	if s.HasFix {
		pos := PositionFromEntity(s.Position)
		out.Position = &pos
		out.Nearby = UsersFromEntities(s.Position, s.Nearby)
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return out
}
