// Package proximity decides which users fall inside a radar around an origin.
//
// Distances use a flat-earth approximation with fixed conversion factors. The
// longitude factor corresponds to roughly 25.76°N and is deliberately not
// scaled by cos(latitude): accuracy degrades away from that latitude, and
// results must stay comparable with clients that use the same factors.
//
// Inclusion is an axis-aligned box test (a square of side 2*radius), not a
// circle. Users near the corners of the box are included even when their
// straight-line distance exceeds the radius.
package proximity

import (
	"math"

	"github.com/DioGolang/Zoned/internal/domain/entity"
)

const (
	FeetPerDegreeLatitude  = 364000.0
	FeetPerDegreeLongitude = 288200.0
)

// Query is one radar recomputation.
type Query struct {
	Origin     entity.Position
	RadiusFeet float64
	Users      []entity.User
}

func (q Query) Compute() []entity.User {
	return ComputeNearby(q.Origin, q.RadiusFeet, q.Users)
}

// Offset returns the absolute latitude and longitude offsets, in feet, of p
// from origin.
func Offset(origin, p entity.Position) (latFeet, lngFeet float64) {
	latFeet = math.Abs(p.Latitude()-origin.Latitude()) * FeetPerDegreeLatitude
	lngFeet = math.Abs(p.Longitude()-origin.Longitude()) * FeetPerDegreeLongitude
	return latFeet, lngFeet
}

func Within(origin, p entity.Position, radiusFeet float64) bool {
	latFeet, lngFeet := Offset(origin, p)
	return latFeet <= radiusFeet && lngFeet <= radiusFeet
}

// ComputeNearby returns the users inside the radar box, in input order. It
// never fails and never modifies users; the result is never nil.
func ComputeNearby(origin entity.Position, radiusFeet float64, users []entity.User) []entity.User {
	nearby := make([]entity.User, 0, len(users))
	for _, u := range users {
		if Within(origin, u.Position(), radiusFeet) {
			nearby = append(nearby, u)
		}
	}
	return nearby
}
