package entity

import (
	"fmt"
	"math"
)

// Position is an immutable WGS84 coordinate. A new sample supersedes the
// previous Position, it never mutates it.
type Position struct {
	latitude  float64
	longitude float64
}

func NewPosition(latitude, longitude float64) (Position, error) {
	p := Position{latitude: latitude, longitude: longitude}
	if err := p.Validate(); err != nil {
		return Position{}, err
	}
	return p, nil
}

func (p Position) Validate() error {
	if math.IsNaN(p.latitude) || p.latitude < -90 || p.latitude > 90 {
		return ErrInvalidLatitude
	}
	if math.IsNaN(p.longitude) || p.longitude < -180 || p.longitude > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

func (p Position) Latitude() float64 {
	return p.latitude
}

func (p Position) Longitude() float64 {
	return p.longitude
}

// Offset returns a position shifted by the given degrees. The result is not
// clamped; callers validate it if it may leave the valid range.
func (p Position) Offset(dLat, dLng float64) Position {
	return Position{latitude: p.latitude + dLat, longitude: p.longitude + dLng}
}

func (p Position) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.latitude, p.longitude)
}
