package entity

import "math"

// User-facing radius bounds in feet, matching the radius slider.
const (
	MinRadiusFeet     = 5.0
	MaxRadiusFeet     = 150.0
	DefaultRadiusFeet = 20.0
)

// Radar holds the current position and radius of one session. It is owned
// by a single goroutine and is not safe for concurrent use.
type Radar struct {
	state      RadarState
	position   Position
	radiusFeet float64
	lastErr    error
}

func NewRadar(radiusFeet float64) *Radar {
	return &Radar{
		state:      &AwaitingFixState{},
		radiusFeet: ClampRadius(radiusFeet),
	}
}

// ClampRadius bounds a user supplied radius to [MinRadiusFeet, MaxRadiusFeet].
// NaN falls back to DefaultRadiusFeet.
func ClampRadius(feet float64) float64 {
	if math.IsNaN(feet) {
		return DefaultRadiusFeet
	}
	return math.Min(MaxRadiusFeet, math.Max(MinRadiusFeet, feet))
}

func (r *Radar) ApplyFix(p Position) {
	r.state.ApplyFix(r, p)
}

func (r *Radar) ApplyFailure(err error) {
	r.state.ApplyFailure(r, err)
}

// SetRadius stores the clamped radius and returns it.
func (r *Radar) SetRadius(feet float64) float64 {
	r.radiusFeet = ClampRadius(feet)
	return r.radiusFeet
}

// Origin returns the current position, or false while no fix was applied.
func (r *Radar) Origin() (Position, bool) {
	return r.state.Origin(r)
}

func (r *Radar) RadiusFeet() float64 {
	return r.radiusFeet
}

func (r *Radar) StateName() string {
	return r.state.Name()
}

func (r *Radar) LastError() error {
	return r.lastErr
}

func (r *Radar) TransitionTo(s RadarState) {
	r.state = s
}
