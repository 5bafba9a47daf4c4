package entity

const (
	StateAwaitingFix = "AWAITING_FIX"
	StateActive      = "ACTIVE"
)

// RadarState drives the Radar lifecycle: AWAITING_FIX until the first fix,
// ACTIVE afterwards. There is no terminal state.
type RadarState interface {
	Name() string
	ApplyFix(r *Radar, p Position)
	ApplyFailure(r *Radar, err error)
	Origin(r *Radar) (Position, bool)
}
