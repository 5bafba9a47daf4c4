package entity

type AwaitingFixState struct{}

func (s *AwaitingFixState) Name() string { return StateAwaitingFix }

func (s *AwaitingFixState) ApplyFix(r *Radar, p Position) {
	r.position = p
	r.lastErr = nil
	r.TransitionTo(&ActiveState{})
}

// A failed fix leaves the radar waiting; the error is kept for presenters.
func (s *AwaitingFixState) ApplyFailure(r *Radar, err error) {
	r.lastErr = err
}

func (s *AwaitingFixState) Origin(r *Radar) (Position, bool) { return Position{}, false }

type ActiveState struct{}

func (s *ActiveState) Name() string { return StateActive }

func (s *ActiveState) ApplyFix(r *Radar, p Position) {
	r.position = p
	r.lastErr = nil
}

// Keeps the last good position.
func (s *ActiveState) ApplyFailure(r *Radar, err error) {
	r.lastErr = err
}

func (s *ActiveState) Origin(r *Radar) (Position, bool) { return r.position, true }
