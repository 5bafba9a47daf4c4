package entity

import "errors"

var (
	ErrIDIsRequired     = errors.New("id is required")
	ErrInvalidLatitude  = errors.New("latitude must be within [-90, 90]")
	ErrInvalidLongitude = errors.New("longitude must be within [-180, 180]")
)

// ErrStaleLocation is returned by directories refusing a position sample older
// than the one they already hold.
var ErrStaleLocation = errors.New("location sample is older than the stored one")

// Geolocation failures. They are reported to the caller and never retried by
// the source itself.
var (
	ErrLocationUnavailable = errors.New("geolocation unavailable")
	ErrPermissionDenied    = errors.New("geolocation permission denied")
	ErrFixTimeout          = errors.New("geolocation timed out")
)

// FixFailureReason maps a geolocation error to a short label for logs and metrics.
func FixFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrFixTimeout):
		return "timeout"
	case errors.Is(err, ErrLocationUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
