package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/DioGolang/Zoned/internal/application/usecase/radar"
	"github.com/DioGolang/Zoned/internal/domain/entity"
	"github.com/DioGolang/Zoned/pkg/logger"
)

var errLatLng = errors.New("lat and lng query parameters are required numbers")

type Radar struct {
	ComputeNearbyUseCase   radar.ComputeNearbyUseCase
	DirectoryNearbyUseCase radar.DirectoryNearbyUseCase
	Logger                 logger.Logger
	MaxBodyBytes           int64
}

func NewRadarHandler(compute radar.ComputeNearbyUseCase, directory radar.DirectoryNearbyUseCase, log logger.Logger) *Radar {
	return &Radar{
		ComputeNearbyUseCase:   compute,
		DirectoryNearbyUseCase: directory,
		Logger:                 log,
		MaxBodyBytes:           DefaultMaxBodyBytes,
	}
}

// Nearby filters the users given in the request body, which is capped at
// MaxBodyBytes.
func (h *Radar) Nearby(w http.ResponseWriter, r *http.Request) {
	var dto radar.NearbyInput
	if status, err := decodeBody(w, r, h.MaxBodyBytes, &dto); err != nil {
		writeError(w, status, err)
		return
	}

	output, err := h.ComputeNearbyUseCase.Execute(r.Context(), dto)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, output)
}

// Directory filters the users the directory knows around lat/lng.
func (h *Radar) Directory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, errLatLng)
		return
	}
	radius := entity.DefaultRadiusFeet
	if raw := q.Get("radius_ft"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid radius_ft: %w", err))
			return
		}
		radius = v
	}

	output, err := h.DirectoryNearbyUseCase.Execute(r.Context(), radar.DirectoryNearbyInput{
		Origin:     radar.PositionDTO{Lat: lat, Lng: lng},
		RadiusFeet: radius,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, output)
}

func (h *Radar) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(r.Context(), "radar request failed", logger.Int("status", status), logger.WithError(err))
	}
	writeError(w, status, err)
}
