package handler

import (
	"net/http"

	"github.com/DioGolang/Zoned/internal/application/usecase/radar"
	"github.com/DioGolang/Zoned/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type Location struct {
	UpdateLocationUseCase radar.UpdateLocationUseCase
	Logger                logger.Logger
}

func NewLocationHandler(uc radar.UpdateLocationUseCase, log logger.Logger) *Location {
	return &Location{UpdateLocationUseCase: uc, Logger: log}
}

// Update accepts a position push for the user in the path. The directory is
// updated asynchronously, hence 202.
func (h *Location) Update(w http.ResponseWriter, r *http.Request) {
	var dto radar.UpdateLocationInput
	if status, err := decodeBody(w, r, DefaultMaxBodyBytes, &dto); err != nil {
		writeError(w, status, err)
		return
	}
	dto.UserID = chi.URLParam(r, "userID")

	if err := h.UpdateLocationUseCase.Execute(r.Context(), dto); err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.Logger.Error(r.Context(), "location update failed",
				logger.String("user_id", dto.UserID),
				logger.WithError(err))
		}
		writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
