package handlers

import (
	"net/http"

	"github.com/Dosada05/padel-live/services"
)

type CourtHandler struct {
	courtService services.CourtService
}

func NewCourtHandler(cs services.CourtService) *CourtHandler {
	return &CourtHandler{courtService: cs}
}

// ListAssignable - свободные корты клуба турнира и корты, которые скоро освободятся.
func (h *CourtHandler) ListAssignable(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	courts, err := h.courtService.ListAssignableCourts(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"courts": courts}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CourtHandler) Release(w http.ResponseWriter, r *http.Request) {
	courtID, err := getIDFromURL(r, "courtID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	court, err := h.courtService.ReleaseCourt(r.Context(), courtID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"court": court}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
