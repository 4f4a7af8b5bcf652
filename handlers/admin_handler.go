package handlers

import (
	"net/http"

	"github.com/Dosada05/padel-live/services"
)

type AdminHandler struct {
	processor services.TimeoutProcessor
}

func NewAdminHandler(p services.TimeoutProcessor) *AdminHandler {
	return &AdminHandler{processor: p}
}

// RunSweep запускает проход по таймаутам вне расписания. 409, если проход уже идет.
func (h *AdminHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.processor.Sweep(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"report": report}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
