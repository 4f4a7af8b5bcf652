package handlers

import (
	"net/http"
	"strings"

	"github.com/Dosada05/padel-live/models"
	"github.com/Dosada05/padel-live/services"
	"github.com/go-chi/chi/v5"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

type scoreRequest struct {
	Score models.Score `json:"score"`
}

func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req scoreRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.UpdateScore(r.Context(), id, req.Score)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) Finish(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.FinishMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.WinnerID != nil && *input.WinnerID <= 0 {
		failedValidationResponse(w, r, map[string]string{"winner_id": "must be a positive integer"})
		return
	}

	result, err := h.matchService.FinishMatch(r.Context(), id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func guestToken(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "token"))
}

// GuestGet отдает live-матч по ссылке для гостей, без авторизации.
func (h *MatchHandler) GuestGet(w http.ResponseWriter, r *http.Request) {
	token := guestToken(r)
	if token == "" {
		notFoundResponse(w, r, "")
		return
	}

	match, err := h.matchService.GetByAccessToken(r.Context(), token)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) GuestUpdateScore(w http.ResponseWriter, r *http.Request) {
	token := guestToken(r)
	if token == "" {
		notFoundResponse(w, r, "")
		return
	}

	var req scoreRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.UpdateScoreByToken(r.Context(), token, req.Score)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
