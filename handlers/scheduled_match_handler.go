package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Dosada05/padel-live/middleware"
	"github.com/Dosada05/padel-live/services"
)

const dayLayout = "2006-01-02"

type ScheduledMatchHandler struct {
	scheduledMatchService services.ScheduledMatchService
	checkInService        services.CheckInService
	courtService          services.CourtService
}

func NewScheduledMatchHandler(
	sms services.ScheduledMatchService,
	cis services.CheckInService,
	cs services.CourtService,
) *ScheduledMatchHandler {
	return &ScheduledMatchHandler{
		scheduledMatchService: sms,
		checkInService:        cis,
		courtService:          cs,
	}
}

type createScheduledMatchRequest struct {
	TournamentID int     `json:"tournament_id"`
	Day          string  `json:"day"`
	PlannedTime  *string `json:"planned_time"`
	Pair1ID      int     `json:"pair1_id"`
	Pair2ID      int     `json:"pair2_id"`
	CategoryID   *int    `json:"category_id"`
	Format       *string `json:"format"`
}

func (req createScheduledMatchRequest) validate() (services.CreateScheduledMatchInput, map[string]string) {
	problems := make(map[string]string)
	if req.TournamentID <= 0 {
		problems["tournament_id"] = "must be a positive integer"
	}
	if req.Pair1ID <= 0 {
		problems["pair1_id"] = "must be a positive integer"
	}
	if req.Pair2ID <= 0 {
		problems["pair2_id"] = "must be a positive integer"
	}
	day, err := time.Parse(dayLayout, strings.TrimSpace(req.Day))
	if err != nil {
		problems["day"] = "must be a date in YYYY-MM-DD format"
	}
	return services.CreateScheduledMatchInput{
		TournamentID: req.TournamentID,
		Day:          day,
		PlannedTime:  req.PlannedTime,
		Pair1ID:      req.Pair1ID,
		Pair2ID:      req.Pair2ID,
		CategoryID:   req.CategoryID,
		Format:       req.Format,
	}, problems
}

func (h *ScheduledMatchHandler) ListByTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.scheduledMatchService.ListByTournament(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"scheduled_matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScheduledMatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createScheduledMatchRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	input, problems := req.validate()
	if len(problems) > 0 {
		failedValidationResponse(w, r, problems)
		return
	}

	details, err := h.scheduledMatchService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, details, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScheduledMatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "scheduledMatchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	details, err := h.scheduledMatchService.Get(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, details, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScheduledMatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "scheduledMatchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.scheduledMatchService.Delete(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// playerAction - общий путь для check-in, check-out и сброса отметки.
func (h *ScheduledMatchHandler) playerAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(smID, playerID int) (*services.CheckInResult, error),
) {
	smID, err := getIDFromURL(r, "scheduledMatchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := action(smID, playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScheduledMatchHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var checkedBy *int
	if userID, err := middleware.GetUserIDFromContext(r.Context()); err == nil {
		checkedBy = &userID
	}
	h.playerAction(w, r, func(smID, playerID int) (*services.CheckInResult, error) {
		return h.checkInService.CheckIn(r.Context(), smID, playerID, checkedBy)
	})
}

func (h *ScheduledMatchHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, func(smID, playerID int) (*services.CheckInResult, error) {
		return h.checkInService.CheckOut(r.Context(), smID, playerID)
	})
}

func (h *ScheduledMatchHandler) ResetPresence(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, func(smID, playerID int) (*services.CheckInResult, error) {
		return h.checkInService.ResetStatus(r.Context(), smID, playerID)
	})
}

func (h *ScheduledMatchHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "scheduledMatchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	sm, err := h.courtService.AutoAssign(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"scheduled_match": sm}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type courtRequest struct {
	CourtID *int `json:"court_id"`
}

func (h *ScheduledMatchHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "scheduledMatchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req courtRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if req.CourtID == nil || *req.CourtID <= 0 {
		failedValidationResponse(w, r, map[string]string{"court_id": "must be a positive integer"})
		return
	}

	sm, err := h.courtService.ManualAssign(r.Context(), id, *req.CourtID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"scheduled_match": sm}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScheduledMatchHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "scheduledMatchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	sm, err := h.courtService.UnassignCourt(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"scheduled_match": sm}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Start принимает пустое тело: тогда используется уже назначенный корт.
func (h *ScheduledMatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "scheduledMatchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req courtRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			badRequestResponse(w, r, err)
			return
		}
	}
	if req.CourtID != nil && *req.CourtID <= 0 {
		failedValidationResponse(w, r, map[string]string{"court_id": "must be a positive integer"})
		return
	}

	match, err := h.courtService.StartFromReady(r.Context(), id, req.CourtID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *ScheduledMatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "scheduledMatchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req cancelRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		failedValidationResponse(w, r, map[string]string{"reason": "must be provided"})
		return
	}

	sm, err := h.scheduledMatchService.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"scheduled_match": sm}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScheduledMatchHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "scheduledMatchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	sm, err := h.scheduledMatchService.Reactivate(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"scheduled_match": sm}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type confirmDefaultRequest struct {
	Note string `json:"note"`
}

func (h *ScheduledMatchHandler) ConfirmDefaultWin(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "scheduledMatchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req confirmDefaultRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			badRequestResponse(w, r, err)
			return
		}
	}

	result, err := h.scheduledMatchService.ConfirmDefaultWin(r.Context(), id, req.Note)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ScheduledMatchHandler) DismissPendingDQF(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "scheduledMatchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	sm, err := h.scheduledMatchService.DismissPendingDQF(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"scheduled_match": sm}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
