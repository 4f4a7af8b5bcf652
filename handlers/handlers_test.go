package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dosada05/padel-live/models"
	"github.com/Dosada05/padel-live/repositories"
	"github.com/Dosada05/padel-live/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store  *repositories.MemoryStore
	router chi.Router
}

func newTestEnv(t *testing.T, courts ...*models.Court) *testEnv {
	t.Helper()
	store := repositories.NewMemoryStore()
	store.AddTournament(&models.Tournament{ID: 1, Name: "Open Vitacura", ClubID: 10})
	store.AddPair(&models.Pair{ID: 101, TournamentID: 1, Player1ID: 1, Player2ID: 2})
	store.AddPair(&models.Pair{ID: 102, TournamentID: 1, Player1ID: 3, Player2ID: 4})
	for _, c := range courts {
		store.AddCourt(c)
	}

	courtService := services.NewCourtService(store, nil, nil, 0, nil)
	smh := NewScheduledMatchHandler(
		services.NewScheduledMatchService(store, nil, nil, nil),
		services.NewCheckInService(store, nil, nil, nil),
		courtService,
	)
	mh := NewMatchHandler(services.NewMatchService(store, nil, nil, nil))
	ch := NewCourtHandler(courtService)

	r := chi.NewRouter()
	r.Post("/scheduled-matches", smh.Create)
	r.Get("/scheduled-matches/{scheduledMatchID}", smh.Get)
	r.Post("/scheduled-matches/{scheduledMatchID}/players/{playerID}/check-in", smh.CheckIn)
	r.Post("/scheduled-matches/{scheduledMatchID}/auto-assign", smh.AutoAssign)
	r.Post("/scheduled-matches/{scheduledMatchID}/assign", smh.Assign)
	r.Post("/scheduled-matches/{scheduledMatchID}/start", smh.Start)
	r.Post("/scheduled-matches/{scheduledMatchID}/cancel", smh.Cancel)
	r.Get("/tournaments/{tournamentID}/assignable-courts", ch.ListAssignable)
	r.Get("/matches/guest/{token}", mh.GuestGet)
	r.Post("/matches/{matchID}/finish", mh.Finish)

	return &testEnv{store: store, router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func (e *testEnv) createMatch(t *testing.T) int {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/scheduled-matches", map[string]interface{}{
		"tournament_id": 1,
		"day":           "2025-10-20",
		"planned_time":  "10:00",
		"pair1_id":      101,
		"pair2_id":      102,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var details struct {
		ScheduledMatch struct {
			ID     int    `json:"id"`
			Status string `json:"status"`
		} `json:"scheduled_match"`
		Players []json.RawMessage `json:"players"`
	}
	decode(t, rec, &details)
	assert.Equal(t, "scheduled", details.ScheduledMatch.Status)
	assert.Len(t, details.Players, 4)
	return details.ScheduledMatch.ID
}

func TestScheduledMatchHandler_CreateValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{name: "bad day", body: map[string]interface{}{"tournament_id": 1, "day": "20/10/2025", "pair1_id": 101, "pair2_id": 102}, want: http.StatusUnprocessableEntity},
		{name: "same pair", body: map[string]interface{}{"tournament_id": 1, "day": "2025-10-20", "pair1_id": 101, "pair2_id": 101}, want: http.StatusUnprocessableEntity},
		{name: "bad planned time", body: map[string]interface{}{"tournament_id": 1, "day": "2025-10-20", "planned_time": "25:00", "pair1_id": 101, "pair2_id": 102}, want: http.StatusUnprocessableEntity},
		{name: "unknown pair", body: map[string]interface{}{"tournament_id": 1, "day": "2025-10-20", "pair1_id": 101, "pair2_id": 999}, want: http.StatusNotFound},
		{name: "unknown field", body: map[string]interface{}{"tournament_id": 1, "court": 3}, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/scheduled-matches", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestScheduledMatchHandler_AutoAssignWithoutCourts(t *testing.T) {
	env := newTestEnv(t, &models.Court{ID: 1, Name: "Cancha 1", ClubID: 10, IsAvailable: false})
	id := env.createMatch(t)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/scheduled-matches/%d/auto-assign", id), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "no hay canchas disponibles", body["error"])
}

func TestScheduledMatchHandler_LiveFlow(t *testing.T) {
	env := newTestEnv(t,
		&models.Court{ID: 1, Name: "Cancha 1", ClubID: 10, IsAvailable: true},
		&models.Court{ID: 2, Name: "Cancha 2", ClubID: 10, IsAvailable: true},
	)
	id := env.createMatch(t)

	for _, playerID := range []int{1, 2, 3, 4} {
		rec := env.do(t, http.MethodPost, fmt.Sprintf("/scheduled-matches/%d/players/%d/check-in", id, playerID), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/scheduled-matches/%d/assign", id), map[string]int{"court_id": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/scheduled-matches/%d/start", id), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var started struct {
		Match struct {
			ID          int    `json:"id"`
			CourtID     int    `json:"court_id"`
			AccessToken string `json:"access_token"`
		} `json:"match"`
	}
	decode(t, rec, &started)
	assert.Equal(t, 2, started.Match.CourtID)
	require.NotEmpty(t, started.Match.AccessToken)

	rec = env.do(t, http.MethodGet, "/matches/guest/"+started.Match.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/scheduled-matches/%d/cancel", id), map[string]string{"reason": "lluvia"})
	assert.Equal(t, http.StatusConflict, rec.Code, "a playing match cannot be cancelled")

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/matches/%d/finish", started.Match.ID), map[string]interface{}{
		"score": [][2]int{{6, 4}, {6, 2}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	court, err := env.store.GetCourt(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, court.IsAvailable)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/scheduled-matches/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var details struct {
		ScheduledMatch struct {
			Status string `json:"status"`
		} `json:"scheduled_match"`
	}
	decode(t, rec, &details)
	assert.Equal(t, "completed", details.ScheduledMatch.Status)
}

func TestScheduledMatchHandler_BadInput(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/scheduled-matches/abc/auto-assign", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/scheduled-matches/1/assign", map[string]int{"court_id": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/scheduled-matches/1/cancel", map[string]string{"reason": "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/scheduled-matches/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/matches/guest/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMapServiceErrorToHTTP(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{err: services.ErrNoCourtsAvailable, status: http.StatusNotFound, message: "no hay canchas disponibles"},
		{err: fmt.Errorf("wrap: %w", services.ErrCourtNotAvailable), status: http.StatusConflict, message: "no se pudo asignar la cancha"},
		{err: services.ErrScheduledMatchNotFound, status: http.StatusNotFound},
		{err: services.ErrMatchNotFound, status: http.StatusNotFound},
		{err: services.ErrInvalidMatchState, status: http.StatusConflict},
		{err: services.ErrNotPendingDQF, status: http.StatusConflict},
		{err: services.ErrSweepInProgress, status: http.StatusConflict},
		{err: fmt.Errorf("%w: day is required", services.ErrValidationFailed), status: http.StatusBadRequest},
		{err: services.ErrInvalidScore, status: http.StatusUnprocessableEntity},
		{err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			mapServiceErrorToHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, rec.Code)
			if tt.message != "" {
				var body map[string]string
				decode(t, rec, &body)
				assert.Equal(t, tt.message, body["error"])
			}
		})
	}
}

func TestGetIDFromURL(t *testing.T) {
	tests := []struct {
		path    string
		want    int
		wantErr bool
	}{
		{path: "/items/7", want: 7},
		{path: "/items/0", wantErr: true},
		{path: "/items/-3", wantErr: true},
		{path: "/items/x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var (
				got int
				err error
			)
			r := chi.NewRouter()
			r.Get("/items/{itemID}", func(w http.ResponseWriter, r *http.Request) {
				got, err = getIDFromURL(r, "itemID")
			})
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
