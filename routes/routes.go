package routes

import (
	"net/http"
	"time"

	"github.com/Dosada05/padel-live/handlers"
	"github.com/Dosada05/padel-live/middleware"
	"github.com/Dosada05/padel-live/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
)

type Handlers struct {
	ScheduledMatch *handlers.ScheduledMatchHandler
	Court          *handlers.CourtHandler
	Match          *handlers.MatchHandler
	Admin          *handlers.AdminHandler
	WebSocket      *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// WebSocket живет дольше любого таймаута, поэтому без Timeout middleware
	router.Get("/ws", h.WebSocket.ServeGlobal)
	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeTournament)

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(15 * time.Second))

		// Публичные маршруты для гостевой ссылки на матч
		r.Get("/matches/guest/{token}", h.Match.GuestGet)
		r.Put("/matches/guest/{token}/score", h.Match.GuestUpdateScore)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(opts.JWTSecret))

			// Судьи и организаторы ведут матчи дня
			r.Group(func(r chi.Router) {
				r.Use(middleware.Authorize(models.RoleAdmin, models.RoleOrganizer, models.RoleReferee))

				r.Get("/tournaments/{tournamentID}/scheduled-matches", h.ScheduledMatch.ListByTournament)
				r.Get("/tournaments/{tournamentID}/assignable-courts", h.Court.ListAssignable)

				r.Post("/scheduled-matches", h.ScheduledMatch.Create)
				r.Get("/scheduled-matches/{scheduledMatchID}", h.ScheduledMatch.Get)
				r.Post("/scheduled-matches/{scheduledMatchID}/players/{playerID}/check-in", h.ScheduledMatch.CheckIn)
				r.Post("/scheduled-matches/{scheduledMatchID}/players/{playerID}/check-out", h.ScheduledMatch.CheckOut)
				r.Post("/scheduled-matches/{scheduledMatchID}/players/{playerID}/reset", h.ScheduledMatch.ResetPresence)
				r.Post("/scheduled-matches/{scheduledMatchID}/auto-assign", h.ScheduledMatch.AutoAssign)
				r.Post("/scheduled-matches/{scheduledMatchID}/assign", h.ScheduledMatch.Assign)
				r.Post("/scheduled-matches/{scheduledMatchID}/unassign", h.ScheduledMatch.Unassign)
				r.Post("/scheduled-matches/{scheduledMatchID}/start", h.ScheduledMatch.Start)

				r.Get("/matches/{matchID}", h.Match.Get)
				r.Put("/matches/{matchID}/score", h.Match.UpdateScore)
				r.Post("/matches/{matchID}/finish", h.Match.Finish)

				r.Post("/courts/{courtID}/release", h.Court.Release)
			})

			// Административные действия
			r.Group(func(r chi.Router) {
				r.Use(middleware.Authorize(models.RoleAdmin, models.RoleOrganizer))

				r.Delete("/scheduled-matches/{scheduledMatchID}", h.ScheduledMatch.Delete)
				r.Post("/scheduled-matches/{scheduledMatchID}/cancel", h.ScheduledMatch.Cancel)
				r.Post("/scheduled-matches/{scheduledMatchID}/reactivate", h.ScheduledMatch.Reactivate)
				r.Post("/scheduled-matches/{scheduledMatchID}/confirm-default", h.ScheduledMatch.ConfirmDefaultWin)
				r.Post("/scheduled-matches/{scheduledMatchID}/dismiss-dqf", h.ScheduledMatch.DismissPendingDQF)

				r.Post("/admin/timeouts/sweep", h.Admin.RunSweep)
			})
		})
	})
}
