package main

import (
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/clanhub/internal/httputil"
	"github.com/AdamBeresnev/clanhub/internal/live"
	"github.com/AdamBeresnev/clanhub/internal/middleware"
	"github.com/AdamBeresnev/clanhub/internal/service"
	users "github.com/AdamBeresnev/clanhub/internal/user"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

type application struct {
	logger      *slog.Logger
	hub         *live.Hub
	tournaments *service.TournamentService
	teams       *service.TeamService
	matches     *service.MatchService
	disputes    *service.DisputeService
}

func newRouter(app *application, jwtSecret []byte, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))

		r.Route("/tournaments", func(r chi.Router) {
			r.Post("/", app.createTournament)
			r.Get("/", app.listTournaments)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.getTournament)
				r.Post("/open", app.openRegistration)
				r.Post("/close", app.closeRegistration)
				r.Post("/start", app.startTournament)
				r.Post("/cancel", app.cancelTournament)
				r.Get("/bracket", app.getBracket)
				r.Get("/standings", app.getStandings)
				r.Get("/standings.xlsx", app.exportStandings)
				r.Post("/reminders", app.scheduleReminder)
				r.Get("/live", app.serveLive)

				r.Post("/teams", app.createTeam)
				r.Get("/teams", app.listTeams)
			})
		})

		r.Route("/teams/{id}", func(r chi.Router) {
			r.Get("/", app.getTeam)
			r.Post("/members", app.addMember)
			r.Delete("/members/{userID}", app.removeMember)
		})

		r.Route("/matches/{id}", func(r chi.Router) {
			r.Get("/", app.getMatch)
			r.Post("/report", app.reportMatch)
			r.Post("/verify", app.verifyMatch)
			r.Post("/forfeit", app.forfeitMatch)
			r.Post("/disputes", app.createDispute)
			r.Get("/disputes", app.listDisputes)
		})

		r.Route("/disputes/{id}", func(r chi.Router) {
			r.Get("/", app.getDispute)
			r.Post("/review", app.reviewDispute)
			r.Post("/resolve", app.resolveDispute)
		})
	})

	return r
}

// currentUser is only called behind Authenticate, which always sets the user.
func currentUser(r *http.Request) users.User {
	u, _ := middleware.GetUser(r.Context())
	return u
}

func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.BadRequest(w, "invalid id", err)
		return uuid.Nil, false
	}
	return id, true
}
