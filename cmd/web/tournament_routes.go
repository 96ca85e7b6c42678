package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/AdamBeresnev/clanhub/internal/httputil"
	"github.com/AdamBeresnev/clanhub/internal/report"
	"github.com/AdamBeresnev/clanhub/internal/service"
	users "github.com/AdamBeresnev/clanhub/internal/user"
	"github.com/google/uuid"
)

func (app *application) createTournament(w http.ResponseWriter, r *http.Request) {
	var input service.CreateTournamentInput
	if err := httputil.ReadJSON(w, r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	t, err := app.tournaments.CreateTournament(r.Context(), currentUser(r), input)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (app *application) listTournaments(w http.ResponseWriter, r *http.Request) {
	state := bracket.TournamentState(r.URL.Query().Get("state"))
	list, err := app.tournaments.ListTournaments(r.Context(), state)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (app *application) getTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	t, err := app.tournaments.GetTournament(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

type tournamentTransition func(ctx context.Context, u users.User, id uuid.UUID) (*bracket.Tournament, error)

func (app *application) transitionTournament(w http.ResponseWriter, r *http.Request, transition tournamentTransition) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	t, err := transition(r.Context(), currentUser(r), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (app *application) openRegistration(w http.ResponseWriter, r *http.Request) {
	app.transitionTournament(w, r, app.tournaments.OpenRegistration)
}

func (app *application) closeRegistration(w http.ResponseWriter, r *http.Request) {
	app.transitionTournament(w, r, app.tournaments.CloseRegistration)
}

func (app *application) startTournament(w http.ResponseWriter, r *http.Request) {
	app.transitionTournament(w, r, app.tournaments.Start)
}

func (app *application) cancelTournament(w http.ResponseWriter, r *http.Request) {
	app.transitionTournament(w, r, app.tournaments.Cancel)
}

func (app *application) getBracket(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	view, err := app.tournaments.GetBracket(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (app *application) getStandings(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	view, err := app.tournaments.GetStandings(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (app *application) exportStandings(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	view, err := app.tournaments.GetStandings(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	filename := strings.ReplaceAll(strings.ToLower(view.Tournament.Name), " ", "-")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+"-standings.xlsx"))
	if err := report.WriteStandings(w, view.Tournament, view.Standings); err != nil {
		app.logger.Error("failed to write standings export", "tournament_id", id, "error", err)
	}
}

type reminderRequest struct {
	Message string    `json:"message"`
	RunAt   time.Time `json:"run_at"`
}

func (app *application) scheduleReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var input reminderRequest
	if err := httputil.ReadJSON(w, r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	job, err := app.tournaments.ScheduleReminder(r.Context(), currentUser(r), id, input.Message, input.RunAt)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, job)
}

func (app *application) serveLive(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if _, err := app.tournaments.GetTournament(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}
	app.hub.Serve(w, r, id)
}
