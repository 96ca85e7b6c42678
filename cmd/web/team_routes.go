package main

import (
	"net/http"

	"github.com/AdamBeresnev/clanhub/internal/httputil"
	"github.com/AdamBeresnev/clanhub/internal/service"
	"github.com/go-chi/chi/v5"
)

func (app *application) createTeam(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := idParam(w, r)
	if !ok {
		return
	}
	var input service.CreateTeamInput
	if err := httputil.ReadJSON(w, r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	team, err := app.teams.CreateTeam(r.Context(), currentUser(r), tournamentID, input)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, team)
}

func (app *application) listTeams(w http.ResponseWriter, r *http.Request) {
	tournamentID, ok := idParam(w, r)
	if !ok {
		return
	}
	teams, err := app.teams.ListTeams(r.Context(), tournamentID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, teams)
}

func (app *application) getTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	team, err := app.teams.GetTeam(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, team)
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
}

func (app *application) addMember(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var input addMemberRequest
	if err := httputil.ReadJSON(w, r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	team, err := app.teams.AddMember(r.Context(), currentUser(r), id, input.UserID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, team)
}

func (app *application) removeMember(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := app.teams.RemoveMember(r.Context(), currentUser(r), id, chi.URLParam(r, "userID")); err != nil {
		httputil.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
