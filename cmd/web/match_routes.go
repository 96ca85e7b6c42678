package main

import (
	"net/http"

	"github.com/AdamBeresnev/clanhub/internal/httputil"
	"github.com/google/uuid"
)

func (app *application) getMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	m, err := app.matches.GetMatch(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

type reportRequest struct {
	ScoreA *int `json:"score_a"`
	ScoreB *int `json:"score_b"`
}

func (app *application) reportMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var input reportRequest
	if err := httputil.ReadJSON(w, r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if input.ScoreA == nil || input.ScoreB == nil {
		httputil.BadRequest(w, "score_a and score_b are required", nil)
		return
	}

	m, err := app.matches.Report(r.Context(), currentUser(r), id, *input.ScoreA, *input.ScoreB)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (app *application) verifyMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	m, err := app.matches.Verify(r.Context(), currentUser(r), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

type forfeitRequest struct {
	WinnerTeamID uuid.UUID `json:"winner_team_id"`
}

func (app *application) forfeitMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var input forfeitRequest
	if err := httputil.ReadJSON(w, r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	m, err := app.matches.Forfeit(r.Context(), currentUser(r), id, input.WinnerTeamID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}
