package main

import (
	"net/http"

	"github.com/AdamBeresnev/clanhub/internal/httputil"
)

type disputeRequest struct {
	Reason string `json:"reason"`
}

func (app *application) createDispute(w http.ResponseWriter, r *http.Request) {
	matchID, ok := idParam(w, r)
	if !ok {
		return
	}
	var input disputeRequest
	if err := httputil.ReadJSON(w, r, &input); err != nil {
		httputil.Error(w, err)
		return
	}

	d, err := app.disputes.Create(r.Context(), currentUser(r), matchID, input.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

func (app *application) listDisputes(w http.ResponseWriter, r *http.Request) {
	matchID, ok := idParam(w, r)
	if !ok {
		return
	}
	list, err := app.disputes.ListDisputes(r.Context(), matchID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (app *application) getDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	d, err := app.disputes.GetDispute(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (app *application) reviewDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	d, err := app.disputes.SetUnderReview(r.Context(), currentUser(r), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

type resolveRequest struct {
	Approve  *bool  `json:"approve"`
	Response string `json:"response"`
}

func (app *application) resolveDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var input resolveRequest
	if err := httputil.ReadJSON(w, r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if input.Approve == nil {
		httputil.BadRequest(w, "approve is required", nil)
		return
	}

	d, err := app.disputes.Resolve(r.Context(), currentUser(r), id, *input.Approve, input.Response)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}
