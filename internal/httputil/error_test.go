package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AdamBeresnev/clanhub/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorStatus(t *testing.T) {
	testCases := []struct {
		err    error
		status int
		body   string
	}{
		{err: fmt.Errorf("%w: match not found", apperr.ErrNotFound), status: http.StatusNotFound, body: `{"error":"match not found"}`},
		{err: fmt.Errorf("%w: scores must differ", apperr.ErrValidation), status: http.StatusBadRequest, body: `{"error":"scores must differ"}`},
		{err: apperr.ErrUnauthorized, status: http.StatusUnauthorized, body: `{"error":"authentication required"}`},
		{err: fmt.Errorf("%w: only captains may report", apperr.ErrForbidden), status: http.StatusForbidden, body: `{"error":"only captains may report"}`},
		{err: fmt.Errorf("%w: match is verified", apperr.ErrInvalidState), status: http.StatusConflict, body: `{"error":"match is verified"}`},
		{err: fmt.Errorf("%w: team already exists", apperr.ErrConflict), status: http.StatusConflict, body: `{"error":"team already exists"}`},
		{err: errors.New("disk on fire"), status: http.StatusInternalServerError, body: `{"error":"internal server error"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	testCases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"Alpha"}`},
		{name: "empty", body: ``, wantErr: true},
		{name: "malformed", body: `{"name":`, wantErr: true},
		{name: "unknown field", body: `{"nme":"Alpha"}`, wantErr: true},
		{name: "wrong type", body: `{"name":5}`, wantErr: true},
		{name: "two values", body: `{"name":"a"}{"name":"b"}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst payload
			err := ReadJSON(httptest.NewRecorder(), req, &dst)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Alpha", dst.Name)
		})
	}
}
