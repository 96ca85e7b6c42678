package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AdamBeresnev/clanhub/internal/apperr"
)

const maxBodyBytes = 1_048_576

type envelope map[string]any

func WriteJSON(w http.ResponseWriter, status int, data any) {
	js, err := json.Marshal(data)
	if err != nil {
		InternalServerError(w, "failed to encode response", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(js, '\n'))
}

// ReadJSON decodes a single JSON object from the body. Malformed input is a validation error.
func ReadJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var typeError *json.UnmarshalTypeError
		var tooLarge *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("%w: body contains badly-formed JSON (at character %d)", apperr.ErrValidation, syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%w: body contains badly-formed JSON", apperr.ErrValidation)
		case errors.As(err, &typeError):
			return fmt.Errorf("%w: body contains incorrect JSON type for field %q", apperr.ErrValidation, typeError.Field)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: body must not be empty", apperr.ErrValidation)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("%w: body contains unknown key %s", apperr.ErrValidation, strings.TrimPrefix(err.Error(), "json: unknown field "))
		case errors.As(err, &tooLarge):
			return fmt.Errorf("%w: body must not be larger than %d bytes", apperr.ErrValidation, maxBodyBytes)
		default:
			return fmt.Errorf("%w: %s", apperr.ErrValidation, err.Error())
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must only contain a single JSON value", apperr.ErrValidation)
	}
	return nil
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, envelope{"error": msg})
}

// Error writes err with the status of its kind. Unknown errors are logged and hidden behind a 500.
func Error(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		InternalServerError(w, "unhandled error", err)
		return
	}

	slog.Warn("request failed", "status", status, "error", err)
	errorJSON(w, status, apperr.Message(err))
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrInvalidState), errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	errorJSON(w, http.StatusInternalServerError, "internal server error")
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	errorJSON(w, http.StatusBadRequest, msg)
}

func Unauthorized(w http.ResponseWriter, msg string) {
	errorJSON(w, http.StatusUnauthorized, msg)
}
