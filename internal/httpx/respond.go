// Package httpx provides JSON response helpers and the single place where
// domain errors become HTTP status codes.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"hyperadmin/internal/apperr"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Error: msg})
}

// RespondError maps err onto a status code. Unclassified errors are logged
// and answered with a generic 500 so store details never reach the client.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if ve, ok := apperr.AsValidation(err); ok {
		JSON(w, http.StatusUnprocessableEntity, ErrorBody{Error: ve.Error(), Field: ve.Field})
		return
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", "Bearer")
		Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		Error(w, http.StatusForbidden, err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// DecodeJSON reads a JSON body into target. Malformed bodies and type
// mismatches come back as *apperr.ValidationError.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(target)
	if err == nil {
		// Anything after the first value, even garbage, is rejected.
		if extra := dec.Decode(&struct{}{}); !errors.Is(extra, io.EOF) {
			return apperr.Invalid("", "request body must contain a single JSON value")
		}
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var maxErr *http.MaxBytesError
	var timeErr *time.ParseError
	switch {
	case errors.Is(err, io.EOF):
		return apperr.Invalid("", "request body is empty")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return apperr.Invalid(field, "must be of type "+typeErr.Type.String())
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return apperr.Invalid("", "request body is not valid JSON")
	case errors.As(err, &maxErr):
		return apperr.Invalid("", "request body is too large")
	case errors.As(err, &timeErr):
		return apperr.Invalid("", "timestamps must be RFC3339")
	default:
		return apperr.Invalid("", err.Error())
	}
}
