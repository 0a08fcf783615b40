package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"decorbook/internal/apperr"
)

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Error: APIError{Code: code, Message: message},
	})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAmountMismatch:
		return http.StatusUnprocessableEntity
	case apperr.KindInvalidTransition, apperr.KindNotPayable, apperr.KindAlreadyPaid,
		apperr.KindTerminalState, apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteAppError writes typed domain errors with their own code and message.
// Anything else is logged and reported as INTERNAL without details.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	var e *apperr.Error
	if errors.As(err, &e) {
		msg := e.Message
		if msg == "" {
			msg = string(e.Kind)
		}
		WriteError(w, StatusFor(e.Kind), string(e.Kind), msg)
		return
	}
	log.Printf("internal error method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}
