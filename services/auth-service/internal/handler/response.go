package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/payload"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/identity-service/shared/middleware"
	"github.com/vasapolrittideah/identity-service/shared/validator"
)

const maxBodyBytes = 1 << 20

var errMalformedBody = errors.New("malformed request body")

// decode reads a JSON body into dst and validates it.
func (h *authHTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return errMalformedBody
	}

	return h.validator.Struct(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, payload.ErrorResponse{Error: message})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, payload.MessageResponse{Message: message})
}

// fail maps a use case error to a response. Unexpected errors are logged and hidden.
func (h *authHTTPHandler) fail(w http.ResponseWriter, err error, msg string) {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, payload.ErrorResponse{Error: "validation failed", Fields: verr.Fields})
		return
	}

	status, message := http.StatusInternalServerError, "something went wrong"

	switch {
	case errors.Is(err, errMalformedBody):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, usecase.ErrDuplicateEmail):
		// Does not say which identity key collided, so a signup cannot be used to discover registered emails.
		status, message = http.StatusConflict, "unable to register with the provided details"
	case errors.Is(err, usecase.ErrDuplicateUsername):
		status, message = http.StatusConflict, "username is already taken"
	case errors.Is(err, usecase.ErrWeakPassword):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, usecase.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, usecase.ErrAccountLocked):
		status, message = http.StatusLocked, "account is temporarily locked, try again later"
	case errors.Is(err, usecase.ErrAccountInactive):
		status, message = http.StatusForbidden, "account is inactive"
	case errors.Is(err, usecase.ErrExpiredToken):
		status, message = http.StatusUnauthorized, "token has expired"
	case errors.Is(err, usecase.ErrInvalidToken):
		status, message = http.StatusUnauthorized, "invalid token"
	case errors.Is(err, usecase.ErrInvalidOrExpiredToken):
		status, message = http.StatusBadRequest, "invalid or expired token"
	case errors.Is(err, usecase.ErrUserNotFound):
		status, message = http.StatusNotFound, "user not found"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg(msg)
	} else {
		h.logger.Debug().Err(err).Msg(msg)
	}

	writeError(w, status, message)
}

// authError is the response of the bearer middleware.
func (h *authHTTPHandler) authError(w http.ResponseWriter, _ *http.Request, err error) {
	switch {
	case errors.Is(err, middleware.ErrMissingAuthorization), errors.Is(err, middleware.ErrInvalidAuthorization):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		h.fail(w, err, "failed to authenticate request")
	}
}
