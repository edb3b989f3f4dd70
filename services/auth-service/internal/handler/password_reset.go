package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/payload"
	"github.com/vasapolrittideah/identity-service/shared/security"
)

func (h *authHTTPHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req payload.EmailRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid password reset request")
		return
	}

	if err := h.passwordResetUsecase.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.fail(w, err, "failed to request password reset")
		return
	}

	writeMessage(w, "if an account exists for this email, a password reset link has been sent")
}

func (h *authHTTPHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req payload.ResetPasswordRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid reset password request")
		return
	}

	if err := h.passwordResetUsecase.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		h.fail(w, err, "failed to reset password")
		return
	}

	writeMessage(w, "password has been reset, sign in again on every device")
}

func (h *authHTTPHandler) ValidatePasswordResetToken(w http.ResponseWriter, r *http.Request) {
	if err := h.passwordResetUsecase.ValidatePasswordResetToken(r.Context(), chi.URLParam(r, "token")); err != nil {
		h.fail(w, err, "failed to validate password reset token")
		return
	}

	writeMessage(w, "password reset token is valid")
}

// PasswordStrength scores a candidate password. It is advisory and never rejects.
func (h *authHTTPHandler) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req payload.PasswordStrengthRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid password strength request")
		return
	}

	strength := security.CheckPasswordStrength(req.Password)
	feedback := strength.Feedback
	if feedback == nil {
		feedback = []string{}
	}

	writeJSON(w, http.StatusOK, payload.PasswordStrengthResponse{
		Score:    strength.Score,
		Level:    strength.Level,
		Feedback: feedback,
	})
}
