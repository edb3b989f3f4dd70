package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/payload"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/usecase"
)

const maxListLimit = 100

var sortableFields = map[string]bool{
	"created_at": true,
	"email":      true,
	"username":   true,
	"last_login": true,
}

func (h *authHTTPHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.accountUsecase.VerifyEmail(r.Context(), chi.URLParam(r, "token")); err != nil {
		h.fail(w, err, "failed to verify email")
		return
	}

	writeMessage(w, "email address verified")
}

func (h *authHTTPHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req payload.EmailRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid resend verification request")
		return
	}

	if err := h.accountUsecase.ResendVerification(r.Context(), req.Email); err != nil {
		h.fail(w, err, "failed to resend verification email")
		return
	}

	writeMessage(w, "if the email belongs to an unverified account, a verification link has been sent")
}

func (h *authHTTPHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.accountUsecase.GetProfile(r.Context(), principalFrom(r).UserID)
	if err != nil {
		h.fail(w, err, "failed to get profile")
		return
	}

	writeJSON(w, http.StatusOK, payload.NewUserResponse(user))
}

func (h *authHTTPHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req payload.UpdateProfileRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid update profile request")
		return
	}

	params := usecase.UpdateProfileParams{Username: req.Username}
	if p := req.Profile; p != nil {
		params.Profile = &usecase.ProfileUpdate{
			FirstName:        p.FirstName,
			LastName:         p.LastName,
			Avatar:           p.Avatar,
			Bio:              p.Bio,
			PhoneNumber:      p.PhoneNumber,
			DateOfBirth:      p.DateOfBirth,
			Address:          p.Address,
			EmergencyContact: p.EmergencyContact,
		}
	}
	if p := req.Preferences; p != nil {
		params.Preferences = &usecase.PreferencesUpdate{
			Language:           p.Language,
			Timezone:           p.Timezone,
			EmailNotifications: p.EmailNotifications,
			PushNotifications:  p.PushNotifications,
		}
	}

	user, err := h.accountUsecase.UpdateProfile(r.Context(), principalFrom(r).UserID, params)
	if err != nil {
		h.fail(w, err, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, payload.NewUserResponse(user))
}

func (h *authHTTPHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req payload.ChangePasswordRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid change password request")
		return
	}

	err := h.accountUsecase.ChangePassword(r.Context(), principalFrom(r).UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.fail(w, err, "failed to change password")
		return
	}

	writeMessage(w, "password changed, sign in again on every device")
}

func (h *authHTTPHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req payload.DeleteAccountRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid delete account request")
		return
	}

	if err := h.accountUsecase.DeleteAccount(r.Context(), principalFrom(r).UserID, req.Password); err != nil {
		h.fail(w, err, "failed to delete account")
		return
	}

	writeMessage(w, "account deleted")
}

func (h *authHTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params, ok := parseFilterUsers(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid query parameters")
		return
	}

	users, err := h.accountUsecase.ListUsers(r.Context(), params)
	if err != nil {
		h.fail(w, err, "failed to list users")
		return
	}

	out := make([]*payload.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, payload.NewUserResponse(u))
	}

	writeJSON(w, http.StatusOK, out)
}

func parseFilterUsers(r *http.Request) (repository.FilterUsersParams, bool) {
	q := r.URL.Query()
	var params repository.FilterUsersParams

	if v := q.Get("email"); v != "" {
		params.Email = &v
	}
	if v := q.Get("role"); v != "" {
		role, err := model.ParseRole(v)
		if err != nil {
			return params, false
		}
		params.Role = &role
	}
	for key, dst := range map[string]**bool{"verified": &params.Verified, "active": &params.Active} {
		if v := q.Get(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return params, false
			}
			*dst = &b
		}
	}
	for key, dst := range map[string]*uint64{"limit": &params.Limit, "offset": &params.Offset} {
		if v := q.Get(key); v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return params, false
			}
			*dst = n
		}
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}
	if v := q.Get("sort_by"); v != "" {
		if !sortableFields[v] {
			return params, false
		}
		params.SortBy = &v
	}
	params.SortDesc = q.Get("order") == "desc"

	return params, true
}
