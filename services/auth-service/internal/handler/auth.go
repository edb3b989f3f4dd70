package handler

import (
	"net/http"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/payload"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/usecase"
)

func (h *authHTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req payload.RegisterRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid register request")
		return
	}

	res, err := h.authUsecase.Register(r.Context(), usecase.RegisterParams{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.fail(w, err, "failed to register user")
		return
	}

	writeJSON(w, http.StatusCreated, payload.AuthResponse{
		User:         payload.NewUserResponse(res.User),
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	})
}

func (h *authHTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req payload.LoginRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid login request")
		return
	}

	res, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(w, err, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, payload.AuthResponse{
		User:         payload.NewUserResponse(res.User),
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	})
}

func (h *authHTTPHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req payload.RefreshTokenRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid refresh token request")
		return
	}

	tokens, err := h.authUsecase.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, err, "failed to refresh access token")
		return
	}

	writeJSON(w, http.StatusOK, payload.TokensResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

func (h *authHTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req payload.LogoutRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, err, "invalid logout request")
		return
	}

	if err := h.authUsecase.Logout(r.Context(), principalFrom(r).UserID, req.RefreshToken); err != nil {
		h.fail(w, err, "failed to logout")
		return
	}

	writeMessage(w, "logged out")
}

func (h *authHTTPHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.authUsecase.LogoutAll(r.Context(), principalFrom(r).UserID); err != nil {
		h.fail(w, err, "failed to logout from all devices")
		return
	}

	writeMessage(w, "logged out from all devices")
}

func (h *authHTTPHandler) Check(w http.ResponseWriter, r *http.Request) {
	user, err := h.accountUsecase.GetProfile(r.Context(), principalFrom(r).UserID)
	if err != nil {
		h.fail(w, err, "failed to load principal")
		return
	}

	writeJSON(w, http.StatusOK, payload.PrincipalResponse{
		Authenticated: true,
		User:          payload.NewUserResponse(user),
	})
}
