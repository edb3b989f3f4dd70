package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/model"
	"github.com/vasapolrittideah/identity-service/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/identity-service/shared/middleware"
	"github.com/vasapolrittideah/identity-service/shared/validator"
)

const requestTimeout = 30 * time.Second

type authHTTPHandler struct {
	authUsecase          usecase.AuthUsecase
	passwordResetUsecase usecase.PasswordResetUsecase
	accountUsecase       usecase.AccountUsecase
	validator            *validator.Validator
	logger               *zerolog.Logger
}

// NewAuthHTTPHandler builds the HTTP routes of the auth service.
func NewAuthHTTPHandler(
	authUsecase usecase.AuthUsecase,
	passwordResetUsecase usecase.PasswordResetUsecase,
	accountUsecase usecase.AccountUsecase,
	validator *validator.Validator,
	logger *zerolog.Logger,
) http.Handler {
	h := &authHTTPHandler{
		authUsecase:          authUsecase,
		passwordResetUsecase: passwordResetUsecase,
		accountUsecase:       accountUsecase,
		validator:            validator,
		logger:               logger,
	}

	return h.routes()
}

func (h *authHTTPHandler) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	authenticated := middleware.NewBearerAuth(h.authUsecase.Authenticate, h.authError)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh-token", h.RefreshToken)
		r.Post("/password-strength", h.PasswordStrength)

		r.Get("/verify-email/{token}", h.VerifyEmail)
		r.Post("/verify-email/resend", h.ResendVerification)

		r.Post("/password-reset", h.RequestPasswordReset)
		r.Get("/password-reset/{token}", h.ValidatePasswordResetToken)
		r.Post("/password-reset/{token}", h.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Get("/check", h.Check)
			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)
			r.Post("/logout", h.Logout)
			r.Post("/logout-all", h.LogoutAll)
			r.Post("/change-password", h.ChangePassword)
			r.Delete("/account", h.DeleteAccount)

			r.With(requireEmailVerified).Get("/verified-check", h.Check)
			r.With(requireRole(model.RoleAdmin)).Get("/admin/users", h.ListUsers)
		})
	})

	return r
}

// requireRole rejects principals that hold none of roles.
func requireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := middleware.PrincipalFrom[*usecase.Principal](r.Context())
			if !ok || !p.HasRole(roles...) {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireEmailVerified rejects principals whose email address is not verified yet.
func requireEmailVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.PrincipalFrom[*usecase.Principal](r.Context())
		if !ok || !p.EmailVerified {
			writeError(w, http.StatusForbidden, "email address is not verified")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *authHTTPHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.logger.Info().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func principalFrom(r *http.Request) *usecase.Principal {
	p, _ := middleware.PrincipalFrom[*usecase.Principal](r.Context())
	return p
}
