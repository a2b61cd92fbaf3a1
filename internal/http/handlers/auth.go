package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/middleware"
)

type AuthHandler struct {
	Svc core.AuthService
	Log *slog.Logger
	// Limit wraps the credential endpoints; nil disables it.
	Limit func(http.Handler) http.Handler
}

func NewAuthHandler(svc core.AuthService, limit func(http.Handler) http.Handler, log *slog.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Log: log, Limit: limit}
}

func (h *AuthHandler) Mount(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.Limit != nil {
				r.Use(h.Limit)
			}
			r.Post("/register/otp", h.RequestRegisterOTP)
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
			r.Post("/password/otp", h.RequestPasswordReset)
			r.Post("/password/reset", h.ResetPassword)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
			r.Patch("/me", h.UpdateProfile)
			r.Post("/password/change", h.ChangePassword)
		})
	})
}

type emailBody struct {
	Email string `json:"email"`
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

type messageBody struct {
	Message string `json:"message"`
}

// RequestRegisterOTP mails a sign-up code.
// 202; 400 bad email; 409 email taken; 429 asked again too soon.
func (h *AuthHandler) RequestRegisterOTP(w http.ResponseWriter, r *http.Request) {
	var in emailBody
	if !decode(w, r, &in) {
		return
	}
	if err := h.Svc.RequestRegisterOTP(r.Context(), in.Email); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusAccepted, messageBody{"Verification code sent"})
}

// Register creates a customer account from a verified code.
// 201; 400 validation or bad code; 409 email taken.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in core.RegisterInput
	if !decode(w, r, &in) {
		return
	}
	u, err := h.Svc.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusCreated, u)
}

// Login returns an access and refresh token pair.
// 200; 401 bad credentials; 403 disabled account.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in core.LoginInput
	if !decode(w, r, &in) {
		return
	}
	res, err := h.Svc.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshBody
	if !decode(w, r, &in) {
		return
	}
	res, err := h.Svc.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, res)
}

// Logout revokes the caller's access token and, if sent, the refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var in refreshBody
	if r.ContentLength != 0 && !decode(w, r, &in) {
		return
	}
	claims, _ := middleware.ClaimsFrom(r.Context())
	if err := h.Svc.Logout(r.Context(), claims, in.RefreshToken); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset mails a reset code. 404 for unknown emails.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var in emailBody
	if !decode(w, r, &in) {
		return
	}
	if err := h.Svc.RequestPasswordReset(r.Context(), in.Email); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusAccepted, messageBody{"Verification code sent"})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in core.ResetPasswordInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.Svc.ResetPassword(r.Context(), in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, messageBody{"Password updated"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Svc.Me(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, u)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch core.ProfilePatch
	if !decode(w, r, &patch) {
		return
	}
	u, err := h.Svc.UpdateProfile(r.Context(), userID(r), patch)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, h.Log, http.StatusOK, u)
}

// ChangePassword: 401 when the current password is wrong.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in core.ChangePasswordInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.Svc.ChangePassword(r.Context(), userID(r), in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
