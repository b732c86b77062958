// Package auth exposes the registration and login endpoints backed by the
// local identity provider.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/contacthub/contacthub/internal/api"
	"github.com/contacthub/contacthub/internal/identity"
)

var validate = validator.New()

// Handler handles the /auth endpoints.
type Handler struct {
	provider *identity.LocalProvider
	log      *slog.Logger
}

func NewHandler(provider *identity.LocalProvider, log *slog.Logger) *Handler {
	return &Handler{provider: provider, log: log}
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"displayName" validate:"required,max=128"`
}

// RegisterResponse is the response for a successful registration.
type RegisterResponse struct {
	User identity.Identity `json:"user"`
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		api.WriteBadRequest(w, validationMessage(err))
		return
	}

	user, err := h.provider.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, identity.ErrUserExists) {
			api.WriteConflict(w, "an account with this email already exists")
			return
		}
		h.log.Error("registration failed", "email", identity.NormalizeEmail(req.Email), "error", err)
		api.WriteInternalError(w, "registration failed")
		return
	}

	h.log.Info("user registered", "uid", user.UID, "email", user.Email)
	api.WriteJSON(w, http.StatusCreated, RegisterResponse{User: user})
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the response for a successful login.
type LoginResponse struct {
	Token string            `json:"token"`
	User  identity.Identity `json:"user"`
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		api.WriteBadRequest(w, validationMessage(err))
		return
	}

	user, token, err := h.provider.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidPassword) {
			api.WriteError(w, http.StatusUnauthorized, api.StatusUnauthorized, "invalid email or password")
			return
		}
		h.log.Error("login failed", "email", identity.NormalizeEmail(req.Email), "error", err)
		api.WriteInternalError(w, "login failed")
		return
	}

	api.WriteJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// validationMessage flattens validator errors into a single client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}
