package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loopfeed/loopfeed/internal/ctxkeys"
	"github.com/loopfeed/loopfeed/internal/model"
	"github.com/loopfeed/loopfeed/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	userService *service.UserService
}

func NewAuthHandler(authService *service.AuthService, userService *service.UserService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
	}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
	Username string `json:"username" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type accountView struct {
	ID      string         `json:"id"`
	Email   string         `json:"email"`
	Profile *model.Profile `json:"profile"`
}

type sessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Account   accountView `json:"account"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	err := decode(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("user registered", "user_id", user.ID)
	h.startSession(w, r, user, http.StatusCreated)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := decode(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("login failed", "error", err)
		writeError(w, r, err)
		return
	}

	h.startSession(w, r, user, http.StatusOK)
}

// startSession issues a JWT both as cookie and in the body.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User, status int) {
	token, expiry, err := h.authService.GenerateJWT(user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := h.userService.Profile(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.authService.SetJWTCookie(w, token, expiry)
	writeJSON(w, status, sessionResponse{
		Token:     token,
		ExpiresAt: expiry,
		Account:   accountView{ID: user.ID, Email: user.Email, Profile: profile},
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearJWTCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	writeJSON(w, http.StatusOK, accountView{
		ID:      user.ID,
		Email:   user.Email,
		Profile: ctxkeys.Profile(r.Context()),
	})
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var req profileRequest
	err := decode(w, r, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := h.userService.UpdateProfile(r.Context(), user.ID, req.DisplayName, req.Bio)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// SearchUsers finds collaborator candidates by username prefix. Ids listed
// in the comma separated exclude parameter are skipped.
func (h *AuthHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var exclude []string
	if v := r.URL.Query().Get("exclude"); v != "" {
		exclude = strings.Split(v, ",")
	}

	profiles, err := h.userService.Search(r.Context(), user.ID, r.URL.Query().Get("q"), exclude)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}
