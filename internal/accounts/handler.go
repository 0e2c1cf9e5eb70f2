package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
)

type Handler struct {
	repo   *UserRepository
	issuer *auth.TokenIssuer
	mailer *Mailer
	logger *slog.Logger
}

func NewHandler(repo *UserRepository, issuer *auth.TokenIssuer, mailer *Mailer, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		issuer: issuer,
		mailer: mailer,
		logger: logger,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Fullname string `json:"fullname"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" || req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "username, password and email are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user := &domain.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Fullname:     req.Fullname,
	}

	if err := h.repo.Create(r.Context(), user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			h.writeError(w, http.StatusConflict, "username or email already registered")
			return
		}
		h.logger.Error("failed to create user", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	h.writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.repo.UserByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		h.logger.Error("failed to load user", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if user == nil || !user.IsActive || !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.logger.Info("login failed", "username", req.Username)
		h.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.issuer.Issue(user.ID)
	if err != nil {
		h.logger.Error("failed to issue token", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	h.writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())
	h.writeJSON(w, http.StatusOK, actor)
}

type updateProfileRequest struct {
	Fullname  string `json:"fullname"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	AvatarURL string `json:"avatar_url"`
}

func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.repo.UpdateProfile(r.Context(), actor.ID, req.Fullname, req.Email, req.Address, req.AvatarURL); err != nil {
		if errors.Is(err, ErrDuplicate) {
			h.writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.Error("failed to update profile", "error", err, "user_id", actor.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, err := h.repo.UserByID(r.Context(), actor.ID)
	if err != nil {
		h.logger.Error("failed to reload user", "error", err, "user_id", actor.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("profile updated", "user_id", actor.ID)
	h.writeJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !auth.CheckPassword(actor.PasswordHash, req.CurrentPassword) {
		h.writeError(w, http.StatusForbidden, "current password is incorrect")
		return
	}

	if req.NewPassword == "" {
		h.writeError(w, http.StatusBadRequest, "new password is required")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.repo.UpdatePassword(r.Context(), actor.ID, hash); err != nil {
		h.logger.Error("failed to update password", "error", err, "user_id", actor.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("password changed", "user_id", actor.ID)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// HandlePasswordResetRequest always answers 202 so the endpoint cannot be
// used to probe which emails are registered.
func (h *Handler) HandlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.repo.UserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.Error("failed to look up email", "error", err)
		}
		h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset email sent"})
		return
	}

	token, err := h.issuer.IssueReset(user.ID)
	if err != nil {
		h.logger.Error("failed to issue reset token", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	body := fmt.Sprintf("Use this token to reset your password: %s", token)
	if err := h.mailer.Send(r.Context(), user.Email, "Password Reset Requested", body); err != nil {
		h.logger.Error("failed to send reset email", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("password reset requested", "user_id", user.ID)
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset email sent"})
}

type passwordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) HandlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req passwordResetConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.NewPassword == "" {
		h.writeError(w, http.StatusBadRequest, "new password is required")
		return
	}

	userID, err := h.issuer.VerifyReset(req.Token)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "reset token is invalid or has expired")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.repo.UpdatePassword(r.Context(), userID, hash); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusBadRequest, "reset token is invalid or has expired")
			return
		}
		h.logger.Error("failed to reset password", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("password reset", "user_id", userID)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "password reset"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
