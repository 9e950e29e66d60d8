package handlers

import (
	"log/slog"
	"net/http"

	"github.com/kevinaaaquil/library/backend/models"
	"github.com/kevinaaaquil/library/backend/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuthHandler struct {
	Auth *service.AuthService
	Log  *slog.Logger
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	// Role is compared against the stored role; a missing role fails authentication, not validation.
	Role string `json:"role"`
}

type LoginResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type DeleteUserRequest struct {
	UserID string `json:"userId" validate:"required,objectid"`
}

// Register creates the user and redirects to login with 307 so the client replays the same body.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !bindJSON(w, r, &req) {
		return
	}
	_, err := h.Auth.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respondServiceError(w, r, h.Log, err, "Registration failed")
		return
	}
	http.Redirect(w, r, "/auth/login", http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !bindJSON(w, r, &req) {
		return
	}
	res, err := h.Auth.Login(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		respondServiceError(w, r, h.Log, err, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		User:         res.User,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	})
}

func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !bindJSON(w, r, &req) {
		return
	}
	access, err := h.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(w, r, h.Log, err, "Token refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{AccessToken: access})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !bindJSON(w, r, &req) {
		return
	}
	if err := h.Auth.Logout(r.Context(), req.RefreshToken); err != nil {
		respondServiceError(w, r, h.Log, err, "Logout failed")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteUserRequest
	if !bindJSON(w, r, &req) {
		return
	}
	userID, _ := primitive.ObjectIDFromHex(req.UserID)
	if err := h.Auth.DeleteAccount(r.Context(), userID); err != nil {
		respondServiceError(w, r, h.Log, err, "Error deleting user")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}
