package handler

import (
	"errors"
	"net/http"
	"strings"

	"pollpick/internal/httputil"
	"pollpick/internal/model"
	"pollpick/internal/service"
	"pollpick/internal/transport/http/middleware"
)

// AuthHandler groups auth-related HTTP endpoints and their dependencies.
type AuthHandler struct {
	userService *service.UserService
	authService *service.AuthService
}

// NewAuthHandler wires dependencies for authentication endpoints.
func NewAuthHandler(userService *service.UserService, authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
	}
}

// Register creates a password account and signs it in.
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	h.signIn(w, r, http.StatusCreated, user)
}

// Login handles user login
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.userService.Login(r.Context(), &req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	h.signIn(w, r, http.StatusOK, user)
}

// Anonymous signs up a throwaway account.
// POST /auth/anonymous
func (h *AuthHandler) Anonymous(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.CreateAnonymous(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	h.signIn(w, r, http.StatusCreated, user)
}

// Facebook signs in with a Facebook user access token.
// POST /auth/facebook
func (h *AuthHandler) Facebook(w http.ResponseWriter, r *http.Request) {
	var req model.FacebookLoginRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.userService.LoginWithFacebook(r.Context(), req.AccessToken)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	h.signIn(w, r, http.StatusOK, user)
}

// VerifyEmail consumes the token from a verification link.
// GET /auth/verify-email?token=
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// Refresh handles token refresh
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	tokenPair, _, err := h.authService.RefreshTokens(r.Context(), req.RefreshToken, r.Header.Get("User-Agent"), clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrRefreshTokenExpired):
			httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Refresh token has expired")
		case errors.Is(err, model.ErrRefreshTokenReused):
			httputil.WriteUnauthorizedWithCode(w, model.CodeTokenReused, "Refresh token reuse detected. Please login again.")
		case errors.Is(err, model.ErrRefreshTokenNotFound):
			httputil.WriteUnauthorized(w, "Invalid refresh token")
		default:
			httputil.WriteServiceError(w, r, err)
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenPair)
}

// Logout handles user logout
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	// An unknown token is already logged out.
	if err := h.authService.RevokeRefreshToken(r.Context(), req.RefreshToken); err != nil && !errors.Is(err, model.ErrRefreshTokenNotFound) {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// LogoutAll handles logout from all devices
// POST /auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	if err := h.authService.RevokeAllUserTokens(r.Context(), userID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out from all devices",
	})
}

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, status int, user *model.User) {
	tokenPair, err := h.authService.GenerateTokenPair(r.Context(), user.ID, r.Header.Get("User-Agent"), clientIP(r))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, status, model.LoginResponse{User: user, TokenPair: *tokenPair})
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	// Check X-Forwarded-For header (for proxied requests)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// RemoteAddr is in the format "IP:port"
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
