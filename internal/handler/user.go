package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pollpick/internal/httputil"
	"pollpick/internal/model"
	"pollpick/internal/service"
	"pollpick/internal/transport/http/middleware"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// Me returns the currently authenticated user
// GET /me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	user, err := h.userService.GetMe(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// UpdateMe edits the caller's profile.
// PATCH /me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	var req model.UpdateProfileRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// GetProfile handles GET /users/{id}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid user ID")
		return
	}

	viewerID, _ := middleware.GetUserIDFromContext(r.Context())
	profile, err := h.userService.GetProfile(r.Context(), viewerID, userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}
