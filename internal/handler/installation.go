package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pollpick/internal/httputil"
	"pollpick/internal/model"
	"pollpick/internal/service"
	"pollpick/internal/transport/http/middleware"
)

type InstallationHandler struct {
	installationService *service.InstallationService
}

func NewInstallationHandler(installationService *service.InstallationService) *InstallationHandler {
	return &InstallationHandler{installationService: installationService}
}

// Register upserts the calling device. Signed-in callers become its owner.
// POST /installations
func (h *InstallationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterInstallationRequest
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	inst, err := h.installationService.Register(r.Context(), userID, &req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inst)
}

// Remove handles DELETE /installations/{installationId}
func (h *InstallationHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.installationService.Remove(r.Context(), chi.URLParam(r, "installationId")); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
