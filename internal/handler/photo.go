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

type PhotoHandler struct {
	photoService *service.PhotoService
}

func NewPhotoHandler(photoService *service.PhotoService) *PhotoHandler {
	return &PhotoHandler{photoService: photoService}
}

// Upload takes a multipart "photo" field and stores it as a private photo.
// POST /photos
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	maxFormSize := int64(model.MaxPhotoSizeBytes) + 1024*1024 // allow form overhead
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			httputil.WriteBadRequest(w, "Content-Type must be multipart/form-data")
			return
		}
		if strings.Contains(err.Error(), "request body too large") {
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Photo exceeds 10MB limit")
			return
		}
		httputil.WriteBadRequest(w, "Invalid form data")
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		httputil.WriteBadRequest(w, "photo is required")
		return
	}
	defer file.Close()

	photo, err := h.photoService.Upload(r.Context(), userID, file, header)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrFileTooLarge):
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Photo exceeds 10MB limit")
		case errors.Is(err, model.ErrInvalidImageType):
			httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type. Allowed: jpeg, png, gif, webp")
		default:
			httputil.WriteServiceError(w, r, err)
		}
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, photo)
}
