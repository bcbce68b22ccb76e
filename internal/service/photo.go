package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"pollpick/internal/logger"
	"pollpick/internal/model"
	"pollpick/internal/repository"
)

// ObjectStore is where photo bytes live.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType, cacheControl string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// PhotoService normalizes uploads and records them as private photos.
// A photo turns public once a public poll uses it.
type PhotoService struct {
	store     ObjectStore
	photoRepo repository.PhotoRepository
	log       *slog.Logger
}

// NewPhotoService accepts a nil store; uploads then fail with ErrStorageUnavailable.
func NewPhotoService(store ObjectStore, photoRepo repository.PhotoRepository) *PhotoService {
	return &PhotoService{store: store, photoRepo: photoRepo, log: logger.With("photo_service")}
}

// Upload enforces size and type, fits the image into the max dimension as
// JPEG and stores it.
func (s *PhotoService) Upload(ctx context.Context, userID int64, file multipart.File, header *multipart.FileHeader) (*model.Photo, error) {
	if userID == 0 {
		return nil, model.ErrUnauthenticated
	}
	if s.store == nil {
		return nil, model.ErrStorageUnavailable
	}

	data, err := readAndValidateImage(file, header, model.MaxPhotoSizeBytes)
	if err != nil {
		return nil, err
	}
	jpegBytes, err := fitToJPEG(data, model.PhotoMaxDimension, model.PhotoQuality)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s%s", model.PhotoFolder, uuid.NewString(), model.PhotoExt)
	if err := s.store.Put(ctx, key, jpegBytes, model.ContentTypeJPEG, model.PhotoCacheControl); err != nil {
		return nil, err
	}

	photo := &model.Photo{UserID: userID, URL: s.store.URL(key), ObjectKey: key}
	if err := s.photoRepo.Create(ctx, photo); err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.log.Warn("orphaned photo object", "key", key, "error", derr)
		}
		return nil, storeErr("create photo", err)
	}
	return photo, nil
}

// readAndValidateImage loads the upload into memory with size and type checks.
func readAndValidateImage(file io.Reader, header *multipart.FileHeader, maxSize int64) ([]byte, error) {
	if header.Size > maxSize {
		return nil, model.ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, model.ErrFileTooLarge
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data[:min(len(data), 512)])
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if !model.IsAllowedImageType(contentType) {
		return nil, model.ErrInvalidImageType
	}
	return data, nil
}

// fitToJPEG scales the image down to fit a size x size box, keeping aspect ratio.
func fitToJPEG(data []byte, size, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, model.ErrInvalidImageType
	}

	fitted := imaging.Fit(img, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
