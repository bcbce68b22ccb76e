package model

import "time"

const (
	MaxPhotoSizeBytes = 10 * 1024 * 1024
	PhotoMaxDimension = 1080
	PhotoQuality      = 85
	PhotoFolder       = "polls"
	PhotoExt          = ".jpg"
	PhotoCacheControl = "public, max-age=31536000"
)

// Supported image content types for upload validation
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
)

var allowedImageTypes = map[string]struct{}{
	ContentTypeJPEG: {},
	ContentTypePNG:  {},
	ContentTypeGIF:  {},
	ContentTypeWebP: {},
}

// IsAllowedImageType reports if the provided content type is supported
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}

// Photo is one side of a poll. It becomes public once attached to a poll.
type Photo struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user"`
	URL       string    `db:"url" json:"url"`
	ObjectKey string    `db:"object_key" json:"-"`
	Public    bool      `db:"public" json:"public"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Error codes for HTTP responses
const (
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidImageType = "INVALID_IMAGE_TYPE"
)

var (
	ErrFileTooLarge       = newError(ErrInvalidArgument, "photo exceeds 10MB limit")
	ErrInvalidImageType   = newError(ErrInvalidArgument, "unsupported image type, allowed: jpeg, png, gif, webp")
	ErrStorageUnavailable = newError(ErrPersistence, "photo storage is not configured")
)
