package model

import (
	"time"

	"github.com/lib/pq"
)

// Installation is a client device able to receive pushes.
// PushVersion gates which notification formats the app understands.
type Installation struct {
	ID             int64          `db:"id" json:"-"`
	InstallationID string         `db:"installation_id" json:"installationId"`
	UserID         *int64         `db:"user_id" json:"userId,omitempty"`
	DeviceToken    string         `db:"device_token" json:"-"`
	DeviceType     string         `db:"device_type" json:"deviceType"`
	PushType       string         `db:"push_type" json:"pushType"`
	PushVersion    int            `db:"push_version" json:"pushVersion"`
	Channels       pq.StringArray `db:"channels" json:"channels"`
	Badge          int            `db:"badge" json:"badge"`
	Latitude       *float64       `db:"latitude" json:"latitude,omitempty"`
	Longitude      *float64       `db:"longitude" json:"longitude,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// InstallationLocation is the only projection of an installation admins may list.
type InstallationLocation struct {
	Latitude  float64 `db:"latitude" json:"latitude"`
	Longitude float64 `db:"longitude" json:"longitude"`
}

// RegisterInstallationRequest is the body for POST /installations.
type RegisterInstallationRequest struct {
	InstallationID string   `json:"installationId" validate:"required,max=100"`
	DeviceToken    string   `json:"deviceToken" validate:"required"`
	DeviceType     string   `json:"deviceType" validate:"required,oneof=ios android"`
	PushType       string   `json:"pushType" validate:"omitempty,oneof=fcm expo"`
	PushVersion    int      `json:"pushVersion" validate:"min=0"`
	Channels       []string `json:"channels" validate:"omitempty,dive,required,max=50"`
	Latitude       *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
}

const (
	DeviceTypeIOS     = "ios"
	DeviceTypeAndroid = "android"

	PushTypeFCM  = "fcm"
	PushTypeExpo = "expo"

	// ChannelReport receives moderation pushes for reported polls.
	ChannelReport = "report"

	// Minimum installation push versions per notification kind.
	PushVersionPoll   = 1
	PushVersionFollow = 2

	DeviceLocationsLimit = 1000
)

var ErrInstallationNotFound = newError(ErrNotFound, "installation not found")
