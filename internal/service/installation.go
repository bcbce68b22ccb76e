package service

import (
	"context"

	"github.com/lib/pq"

	"pollpick/internal/model"
	"pollpick/internal/repository"
)

// InstallationService registers devices for push.
type InstallationService struct {
	repo repository.InstallationRepository
}

func NewInstallationService(repo repository.InstallationRepository) *InstallationService {
	return &InstallationService{repo: repo}
}

// Register upserts a device. userID 0 leaves the installation unowned, which
// still lets it receive channel pushes.
func (s *InstallationService) Register(ctx context.Context, userID int64, req *model.RegisterInstallationRequest) (*model.Installation, error) {
	pushType := req.PushType
	if pushType == "" {
		pushType = model.PushTypeFCM
	}
	inst := &model.Installation{
		InstallationID: req.InstallationID,
		DeviceToken:    req.DeviceToken,
		DeviceType:     req.DeviceType,
		PushType:       pushType,
		PushVersion:    req.PushVersion,
		Channels:       pq.StringArray(req.Channels),
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
	}
	if userID != 0 {
		inst.UserID = &userID
	}
	if err := s.repo.Upsert(ctx, inst); err != nil {
		return nil, storeErr("register installation", err)
	}
	return inst, nil
}

func (s *InstallationService) Remove(ctx context.Context, installationID string) error {
	if installationID == "" {
		return model.InvalidArgument("installationId is required")
	}
	if err := s.repo.Delete(ctx, installationID); err != nil {
		return storeErr("remove installation", err)
	}
	return nil
}
