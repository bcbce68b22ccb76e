package service

import (
	"context"
	"errors"
	"testing"

	"pollpick/internal/model"
)

func TestInstallationService_Register(t *testing.T) {
	repo := &memInstallations{}
	svc := NewInstallationService(repo)
	ctx := context.Background()

	req := &model.RegisterInstallationRequest{
		InstallationID: "dev-1",
		DeviceToken:    "tok",
		DeviceType:     model.DeviceTypeIOS,
		PushVersion:    2,
		Channels:       []string{model.ChannelReport},
	}
	inst, err := svc.Register(ctx, 5, req)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if inst.PushType != model.PushTypeFCM {
		t.Errorf("push type = %q, want default fcm", inst.PushType)
	}
	if inst.UserID == nil || *inst.UserID != 5 {
		t.Errorf("user id = %v, want 5", inst.UserID)
	}

	req.DeviceToken = "tok-2"
	if _, err := svc.Register(ctx, 0, req); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if len(repo.installs) != 1 {
		t.Fatalf("installations = %d, want upsert into 1", len(repo.installs))
	}
	if repo.installs[0].UserID != nil {
		t.Error("logged-out registration should clear the owner")
	}
	if repo.installs[0].DeviceToken != "tok-2" {
		t.Error("device token should be updated")
	}
}

func TestInstallationService_Remove(t *testing.T) {
	repo := &memInstallations{}
	svc := NewInstallationService(repo)
	ctx := context.Background()

	if err := svc.Remove(ctx, ""); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("empty id error = %v", err)
	}
	if err := svc.Remove(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing id error = %v", err)
	}

	svc.Register(ctx, 1, &model.RegisterInstallationRequest{InstallationID: "dev", DeviceToken: "t", DeviceType: model.DeviceTypeAndroid})
	if err := svc.Remove(ctx, "dev"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(repo.installs) != 0 {
		t.Error("installation should be gone")
	}
}
