package push

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"pollpick/internal/logger"
)

// fcmBatchLimit is the most messages SendEach accepts per call.
const fcmBatchLimit = 500

// messagingClient is the part of *messaging.Client the sender uses.
type messagingClient interface {
	SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error)
}

// FCMSender delivers pushes through Firebase Cloud Messaging. Text is
// localized on the device from the loc keys.
type FCMSender struct {
	client messagingClient
	log    *slog.Logger
}

// NewFCMSender builds a Firebase app from service account fields.
// The private key may carry literal "\n" sequences as stored in .env files.
func NewFCMSender(ctx context.Context, projectID, clientEmail, privateKey string) (*FCMSender, error) {
	privateKey = strings.ReplaceAll(privateKey, "\\n", "\n")

	credsJSON := fmt.Sprintf(`{
		"type": "service_account",
		"project_id": %q,
		"private_key": %q,
		"client_email": %q,
		"token_uri": "https://oauth2.googleapis.com/token"
	}`, projectID, privateKey, clientEmail)

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsJSON([]byte(credsJSON)))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	log := logger.With("fcm")
	log.Info("fcm initialized", "project_id", projectID)
	return &FCMSender{client: client, log: log}, nil
}

// Send builds one message per installation since badges differ per device.
func (s *FCMSender) Send(ctx context.Context, deliveries []Delivery, msg Message) error {
	if len(deliveries) == 0 {
		return nil
	}

	messages := make([]*messaging.Message, 0, len(deliveries))
	for _, d := range deliveries {
		messages = append(messages, buildFCMMessage(d, msg))
	}

	var failed int
	for start := 0; start < len(messages); start += fcmBatchLimit {
		end := min(start+fcmBatchLimit, len(messages))
		resp, err := s.client.SendEach(ctx, messages[start:end])
		if err != nil {
			return fmt.Errorf("fcm send: %w", err)
		}
		failed += resp.FailureCount
		for i, r := range resp.Responses {
			if !r.Success {
				s.log.Warn("fcm delivery failed",
					"installation_id", deliveries[start+i].Installation.InstallationID,
					"error", r.Error)
			}
		}
	}

	s.log.Debug("fcm batch sent", "messages", len(messages), "failed", failed)
	if failed == len(messages) {
		return fmt.Errorf("fcm: all %d deliveries failed", failed)
	}
	return nil
}

func buildFCMMessage(d Delivery, msg Message) *messaging.Message {
	badge := d.Badge
	return &messaging.Message{
		Token: d.Installation.DeviceToken,
		Data:  msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				TitleLocKey: msg.TitleLocKey,
				BodyLocKey:  msg.BodyLocKey,
				BodyLocArgs: msg.LocArgs,
				Sound:       "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						TitleLocKey: msg.TitleLocKey,
						LocKey:      msg.BodyLocKey,
						LocArgs:     msg.LocArgs,
					},
					Badge: &badge,
					Sound: "default",
				},
			},
		},
	}
}
