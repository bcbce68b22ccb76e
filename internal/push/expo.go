package push

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"pollpick/internal/logger"
)

// ExpoSender delivers pushes through the Expo push API. Expo cannot
// localize, so titles and bodies are rendered from the English fallbacks.
type ExpoSender struct {
	client *resty.Client
	url    string
	log    *slog.Logger
}

type expoMessage struct {
	To       string            `json:"to"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Badge    int               `json:"badge"`
	Priority string            `json:"priority,omitempty"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details,omitempty"`
}

func NewExpoSender(url string) *ExpoSender {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	return &ExpoSender{client: client, url: url, log: logger.With("expo")}
}

func isExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

func (s *ExpoSender) Send(ctx context.Context, deliveries []Delivery, msg Message) error {
	data := make(map[string]string, len(msg.Data)+2)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["titleLocKey"] = msg.TitleLocKey
	data["bodyLocKey"] = msg.BodyLocKey

	title, body := msg.Title(), msg.Body()
	messages := make([]expoMessage, 0, len(deliveries))
	for _, d := range deliveries {
		token := d.Installation.DeviceToken
		if !isExpoToken(token) {
			s.log.Warn("skipping malformed expo token", "installation_id", d.Installation.InstallationID)
			continue
		}
		messages = append(messages, expoMessage{
			To:       token,
			Title:    title,
			Body:     body,
			Data:     data,
			Sound:    "default",
			Badge:    d.Badge,
			Priority: "high",
		})
	}
	if len(messages) == 0 {
		return nil
	}

	var result expoResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(messages).
		SetResult(&result).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("expo request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("expo api error: status=%d body=%s", resp.StatusCode(), resp.String())
	}

	failed := 0
	for i, ticket := range result.Data {
		if ticket.Status != "ok" {
			failed++
			s.log.Warn("expo delivery failed", "index", i, "message", ticket.Message, "error", ticket.Details.Error)
		}
	}
	s.log.Debug("expo batch sent", "messages", len(messages), "failed", failed)
	if failed == len(messages) {
		return fmt.Errorf("expo: all %d deliveries failed", failed)
	}
	return nil
}
