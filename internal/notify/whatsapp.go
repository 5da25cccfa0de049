package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
	"github.com/vetly/vetly/internal/db"
)

// WhatsAppConfig configures the Cloud API sender. BaseURL is
// overridable for tests.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	Timeout       time.Duration
}

// WhatsAppSender delivers text messages through the WhatsApp Cloud API.
type WhatsAppSender struct {
	client *http.Client
	cfg    WhatsAppConfig
	logger *zap.Logger
}

func NewWhatsAppSender(cfg WhatsAppConfig, logger *zap.Logger) *WhatsAppSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com/v19.0"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &WhatsAppSender{
		client: &http.Client{Timeout: timeout},
		cfg:    cfg,
		logger: logger,
	}
}

type waRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type waResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (s *WhatsAppSender) Send(ctx context.Context, item *db.QueueItem) (*Result, error) {
	if item.Channel != db.ChannelWhatsApp {
		return nil, apperr.Configuration("whatsapp sender got channel %s", item.Channel)
	}
	if s.cfg.AccessToken == "" || s.cfg.PhoneNumberID == "" {
		return nil, apperr.Configuration("whatsapp credentials not configured")
	}
	if item.RecipientAddress == "" {
		return nil, apperr.Configuration("whatsapp item %s has no recipient phone", item.ID)
	}

	payload := waRequest{
		MessagingProduct: "whatsapp",
		To:               item.RecipientAddress,
		Type:             "text",
	}
	payload.Text.Body = item.Body

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.cfg.BaseURL, s.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperr.Provider("whatsapp request failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperr.Configuration("whatsapp credentials rejected: %s", string(respBody))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apperr.Provider(
			fmt.Sprintf("whatsapp returned status %d", resp.StatusCode),
			fmt.Errorf("%s", string(respBody)))
	}

	var parsed waResponse
	messageID := ""
	if err := json.Unmarshal(respBody, &parsed); err == nil && len(parsed.Messages) > 0 {
		messageID = parsed.Messages[0].ID
	}

	s.logger.Info("whatsapp message sent",
		zap.String("id", item.ID.String()),
		zap.String("to", item.RecipientAddress),
		zap.String("message_id", messageID),
	)
	return &Result{ProviderMessageID: messageID}, nil
}

func (s *WhatsAppSender) SupportsChannel(ch db.Channel) bool {
	return ch == db.ChannelWhatsApp
}
