package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
	"github.com/vetly/vetly/internal/db"
)

func waItem() *db.QueueItem {
	return &db.QueueItem{
		ID:               uuid.New(),
		TenantID:         uuid.New(),
		Channel:          db.ChannelWhatsApp,
		RecipientAddress: "+525512345678",
		Body:             "Recordatorio: cita de Luna hoy a las 16:00.",
	}
}

func TestWhatsAppSend(t *testing.T) {
	var gotAuth string
	var gotBody waRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/12345/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "wamid.abc"}},
		})
	}))
	defer srv.Close()

	s := NewWhatsAppSender(WhatsAppConfig{
		AccessToken:   "token-1",
		PhoneNumberID: "12345",
		BaseURL:       srv.URL,
	}, zap.NewNop())

	item := waItem()
	res, err := s.Send(context.Background(), item)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.ProviderMessageID != "wamid.abc" {
		t.Fatalf("message id = %q", res.ProviderMessageID)
	}
	if gotAuth != "Bearer token-1" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody.MessagingProduct != "whatsapp" || gotBody.To != item.RecipientAddress {
		t.Fatalf("body = %+v", gotBody)
	}
	if gotBody.Text.Body != item.Body {
		t.Fatalf("text = %q", gotBody.Text.Body)
	}
}

func TestWhatsAppAuthFailureIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewWhatsAppSender(WhatsAppConfig{
		AccessToken:   "bad",
		PhoneNumberID: "12345",
		BaseURL:       srv.URL,
	}, zap.NewNop())

	_, err := s.Send(context.Background(), waItem())
	if !apperr.IsConfiguration(err) {
		t.Fatalf("want configuration error, got %v", err)
	}
}

func TestWhatsAppServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewWhatsAppSender(WhatsAppConfig{
		AccessToken:   "token-1",
		PhoneNumberID: "12345",
		BaseURL:       srv.URL,
	}, zap.NewNop())

	_, err := s.Send(context.Background(), waItem())
	if !apperr.IsProvider(err) {
		t.Fatalf("want provider error, got %v", err)
	}
}

func TestWhatsAppMissingCredentials(t *testing.T) {
	s := NewWhatsAppSender(WhatsAppConfig{}, zap.NewNop())
	_, err := s.Send(context.Background(), waItem())
	if !apperr.IsConfiguration(err) {
		t.Fatalf("want configuration error, got %v", err)
	}
}
