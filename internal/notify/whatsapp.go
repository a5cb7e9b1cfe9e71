package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"propertyhub/internal/apperr"
)

// WhatsAppConfig holds the chat gateway settings
type WhatsAppConfig struct {
	BaseURL string
	Token   string
	Sender  string
	Timeout time.Duration
}

// WhatsApp sends direct messages through a REST chat gateway
type WhatsApp struct {
	cfg  WhatsAppConfig
	http *http.Client
}

// NewWhatsApp creates a chat gateway client
func NewWhatsApp(cfg WhatsAppConfig) *WhatsApp {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &WhatsApp{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type whatsAppPayload struct {
	MessageType string `json:"messageType"`
	Token       string `json:"token"`
	From        string `json:"from"`
	To          string `json:"to"`
	Text        string `json:"text"`
}

// SendDirectMessage sends body to an E.164 phone number
func (w *WhatsApp) SendDirectMessage(ctx context.Context, phone, body string) error {
	if w.cfg.BaseURL == "" {
		return fmt.Errorf("%w: whatsapp gateway not configured", apperr.ErrExternal)
	}

	payload, err := json.Marshal(whatsAppPayload{
		MessageType: "text",
		Token:       w.cfg.Token,
		From:        w.cfg.Sender,
		To:          strings.TrimPrefix(phone, "+"),
		Text:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.BaseURL+"/api/send_message", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: whatsapp request failed: %v", apperr.ErrExternal, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: whatsapp gateway returned %d: %s", apperr.ErrExternal, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}
