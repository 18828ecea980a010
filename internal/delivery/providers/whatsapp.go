package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ibeckermayer/xdigest/internal/errs"
)

// WhatsAppProvider sends messages through a WhatsApp gateway HTTP API.
type WhatsAppProvider struct {
	gatewayURL       string
	defaultRecipient string
	client           *http.Client
}

// NewWhatsAppProvider creates a WhatsApp provider for the given gateway.
func NewWhatsAppProvider(gatewayURL, recipient string) *WhatsAppProvider {
	return &WhatsAppProvider{
		gatewayURL:       gatewayURL,
		defaultRecipient: recipient,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type whatsAppSendRequest struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	Message string `json:"message"`
}

type whatsAppResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	Error     string `json:"error,omitempty"`
}

// Send delivers one message via the gateway. An empty recipient falls back
// to the configured default.
func (w *WhatsAppProvider) Send(ctx context.Context, recipient, message string) (string, error) {
	to := recipient
	if to == "" {
		to = w.defaultRecipient
	}
	if to == "" {
		return "", errs.New(errs.DeliveryRecipientInvalid, "no recipient specified")
	}

	if len(message) > w.MaxMessageLength() {
		return "", errs.Newf(errs.DeliveryMessageTooLong, "message too long: %d chars", len(message))
	}

	reqBody := whatsAppSendRequest{
		Channel: "whatsapp",
		To:      to,
		Message: message,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.gatewayURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "xdigest/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.WhatsAppGatewayUnavailable, "gateway unreachable", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", errs.New(errs.DeliveryAuthFailed, "gateway rejected credentials")
	case http.StatusTooManyRequests:
		return "", errs.New(errs.DeliveryRateLimited, "gateway rate limited")
	case http.StatusServiceUnavailable:
		return "", errs.New(errs.WhatsAppGatewayUnavailable, "gateway unavailable")
	default:
		return "", errs.Newf(errs.DeliverySendFailed, "HTTP %d", resp.StatusCode)
	}

	var waResp whatsAppResponse
	if err := json.NewDecoder(resp.Body).Decode(&waResp); err != nil {
		return "", errs.Wrap(errs.DeliverySendFailed, "failed to parse gateway response", err)
	}

	if !waResp.Success {
		return "", errs.New(mapGatewayError(waResp.Error), waResp.Error)
	}

	if waResp.MessageID == "" {
		return "unknown", nil
	}
	return waResp.MessageID, nil
}

// MaxMessageLength is a conservative limit for WhatsApp.
func (w *WhatsAppProvider) MaxMessageLength() int { return 4000 }

func (w *WhatsAppProvider) Name() string { return "whatsapp" }

func mapGatewayError(gatewayErr string) errs.Code {
	upper := strings.ToUpper(gatewayErr)
	switch {
	case strings.Contains(upper, "RECIPIENT_NOT_FOUND"):
		return errs.WhatsAppRecipientNotFound
	case strings.Contains(upper, "RATE_LIMITED"):
		return errs.DeliveryRateLimited
	case strings.Contains(upper, "AUTH_FAILED"), strings.Contains(upper, "SESSION"):
		return errs.WhatsAppSessionExpired
	case strings.Contains(upper, "GATEWAY_UNAVAILABLE"):
		return errs.WhatsAppGatewayUnavailable
	case strings.Contains(upper, "MESSAGE_TOO_LONG"):
		return errs.DeliveryMessageTooLong
	default:
		return errs.DeliverySendFailed
	}
}
