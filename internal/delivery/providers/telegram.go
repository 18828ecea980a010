// Package providers contains concrete delivery backends.
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

// TelegramProvider sends messages via the Telegram Bot API.
type TelegramProvider struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// NewTelegramProvider creates a Telegram provider for the given bot and chat.
func NewTelegramProvider(botToken, chatID string) *TelegramProvider {
	return &TelegramProvider{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  "https://api.telegram.org",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewTelegramProviderWithBaseURL is used by tests to point at a local server.
func NewTelegramProviderWithBaseURL(botToken, chatID, baseURL string) *TelegramProvider {
	p := NewTelegramProvider(botToken, chatID)
	p.baseURL = strings.TrimRight(baseURL, "/")
	return p
}

type telegramSendRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send delivers one message via sendMessage. An empty recipient falls back
// to the configured chat ID.
func (t *TelegramProvider) Send(ctx context.Context, recipient, message string) (string, error) {
	if len(message) > t.MaxMessageLength() {
		return "", errs.Newf(errs.DeliveryMessageTooLong, "message too long: %d chars", len(message))
	}

	chat := recipient
	if chat == "" {
		chat = t.chatID
	}

	reqBody := telegramSendRequest{
		ChatID:                chat,
		Text:                  message,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true, // link previews clutter digests
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.DeliveryNetworkError, "Telegram API call failed", err)
	}
	defer resp.Body.Close()

	var tgResp telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tgResp); err != nil {
		return "", errs.Wrap(errs.DeliverySendFailed, "failed to parse Telegram response", err)
	}

	if !tgResp.OK {
		return "", errs.New(mapTelegramError(tgResp.ErrorCode, tgResp.Description), tgResp.Description)
	}

	return fmt.Sprintf("%d", tgResp.Result.MessageID), nil
}

// MaxMessageLength is Telegram's documented per-message limit.
func (t *TelegramProvider) MaxMessageLength() int { return 4096 }

func (t *TelegramProvider) Name() string { return "telegram" }

func mapTelegramError(code int, description string) errs.Code {
	desc := strings.ToLower(description)
	switch code {
	case http.StatusUnauthorized:
		return errs.DeliveryAuthFailed
	case http.StatusForbidden:
		if strings.Contains(desc, "blocked") {
			return errs.TelegramBotBlocked
		}
		return errs.DeliveryAuthFailed
	case http.StatusBadRequest:
		switch {
		case strings.Contains(desc, "chat not found"):
			return errs.TelegramChatNotFound
		case strings.Contains(desc, "message is too long"):
			return errs.DeliveryMessageTooLong
		default:
			return errs.DeliverySendFailed
		}
	case http.StatusTooManyRequests:
		return errs.DeliveryRateLimited
	default:
		return errs.DeliverySendFailed
	}
}
