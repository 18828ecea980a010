package delivery

import (
	"github.com/ibeckermayer/xdigest/internal/config"
	"github.com/ibeckermayer/xdigest/internal/delivery/providers"
	"github.com/ibeckermayer/xdigest/internal/errs"
)

// NewFromConfig creates a delivery provider based on configuration.
func NewFromConfig(cfg config.DeliveryConfig) (Provider, error) {
	switch cfg.Provider {
	case "whatsapp":
		return providers.NewWhatsAppProvider(cfg.WhatsApp.GatewayURL, cfg.WhatsApp.Recipient), nil
	case "telegram":
		return providers.NewTelegramProvider(cfg.Telegram.BotToken, cfg.Telegram.ChatID), nil
	case "":
		return nil, errs.New(errs.ConfigMissingField, "delivery.provider required")
	default:
		return nil, errs.Newf(errs.ConfigInvalidValue, "unknown delivery provider: %s", cfg.Provider)
	}
}

// DefaultRecipient returns the configured recipient for the active provider.
func DefaultRecipient(cfg config.DeliveryConfig) string {
	switch cfg.Provider {
	case "whatsapp":
		return cfg.WhatsApp.Recipient
	case "telegram":
		return cfg.Telegram.ChatID
	default:
		return ""
	}
}
