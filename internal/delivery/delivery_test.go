package delivery

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xdigest/internal/config"
	"github.com/ibeckermayer/xdigest/internal/errs"
)

func fastRetry() config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts:         3,
		InitialDelaySeconds: 0.001,
		BackoffMultiplier:   2,
		MaxDelaySeconds:     0.01,
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestSendDigestAllPartsInOrder(t *testing.T) {
	mock := NewMockProvider()
	parts := []string{"part one", "part two", "part three"}

	err := SendDigest(context.Background(), parts, mock, "recipient@chat", fastRetry(), quietLogger())
	require.NoError(t, err)
	require.Len(t, mock.Sends, 3)
	for i, rec := range mock.Sends {
		assert.Equal(t, parts[i], rec.Message)
		assert.Equal(t, "recipient@chat", rec.Recipient)
	}
}

func TestSendDigestRetriesTransientFailure(t *testing.T) {
	mock := NewMockProvider()
	mock.FailCount = 2 // first two attempts fail, third succeeds

	err := SendDigest(context.Background(), []string{"only part"}, mock, "r", fastRetry(), quietLogger())
	require.NoError(t, err)
	assert.Len(t, mock.Sends, 3)
}

func TestSendDigestReportsFailedParts(t *testing.T) {
	mock := NewMockProvider()
	mock.FailOnMessage = []string{"poison"}

	parts := []string{"fine", "poison part", "also fine"}
	err := SendDigest(context.Background(), parts, mock, "r", fastRetry(), quietLogger())
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.DeliverySendFailed))
	assert.Contains(t, err.Error(), "1 of 3 parts failed")

	// Succeeding parts were sent exactly once; the bad part used all attempts.
	sent := map[string]int{}
	for _, rec := range mock.Sends {
		sent[rec.Message]++
	}
	assert.Equal(t, 1, sent["fine"])
	assert.Equal(t, 1, sent["also fine"])
	assert.Equal(t, 3, sent["poison part"])
}

func TestSendDigestExhaustsAttempts(t *testing.T) {
	mock := NewMockProvider()
	mock.FailCount = 100

	err := SendDigest(context.Background(), []string{"part"}, mock, "r", fastRetry(), quietLogger())
	require.Error(t, err)
	assert.Len(t, mock.Sends, 3) // MaxAttempts total, not MaxAttempts retries
}

func TestNewFromConfig(t *testing.T) {
	p, err := NewFromConfig(config.DeliveryConfig{
		Provider: "telegram",
		Telegram: config.TelegramConfig{BotToken: "t", ChatID: "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, "telegram", p.Name())

	p, err = NewFromConfig(config.DeliveryConfig{
		Provider: "whatsapp",
		WhatsApp: config.WhatsAppConfig{GatewayURL: "http://gw", Recipient: "r"},
	})
	require.NoError(t, err)
	assert.Equal(t, "whatsapp", p.Name())

	_, err = NewFromConfig(config.DeliveryConfig{Provider: "carrier-pigeon"})
	require.Error(t, err)
}

func TestDefaultRecipient(t *testing.T) {
	cfg := config.DeliveryConfig{
		Provider: "telegram",
		Telegram: config.TelegramConfig{ChatID: "12345"},
		WhatsApp: config.WhatsAppConfig{Recipient: "wa-r"},
	}
	assert.Equal(t, "12345", DefaultRecipient(cfg))

	cfg.Provider = "whatsapp"
	assert.Equal(t, "wa-r", DefaultRecipient(cfg))
}
