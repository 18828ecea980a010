// Package delivery defines the message delivery contract and the retrying
// digest sender.
package delivery

import (
	"context"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xdigest/internal/config"
	"github.com/ibeckermayer/xdigest/internal/errs"
)

// Provider is the interface all delivery backends implement. Send returns
// the provider's message ID; implementations raise errs-coded errors so the
// caller can report a structured failure.
type Provider interface {
	Send(ctx context.Context, recipient, message string) (string, error)
	MaxMessageLength() int
	Name() string
}

// SendDigest sends every part in order, retrying each failed part with
// exponential backoff up to the configured attempt count. Parts that
// succeeded are never re-sent; if any part ultimately fails the whole digest
// send is reported as failed.
func SendDigest(ctx context.Context, parts []string, provider Provider, recipient string, retry config.RetryConfig, log *logrus.Logger) error {
	policy := retrypolicy.NewBuilder[string]().
		WithBackoff(
			time.Duration(retry.InitialDelaySeconds*float64(time.Second)),
			time.Duration(retry.MaxDelaySeconds*float64(time.Second)),
		).
		WithMaxRetries(retry.MaxAttempts - 1).
		Build()

	failed := 0
	for i, part := range parts {
		msgID, err := failsafe.With(policy).WithContext(ctx).Get(func() (string, error) {
			return provider.Send(ctx, recipient, part)
		})
		if err != nil {
			failed++
			log.WithFields(logrus.Fields{
				"provider": provider.Name(),
				"part":     i + 1,
				"total":    len(parts),
			}).WithError(err).Error("digest part failed after retries")
			continue
		}
		log.WithFields(logrus.Fields{
			"provider":   provider.Name(),
			"part":       i + 1,
			"total":      len(parts),
			"message_id": msgID,
		}).Debug("digest part sent")
	}

	if failed > 0 {
		return errs.Newf(errs.DeliverySendFailed, "%d of %d parts failed", failed, len(parts))
	}
	return nil
}

// SendRecord captures one Mock send, for test assertions.
type SendRecord struct {
	Recipient string
	Message   string
}

// Mock is a delivery Provider for tests with configurable failure behavior.
type Mock struct {
	MessageID     string
	MaxLength     int
	Err           error    // raised on every send when set
	FailCount     int      // fail this many sends before succeeding
	FailOnMessage []string // substrings whose messages always fail

	Sends []SendRecord
	calls int
}

// NewMockProvider returns a Mock that accepts every send.
func NewMockProvider() *Mock {
	return &Mock{MessageID: "mock_msg_123", MaxLength: 4000}
}

func (m *Mock) Send(_ context.Context, recipient, message string) (string, error) {
	m.Sends = append(m.Sends, SendRecord{Recipient: recipient, Message: message})
	m.calls++

	for _, fail := range m.FailOnMessage {
		if fail != "" && strings.Contains(message, fail) {
			return "", errs.New(errs.DeliverySendFailed, "configured to fail")
		}
	}
	if m.calls <= m.FailCount {
		return "", errs.New(errs.DeliverySendFailed, "configured failure count")
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.MessageID, nil
}

func (m *Mock) MaxMessageLength() int { return m.MaxLength }
func (m *Mock) Name() string          { return "mock" }

// Reset clears recorded sends and the failure counter.
func (m *Mock) Reset() {
	m.Sends = nil
	m.calls = 0
}
