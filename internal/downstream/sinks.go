package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LoggingSink is the demo notification sink: it logs instead of delivering.
type LoggingSink struct {
	logger *zap.Logger
	from   string
}

// NewLoggingSink builds the sink.
func NewLoggingSink(logger *zap.Logger, from string) *LoggingSink {
	return &LoggingSink{logger: logger, from: from}
}

// Notify logs the would-be delivery and always succeeds.
func (s *LoggingSink) Notify(ctx context.Context, templateKey, recipient string, templateCtx map[string]string) error {
	s.logger.Info("notification",
		zap.String("template", templateKey),
		zap.String("recipient", recipient),
		zap.String("from", s.from),
		zap.Any("context", templateCtx))
	return nil
}

// WebhookSink posts notifications as JSON to a configured endpoint, which
// owns queuing and redelivery beyond this single bounded attempt.
type WebhookSink struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookSink builds the sink with a bounded request timeout.
func NewWebhookSink(url string, timeout time.Duration, logger *zap.Logger) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type webhookPayload struct {
	TemplateKey string            `json:"templateKey"`
	Recipient   string            `json:"recipient"`
	Context     map[string]string `json:"context,omitempty"`
}

// Notify delivers one notification. 4xx responses are validation failures
// and wrapped in ErrInvalidRecord so handlers classify them as permanent.
func (s *WebhookSink) Notify(ctx context.Context, templateKey, recipient string, templateCtx map[string]string) error {
	body, err := json.Marshal(webhookPayload{
		TemplateKey: templateKey,
		Recipient:   recipient,
		Context:     templateCtx,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification sink: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: notification sink rejected template %s with status %d", ErrInvalidRecord, templateKey, resp.StatusCode)
	default:
		return fmt.Errorf("notification sink returned status %d", resp.StatusCode)
	}
}
