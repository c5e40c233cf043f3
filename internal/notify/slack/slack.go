// Package slack delivers account notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"
)

const (
	maxBodyLen  = 3000
	httpTimeout = 10 * time.Second
)

// Sender posts notifications to a Slack webhook. It implements dispatch.Sender.
type Sender struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
	now        func() time.Time
}

// New creates a new Slack sender. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Sender {
	if logger == nil {
		logger = log.Nop()
	}
	return &Sender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
		now:        time.Now,
	}
}

// Send posts one notification to the configured Slack webhook. The
// destination is shown in the message since the webhook fixes the channel.
// If no webhook URL is configured, it returns nil immediately.
func (s *Sender) Send(ctx context.Context, destination, subject, body string) error {
	if s.webhookURL == "" {
		return nil
	}

	msg := buildMessage(destination, subject, body, s.now())

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	s.logger.Info(ctx, "slack notification posted", "destination", destination)
	return nil
}

func buildMessage(destination, subject, body string, ts time.Time) map[string]any {
	return map[string]any{
		"text": subject,
		"blocks": []map[string]any{
			headerBlock(subject),
			fieldsBlock(destination),
			{"type": "divider"},
			bodyBlock(body),
			contextBlock(ts),
		},
	}
}

func headerBlock(subject string) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": truncate(subject, 150),
		},
	}
}

func fieldsBlock(destination string) map[string]any {
	return map[string]any{
		"type": "section",
		"fields": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*To:* %s", destination),
			},
		},
	}
}

func bodyBlock(body string) map[string]any {
	text := truncate(body, maxBodyLen)
	if text == "" {
		text = "_No message body._"
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": text,
		},
	}
}

func contextBlock(ts time.Time) map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("recoup • %s", ts.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

// truncate caps s at limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
