// Package notify delivers keyword alerts to a webhook endpoint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/pagewatch/pkg/domain"
)

// DefaultTimeout is the webhook request timeout if none set
const DefaultTimeout = 15 * time.Second

// WebhookConfig defines webhook notifier parameters
type WebhookConfig struct {
	URL      string
	Format   Format
	Username string // overrides webhook's default bot name, discord only
	Timeout  time.Duration
}

// Webhook posts alerts to the configured URL
type Webhook struct {
	url      string
	format   Format
	username string
	client   *http.Client
}

type discordPayload struct {
	Content         string          `json:"content"`
	Username        string          `json:"username,omitempty"`
	Embeds          []discordEmbed  `json:"embeds"`
	AllowedMentions discordMentions `json:"allowed_mentions"`
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type discordMentions struct {
	Parse []string `json:"parse"`
}

type textPayload struct {
	Text string `json:"text"`
}

// NewWebhook makes webhook notifier
func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Format == "" {
		cfg.Format = FormatDiscord
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Webhook{
		url:      cfg.URL,
		format:   cfg.Format,
		username: cfg.Username,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Send posts the alert. Any failure returned as *domain.NotifyError, nothing is retried.
func (w *Webhook) Send(ctx context.Context, alert domain.Alert) error {
	body, err := json.Marshal(w.payload(alert))
	if err != nil {
		return &domain.NotifyError{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return &domain.NotifyError{Err: fmt.Errorf("create request: %w", redactURL(err))}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return &domain.NotifyError{Err: redactURL(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.NotifyError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
			Err:        errors.New("unexpected status code"),
		}
	}

	lgr.Printf("[DEBUG] webhook accepted alert for %s, status %d", alert.URL, resp.StatusCode)
	return nil
}

func (w *Webhook) payload(alert domain.Alert) any {
	msg := Message(alert)
	if w.format == FormatText {
		return textPayload{Text: msg}
	}
	return discordPayload{
		Content:  truncate(msg, discordContentLimit),
		Username: w.username,
		Embeds: []discordEmbed{{
			Title:       "Keywords detected",
			Description: strings.Join(sortedKeywords(alert), ", "),
			URL:         alert.URL,
		}},
		AllowedMentions: discordMentions{Parse: []string{}},
	}
}

// redactURL drops the URL from *url.Error, webhook URLs carry access tokens and
// errors end up in the status API which is not covered by log secrets
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request: %w", strings.ToLower(urlErr.Op), urlErr.Err)
	}
	return err
}
