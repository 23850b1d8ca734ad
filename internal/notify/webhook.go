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

	"alertcore/internal/model"
)

// webhookPayload is the JSON body posted to webhook recipients.
type webhookPayload struct {
	AlertID       string   `json:"alert_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Severity      string   `json:"severity"`
	Status        string   `json:"status"`
	Source        string   `json:"source,omitempty"`
	AssignedTeam  string   `json:"assigned_team,omitempty"`
	RuleID        string   `json:"rule_id,omitempty"`
	RelatedEvents []string `json:"related_events,omitempty"`
	SentAt        string   `json:"sent_at"`
}

func buildWebhookPayload(alert *model.Alert) webhookPayload {
	return webhookPayload{
		AlertID:       alert.ID,
		Title:         alert.Title,
		Description:   alert.Description,
		Severity:      string(alert.Severity),
		Status:        string(alert.Status),
		Source:        alert.Source,
		AssignedTeam:  alert.AssignedTeam,
		RuleID:        alert.TriggeredByRule,
		RelatedEvents: alert.RelatedEvents,
		SentAt:        time.Now().UTC().Format(time.RFC3339),
	}
}

func isValidURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// WebhookSender delivers alerts via HTTP POST.
type WebhookSender struct {
	httpClient *http.Client
}

// NewWebhookSender creates a new webhook sender.
func NewWebhookSender() *WebhookSender {
	return &WebhookSender{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Type returns the channel this sender handles.
func (s *WebhookSender) Type() string {
	return "webhook"
}

// Send posts the alert payload to the recipient URL.
func (s *WebhookSender) Send(ctx context.Context, recipient string, alert *model.Alert) error {
	if recipient == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if !isValidURL(recipient) {
		return fmt.Errorf("invalid webhook URL: %q (must be a valid HTTP/HTTPS URL)", recipient)
	}

	body, err := json.Marshal(buildWebhookPayload(alert))
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, recipient, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
