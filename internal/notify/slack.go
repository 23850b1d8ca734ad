package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"alertcore/internal/model"
)

// maskURL masks sensitive parts of a webhook URL for logging.
func maskURL(url string) string {
	if len(url) > 50 {
		return url[:30] + "..." + url[len(url)-10:]
	}
	return url
}

// SlackSender delivers alerts via Slack Incoming Webhooks.
type SlackSender struct {
	httpClient *http.Client
}

// NewSlackSender creates a new Slack sender.
func NewSlackSender() *SlackSender {
	return &SlackSender{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Type returns the channel this sender handles.
func (s *SlackSender) Type() string {
	return "slack"
}

type slackMessage struct {
	Text string `json:"text"`
}

// Send posts the alert summary to a Slack incoming-webhook URL.
func (s *SlackSender) Send(ctx context.Context, recipient string, alert *model.Alert) error {
	if recipient == "" {
		return fmt.Errorf("slack webhook URL is required")
	}
	if !isValidURL(recipient) {
		return fmt.Errorf("invalid Slack webhook URL: %q (must be a valid HTTP/HTTPS URL, not a channel name)", recipient)
	}

	msg := slackMessage{
		Text: fmt.Sprintf(":rotating_light: *%s* [%s]\n%s\nteam: %s  alert: %s",
			alert.Title, alert.Severity, alert.Description, alert.AssignedTeam, alert.ID),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, recipient, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed (%s): %w", maskURL(recipient), err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}
