package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"alertcore/internal/model"
)

// Service coordinates alert delivery across channels. It implements the
// engine's notification sink contract.
type Service struct {
	registry *Registry
	retry    RetryConfig
}

// NewService creates a delivery service with the given registry.
func NewService(registry *Registry) *Service {
	return &Service{
		registry: registry,
		retry:    DefaultRetryConfig(),
	}
}

// SetRetryConfig overrides the default retry behavior.
func (s *Service) SetRetryConfig(cfg RetryConfig) {
	s.retry = cfg
}

// Send delivers the alert to every recipient on every channel. Each
// delivery retries independently on transient failures; the joined
// error covers everything that still failed.
func (s *Service) Send(ctx context.Context, channels, recipients []string, alert *model.Alert) error {
	if len(channels) == 0 {
		return fmt.Errorf("no channels given for alert %s", alert.ID)
	}

	var errs []error
	for _, channel := range channels {
		sender, ok := s.registry.Get(channel)
		if !ok {
			slog.Warn("Unknown notification channel",
				"channel", channel,
				"alert_id", alert.ID,
				"registered", s.registry.List(),
			)
			errs = append(errs, fmt.Errorf("unknown channel %q", channel))
			continue
		}

		for _, recipient := range recipients {
			op := fmt.Sprintf("%s delivery for alert %s", channel, alert.ID)
			err := WithRetry(ctx, s.retry, op, func() error {
				return sender.Send(ctx, recipient, alert)
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("%s to %s: %w", channel, recipient, err))
				continue
			}
			slog.Info("Notification delivered",
				"channel", channel,
				"alert_id", alert.ID,
				"severity", alert.Severity,
			)
		}
	}
	return errors.Join(errs...)
}
