package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alertcore/internal/model"
)

type fakeSender struct {
	channel string
	calls   int
	errs    []error
}

func (f *fakeSender) Send(context.Context, string, *model.Alert) error {
	f.calls++
	if f.calls <= len(f.errs) {
		return f.errs[f.calls-1]
	}
	return nil
}

func (f *fakeSender) Type() string { return f.channel }

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		BackoffFactor:  1.0,
	}
}

func testAlert() *model.Alert {
	return &model.Alert{
		ID:       "alert-1",
		Title:    "db down",
		Severity: model.SeverityCritical,
		Status:   model.AlertStatusActive,
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", errors.New("i/o timeout"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"rate limited", errors.New("429 too many requests"), true},
		{"service unavailable", errors.New("server returned 503"), true},
		{"invalid input", errors.New("invalid webhook URL"), false},
		{"missing field", errors.New("webhook URL is required"), false},
		{"unknown", errors.New("something odd"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWithRetryRecoversFromTransientFailure(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetry(), "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Errorf("WithRetry() error = %v, want nil after recovery", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetryFailsFastOnPermanentError(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetry(), "test", func() error {
		calls++
		return errors.New("invalid recipient")
	})
	if err == nil {
		t.Error("WithRetry() error = nil, want permanent failure")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries on permanent error)", calls)
	}
}

func TestServiceSendUnknownChannel(t *testing.T) {
	svc := NewService(NewRegistry())
	svc.SetRetryConfig(fastRetry())

	err := svc.Send(context.Background(), []string{"pager"}, []string{"x"}, testAlert())
	if err == nil {
		t.Error("Send() error = nil, want unknown channel error")
	}
}

func TestServiceSendRetriesTransient(t *testing.T) {
	sender := &fakeSender{channel: "webhook", errs: []error{errors.New("timeout")}}
	registry := NewRegistry()
	registry.Register(sender)
	svc := NewService(registry)
	svc.SetRetryConfig(fastRetry())

	err := svc.Send(context.Background(), []string{"webhook"}, []string{"https://hooks.internal/x"}, testAlert())
	if err != nil {
		t.Errorf("Send() error = %v, want nil after retry", err)
	}
	if sender.calls != 2 {
		t.Errorf("sender calls = %d, want 2", sender.calls)
	}
}

func TestWebhookSenderPostsPayload(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWebhookSender()
	if err := s.Send(context.Background(), srv.URL, testAlert()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %s, want application/json", gotContentType)
	}
}

func TestWebhookSenderRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewWebhookSender()
	if err := s.Send(context.Background(), srv.URL, testAlert()); err == nil {
		t.Error("Send() error = nil, want status error")
	}
}

func TestWebhookSenderValidatesURL(t *testing.T) {
	s := NewWebhookSender()
	if err := s.Send(context.Background(), "not-a-url", testAlert()); err == nil {
		t.Error("Send() error = nil, want invalid URL error")
	}
	if err := s.Send(context.Background(), "", testAlert()); err == nil {
		t.Error("Send() error = nil, want missing URL error")
	}
}

func TestSlackSenderValidatesURL(t *testing.T) {
	s := NewSlackSender()
	if err := s.Send(context.Background(), "#incidents", testAlert()); err == nil {
		t.Error("Send() error = nil, want invalid URL error for channel name")
	}
}
