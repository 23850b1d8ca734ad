package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"alertcore/internal/model"
)

// fakeSink records Send calls and can be primed to fail.
type fakeSink struct {
	mu    sync.Mutex
	calls []sinkCall
	err   error
}

type sinkCall struct {
	channels   []string
	recipients []string
	alertID    string
}

func (s *fakeSink) Send(_ context.Context, channels, recipients []string, alert *model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{channels: channels, recipients: recipients, alertID: alert.ID})
	return s.err
}

func (s *fakeSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fakeEscalator records escalation handoffs.
type fakeEscalator struct {
	mu    sync.Mutex
	calls []escalationCall
}

type escalationCall struct {
	alertID string
	after   time.Duration
	policy  string
}

func (f *fakeEscalator) Schedule(_ context.Context, alertID string, after time.Duration, policy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, escalationCall{alertID: alertID, after: after, policy: policy})
	return nil
}

var errStoreDown = errors.New("store down")

// faultyAlertStore wraps a real store and fails alert creation on demand.
type faultyAlertStore struct {
	AlertStore
	failCreate bool
}

func (f *faultyAlertStore) CreateAlertForEvent(ctx context.Context, eventID, ruleID string, a *model.Alert, linkage model.AlertRuleLinkage) (string, bool, error) {
	if f.failCreate {
		return "", false, errStoreDown
	}
	return f.AlertStore.CreateAlertForEvent(ctx, eventID, ruleID, a, linkage)
}

func (f *faultyAlertStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	if f.failCreate {
		return errStoreDown
	}
	return f.AlertStore.CreateAlert(ctx, a)
}
