// Package memstore provides an in-memory implementation of the alert and
// event stores, suitable for single-process deployments and tests. All
// mutations are serialized per owning key: the idempotency check for
// alert creation is atomic with the insert, and lifecycle transitions
// lock only the alert they touch.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"alertcore/internal/model"
)

// Store holds alerts, events, and alert-rule linkages in memory.
type Store struct {
	mu       sync.RWMutex
	alerts   map[string]*alertEntry
	events   map[string]*model.Event
	linkages []model.AlertRuleLinkage

	// alertByEventRule is the idempotency index: (event id, rule id) ->
	// alert id. Guarded by mu together with the alert insert, so
	// concurrent reprocessing of the same event cannot create duplicates.
	alertByEventRule map[string]string
}

type alertEntry struct {
	mu    sync.Mutex
	alert model.Alert
}

// New creates an empty store.
func New() *Store {
	return &Store{
		alerts:           make(map[string]*alertEntry),
		events:           make(map[string]*model.Event),
		alertByEventRule: make(map[string]string),
	}
}

func eventRuleKey(eventID, ruleID string) string {
	return eventID + "/" + ruleID
}

// SaveEvent stores an event, overwriting any previous record with the
// same id. Redelivered events are expected under at-least-once ingestion.
func (s *Store) SaveEvent(ctx context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A redelivery must not clear promotion markers already set.
	if existing, ok := s.events[e.ID]; ok && existing.Promoted {
		return nil
	}
	clone := *e
	s.events[e.ID] = &clone
	return nil
}

// GetEvent retrieves an event by id.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", model.ErrNotFound, eventID)
	}
	clone := *e
	return &clone, nil
}

// MarkPromoted sets the promotion markers on an event. Monotonic: an
// already-promoted event keeps its original alert id.
func (s *Store) MarkPromoted(ctx context.Context, eventID, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return fmt.Errorf("%w: event %s", model.ErrNotFound, eventID)
	}
	if e.Promoted {
		return nil
	}
	e.Promoted = true
	e.PromotedAlertID = alertID
	return nil
}

// ListEvents returns events matching the filter, newest-first, paginated.
func (s *Store) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	s.mu.RLock()
	matched := make([]*model.Event, 0)
	for _, e := range s.events {
		if filter.Matches(e) {
			clone := *e
			matched = append(matched, &clone)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	start, end := model.Paginate(filter.Page, filter.Limit, len(matched))
	return matched[start:end], nil
}

// CreateAlert inserts a new alert unconditionally (the promotion path,
// which carries its own idempotency on the event's promotion marker).
func (s *Store) CreateAlert(ctx context.Context, a *model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[a.ID]; exists {
		return fmt.Errorf("%w: alert %s already exists", model.ErrStorageFault, a.ID)
	}
	s.insertLocked(a)
	return nil
}

// CreateAlertForEvent inserts an alert produced by a rule match, keyed by
// the (event, rule) pair. If that pair already created an alert the
// existing alert id is returned with created=false and nothing is
// written. The check and the insert happen under one lock.
func (s *Store) CreateAlertForEvent(ctx context.Context, eventID, ruleID string, a *model.Alert, linkage model.AlertRuleLinkage) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := eventRuleKey(eventID, ruleID)
	if existingID, ok := s.alertByEventRule[key]; ok {
		return existingID, false, nil
	}

	s.insertLocked(a)
	s.alertByEventRule[key] = a.ID
	s.linkages = append(s.linkages, linkage)
	return a.ID, true, nil
}

func (s *Store) insertLocked(a *model.Alert) {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	clone := *a
	s.alerts[a.ID] = &alertEntry{alert: clone}
}

// GetAlert retrieves an alert by id.
func (s *Store) GetAlert(ctx context.Context, alertID string) (*model.Alert, error) {
	entry, err := s.entry(alertID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	clone := entry.alert
	return &clone, nil
}

func (s *Store) entry(alertID string) (*alertEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.alerts[alertID]
	if !ok {
		return nil, fmt.Errorf("%w: alert %s", model.ErrNotFound, alertID)
	}
	return entry, nil
}

// Acknowledge transitions an alert from active to acknowledged.
func (s *Store) Acknowledge(ctx context.Context, alertID, userID string) (*model.Alert, error) {
	entry, err := s.entry(alertID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.alert.Status != model.AlertStatusActive {
		return nil, fmt.Errorf("%w: cannot acknowledge alert %s in status %s", model.ErrInvalidTransition, alertID, entry.alert.Status)
	}
	now := time.Now().UTC()
	entry.alert.Status = model.AlertStatusAcknowledged
	entry.alert.AcknowledgedAt = &now
	entry.alert.AcknowledgedBy = userID
	entry.alert.UpdatedAt = now

	clone := entry.alert
	return &clone, nil
}

// Resolve transitions an alert from active or acknowledged to resolved.
// Resolved is terminal.
func (s *Store) Resolve(ctx context.Context, alertID, userID string) (*model.Alert, error) {
	entry, err := s.entry(alertID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	switch entry.alert.Status {
	case model.AlertStatusActive, model.AlertStatusAcknowledged:
	default:
		return nil, fmt.Errorf("%w: cannot resolve alert %s in status %s", model.ErrInvalidTransition, alertID, entry.alert.Status)
	}
	now := time.Now().UTC()
	entry.alert.Status = model.AlertStatusResolved
	entry.alert.ResolvedAt = &now
	entry.alert.ResolvedBy = userID
	entry.alert.UpdatedAt = now

	clone := entry.alert
	return &clone, nil
}

// ListAlerts returns alerts matching the filter, newest-first, paginated.
func (s *Store) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, error) {
	s.mu.RLock()
	entries := make([]*alertEntry, 0, len(s.alerts))
	for _, entry := range s.alerts {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	matched := make([]*model.Alert, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		clone := entry.alert
		entry.mu.Unlock()
		if filter.Matches(&clone) {
			matched = append(matched, &clone)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	start, end := model.Paginate(filter.Page, filter.Limit, len(matched))
	return matched[start:end], nil
}

// Linkages returns the provenance edges recorded for an alert, in
// insertion order.
func (s *Store) Linkages(ctx context.Context, alertID string) ([]model.AlertRuleLinkage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AlertRuleLinkage, 0)
	for _, l := range s.linkages {
		if l.AlertID == alertID {
			out = append(out, l)
		}
	}
	return out, nil
}

// AddLinkage appends a provenance edge outside the rule-match path (the
// promotion pipeline records its edge through here).
func (s *Store) AddLinkage(ctx context.Context, linkage model.AlertRuleLinkage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkages = append(s.linkages, linkage)
	return nil
}
