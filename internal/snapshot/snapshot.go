// Package snapshot handles loading and deserializing rule snapshots
// from Redis.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"alertcore/internal/matcher"
	"alertcore/internal/model"
)

const (
	// SnapshotKey is the Redis key where the rule snapshot is stored.
	SnapshotKey = "rules:snapshot"
	// VersionKey is the Redis key where the rule version is stored.
	VersionKey = "rules:version"
)

// Snapshot is the serialized rule set published by the authoring side.
type Snapshot struct {
	SchemaVersion int            `json:"schema_version"`
	Version       int64          `json:"version"`
	Rules         []model.Rule   `json:"rules"`
	Tests         []model.ABTest `json:"ab_tests,omitempty"`
}

// Loader handles loading snapshots from Redis.
type Loader struct {
	client *redis.Client
}

// NewLoader creates a new snapshot loader with the given Redis client.
func NewLoader(client *redis.Client) *Loader {
	return &Loader{client: client}
}

// LoadSnapshot loads the rule snapshot from Redis, deserializes it, and
// drops definitions that fail validation. Returns an error if the
// snapshot doesn't exist or deserialization fails.
func (l *Loader) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	data, err := l.client.Get(ctx, SnapshotKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("snapshot not found in Redis (key: %s)", SnapshotKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from Redis: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	snap.Rules = validRules(snap.Rules)
	snap.Tests = validTests(snap.Tests)

	slog.Info("Loaded rule snapshot from Redis",
		"schema_version", snap.SchemaVersion,
		"version", snap.Version,
		"rules_count", len(snap.Rules),
		"tests_count", len(snap.Tests),
	)
	return &snap, nil
}

// validRules drops rule definitions that fail validation. Malformed
// rules are rejected here, at consumption time, so evaluation never
// sees them.
func validRules(rules []model.Rule) []model.Rule {
	valid := rules[:0]
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			slog.Warn("Dropping invalid rule from snapshot",
				"rule_id", r.ID,
				"error", err,
			)
			continue
		}
		valid = append(valid, r)
	}
	return valid
}

func validTests(tests []model.ABTest) []model.ABTest {
	valid := tests[:0]
	for _, t := range tests {
		if err := t.Validate(); err != nil {
			slog.Warn("Dropping invalid A/B test from snapshot",
				"test_id", t.ID,
				"error", err,
			)
			continue
		}
		valid = append(valid, t)
	}
	return valid
}

// RuleSet builds the matcher's evaluation-ordered rule set from the
// snapshot contents.
func (s *Snapshot) RuleSet() *matcher.RuleSet {
	return matcher.NewRuleSet(s.Rules, s.Tests)
}

// GetVersion returns the current rule version from Redis. Returns 0 if
// the version doesn't exist (no rules yet).
func (l *Loader) GetVersion(ctx context.Context) (int64, error) {
	version, err := l.client.Get(ctx, VersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get version from Redis: %w", err)
	}
	return version, nil
}
