package snapshot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"alertcore/internal/model"
)

func sampleRule(id string) model.Rule {
	return model.Rule{
		ID:     id,
		Name:   "rule " + id,
		Active: true,
		Conditions: []model.Condition{
			{Field: "source", Operator: model.OperatorEquals, Value: "database-monitor"},
		},
		Actions: []model.Action{
			{Type: model.ActionCreateAlert, Severity: model.SeverityHigh},
		},
	}
}

func TestSnapshotRuleSetDropsInvalidDefinitions(t *testing.T) {
	bad := sampleRule("rule-bad")
	bad.Conditions[0].Operator = "regex_match" // unknown operator

	snap := Snapshot{
		SchemaVersion: 1,
		Version:       4,
		Rules:         []model.Rule{sampleRule("rule-1"), bad},
	}
	snap.Rules = validRules(snap.Rules)

	if len(snap.Rules) != 1 || snap.Rules[0].ID != "rule-1" {
		t.Fatalf("valid rules = %v, want only rule-1 to survive", snap.Rules)
	}

	set := snap.RuleSet()
	if got := len(set.Rules()); got != 1 {
		t.Errorf("rule set size = %d, want 1", got)
	}
}

func TestValidTestsDropsBadSplit(t *testing.T) {
	good := model.ABTest{
		ID:         "test-1",
		BaseRuleID: "rule-1",
		Status:     model.ABTestRunning,
		Variants: []model.Variant{
			{Rule: sampleRule("rule-1"), TrafficPercentage: 50, IsControl: true},
			{Rule: sampleRule("rule-1-b"), TrafficPercentage: 50},
		},
	}
	bad := good
	bad.ID = "test-2"
	bad.Variants = []model.Variant{
		{Rule: sampleRule("rule-1"), TrafficPercentage: 70, IsControl: true},
		{Rule: sampleRule("rule-1-b"), TrafficPercentage: 50},
	}

	valid := validTests([]model.ABTest{good, bad})
	if len(valid) != 1 || valid[0].ID != "test-1" {
		t.Errorf("valid tests = %v, want only test-1 to survive", valid)
	}
}

func TestLoader_LoadSnapshot_Integration(t *testing.T) {
	// Integration test - requires Redis
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping integration test: Redis not available: %v", err)
	}

	loader := NewLoader(client)

	client.Del(ctx, SnapshotKey, VersionKey)
	if _, err := loader.LoadSnapshot(ctx); err == nil {
		t.Error("LoadSnapshot() should return error for non-existent snapshot")
	}
	version, err := loader.GetVersion(ctx)
	if err != nil || version != 0 {
		t.Errorf("GetVersion() = (%d, %v), want (0, nil) when unset", version, err)
	}

	snap := Snapshot{
		SchemaVersion: 1,
		Version:       7,
		Rules:         []model.Rule{sampleRule("rule-1")},
	}
	data, _ := json.Marshal(snap)
	client.Set(ctx, SnapshotKey, data, time.Minute)
	client.Set(ctx, VersionKey, 7, time.Minute)

	loaded, err := loader.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(loaded.Rules) != 1 || loaded.Rules[0].ID != "rule-1" {
		t.Errorf("loaded rules = %v, want rule-1", loaded.Rules)
	}
	version, err = loader.GetVersion(ctx)
	if err != nil || version != 7 {
		t.Errorf("GetVersion() = (%d, %v), want (7, nil)", version, err)
	}
}
