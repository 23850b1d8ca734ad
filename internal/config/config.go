// Package config provides configuration parsing and validation for the
// alert core service.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all configuration parameters for the alert core service.
type Config struct {
	KafkaBrokers       string
	EventsTopic        string
	AlertsTopic        string
	OutcomesTopic      string
	RuleChangedTopic   string
	ConsumerGroupID    string
	RuleChangedGroupID string

	RedisAddr           string
	VersionPollInterval time.Duration
	StatsReportInterval time.Duration

	// PostgresDSN selects the durable store. Empty runs on the in-memory
	// store.
	PostgresDSN string

	FallbackTeam  string
	NotifyTimeout time.Duration
}

// Validate checks that all required configuration fields are set and
// have valid values.
func (c *Config) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.EventsTopic == "" {
		return fmt.Errorf("events-topic cannot be empty")
	}
	if c.AlertsTopic == "" {
		return fmt.Errorf("alerts-topic cannot be empty")
	}
	if c.OutcomesTopic == "" {
		return fmt.Errorf("outcomes-topic cannot be empty")
	}
	if c.RuleChangedTopic == "" {
		return fmt.Errorf("rule-changed-topic cannot be empty")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.RuleChangedGroupID == "" {
		return fmt.Errorf("rule-changed-group-id cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty")
	}
	if c.VersionPollInterval <= 0 {
		return fmt.Errorf("version-poll-interval must be > 0")
	}
	if c.StatsReportInterval <= 0 {
		return fmt.Errorf("stats-report-interval must be > 0")
	}
	if c.FallbackTeam == "" {
		return fmt.Errorf("fallback-team cannot be empty")
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("notify-timeout must be > 0")
	}
	return nil
}

// GetEnvOrDefault returns env var value or default.
func GetEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
