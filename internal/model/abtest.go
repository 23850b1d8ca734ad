package model

import (
	"fmt"
	"time"
)

// ABTestStatus is the lifecycle state of an A/B test.
type ABTestStatus string

// A/B test lifecycle: draft -> running -> {completed, aborted}.
// Only running tests route traffic.
const (
	ABTestDraft     ABTestStatus = "draft"
	ABTestRunning   ABTestStatus = "running"
	ABTestCompleted ABTestStatus = "completed"
	ABTestAborted   ABTestStatus = "aborted"
)

// VariantResult accumulates raw counters for one variant. Statistical
// significance is an external analytics computation; the engine only
// guarantees consistent accumulation of these inputs.
type VariantResult struct {
	Evaluations   int64   `json:"evaluations"`
	Matches       int64   `json:"matches"`
	AlertsCreated int64   `json:"alerts_created"`
	PValue        float64 `json:"p_value,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
}

// Variant is one arm of an A/B test: a full rule definition plus its
// share of routed traffic.
type Variant struct {
	Rule              Rule          `json:"rule"`
	TrafficPercentage int           `json:"traffic_percentage"`
	IsControl         bool          `json:"is_control"`
	Result            VariantResult `json:"result"`
}

// ABTest groups a base rule with N variants receiving a deterministic
// traffic split.
type ABTest struct {
	ID         string       `json:"test_id"`
	BaseRuleID string       `json:"base_rule_id"`
	Name       string       `json:"name,omitempty"`
	Status     ABTestStatus `json:"status"`
	Variants   []Variant    `json:"variants"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Validate checks the A/B test invariants: traffic percentages sum to
// 100 and exactly one variant is the control.
func (t *ABTest) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: ab test id cannot be empty", ErrValidation)
	}
	if t.BaseRuleID == "" {
		return fmt.Errorf("%w: ab test %s: base rule id cannot be empty", ErrValidation, t.ID)
	}
	if len(t.Variants) == 0 {
		return fmt.Errorf("%w: ab test %s: at least one variant is required", ErrValidation, t.ID)
	}
	total := 0
	controls := 0
	for i, v := range t.Variants {
		if v.TrafficPercentage < 0 || v.TrafficPercentage > 100 {
			return fmt.Errorf("%w: ab test %s: variant %d: traffic percentage %d out of range", ErrValidation, t.ID, i, v.TrafficPercentage)
		}
		total += v.TrafficPercentage
		if v.IsControl {
			controls++
		}
		if err := v.Rule.Validate(); err != nil {
			return fmt.Errorf("ab test %s: variant %d: %w", t.ID, i, err)
		}
	}
	if total != 100 {
		return fmt.Errorf("%w: ab test %s: traffic percentages sum to %d, want 100", ErrValidation, t.ID, total)
	}
	if controls != 1 {
		return fmt.Errorf("%w: ab test %s: exactly one control variant required, got %d", ErrValidation, t.ID, controls)
	}
	return nil
}
