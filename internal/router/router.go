// Package router deterministically assigns events to A/B test variants
// according to the configured traffic split.
package router

import (
	"github.com/cespare/xxhash/v2"

	"alertcore/internal/model"
)

// Decision is the result of routing one event through an A/B test.
type Decision struct {
	// Rule is the concrete rule to evaluate for this event.
	Rule model.Rule
	// Routed is true when a running test assigned a variant; false means
	// the base rule should be used as stored.
	Routed bool
	// Confidence reflects routing certainty: the chosen variant's traffic
	// share as a fraction of 1.0. Zero when not routed.
	Confidence float64
	// IsControl marks the control arm of the test.
	IsControl bool
}

// Route picks the variant rule to evaluate for the event. Assignment is
// deterministic and stable: the same event (keyed by correlation id,
// falling back to event id) always lands in the same variant, across
// repeated calls and process restarts. Only running tests route traffic.
func Route(e *model.Event, test *model.ABTest) Decision {
	if test == nil || test.Status != model.ABTestRunning || len(test.Variants) == 0 {
		return Decision{}
	}

	bucket := Bucket(test.ID, stableKey(e))

	// Walk variants in stored order, selecting the one whose cumulative
	// traffic interval contains the bucket.
	cumulative := 0
	for _, v := range test.Variants {
		cumulative += v.TrafficPercentage
		if bucket < cumulative {
			return Decision{
				Rule:       v.Rule,
				Routed:     true,
				Confidence: float64(v.TrafficPercentage) / 100.0,
				IsControl:  v.IsControl,
			}
		}
	}

	// Percentages summing short of 100 leave a residual interval; send it
	// to the last variant so every event gets an assignment.
	last := test.Variants[len(test.Variants)-1]
	return Decision{
		Rule:       last.Rule,
		Routed:     true,
		Confidence: float64(last.TrafficPercentage) / 100.0,
		IsControl:  last.IsControl,
	}
}

// Bucket hashes a stable key into [0,100). The test id participates in
// the hash so distinct tests split traffic independently.
func Bucket(testID, key string) int {
	return int(xxhash.Sum64String(testID+":"+key) % 100)
}

// stableKey prefers the correlation id so related events share a variant,
// falling back to the event id.
func stableKey(e *model.Event) string {
	if e.CorrelationID != "" {
		return e.CorrelationID
	}
	return e.ID
}
