// Package stats maintains rolling per-rule performance counters for the
// rule engine. Samples for one rule are serialized per rule so the
// counters and the running latency mean stay consistent under concurrent
// evaluation.
package stats

import (
	"sync"
	"time"

	"alertcore/internal/model"
)

// Sample carries the outcome of one rule evaluation.
type Sample struct {
	Matched       bool
	ExecutionTime time.Duration
	AlertCreated  bool
}

// Aggregator accumulates RuleStatistics per rule.
type Aggregator struct {
	mu    sync.RWMutex
	rules map[string]*ruleStats
}

type ruleStats struct {
	mu    sync.Mutex
	stats model.RuleStatistics
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{rules: make(map[string]*ruleStats)}
}

func (a *Aggregator) entry(ruleID string) *ruleStats {
	a.mu.RLock()
	rs, ok := a.rules[ruleID]
	a.mu.RUnlock()
	if ok {
		return rs
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if rs, ok = a.rules[ruleID]; ok {
		return rs
	}
	rs = &ruleStats{}
	a.rules[ruleID] = rs
	return rs
}

// Record folds one evaluation sample into the rule's statistics.
// evaluationCount always increments; timesTriggered and alertsCreated
// only on the corresponding sample flags. The latency mean is the
// running mean new_avg = old_avg + (sample - old_avg) / evaluationCount.
func (a *Aggregator) Record(ruleID string, s Sample) {
	rs := a.entry(ruleID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	st := &rs.stats
	st.EvaluationCount++
	if s.Matched {
		st.TimesTriggered++
	}
	if s.AlertCreated {
		st.AlertsCreated++
	}

	sampleMs := float64(s.ExecutionTime) / float64(time.Millisecond)
	st.AverageExecutionTimeMs += (sampleMs - st.AverageExecutionTimeMs) / float64(st.EvaluationCount)

	st.SuccessRate = float64(st.TimesTriggered) / float64(st.EvaluationCount)
	st.PerformanceImpactScore = st.AverageExecutionTimeMs * float64(st.EvaluationCount) / 1000.0
}

// SetFalsePositiveRate stores the externally computed false-positive rate.
func (a *Aggregator) SetFalsePositiveRate(ruleID string, rate float64) {
	rs := a.entry(ruleID)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.stats.FalsePositiveRate = rate
}

// Snapshot returns a copy of the rule's current statistics.
func (a *Aggregator) Snapshot(ruleID string) (model.RuleStatistics, bool) {
	a.mu.RLock()
	rs, ok := a.rules[ruleID]
	a.mu.RUnlock()
	if !ok {
		return model.RuleStatistics{}, false
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.stats, true
}

// All returns a copy of the statistics for every rule seen so far.
func (a *Aggregator) All() map[string]model.RuleStatistics {
	a.mu.RLock()
	entries := make(map[string]*ruleStats, len(a.rules))
	for id, rs := range a.rules {
		entries[id] = rs
	}
	a.mu.RUnlock()

	out := make(map[string]model.RuleStatistics, len(entries))
	for id, rs := range entries {
		rs.mu.Lock()
		out[id] = rs.stats
		rs.mu.Unlock()
	}
	return out
}
