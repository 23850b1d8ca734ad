// Package matcher evaluates rules against events and provides thread-safe
// access to the active rule set, supporting atomic swapping when rules are
// updated.
package matcher

import (
	"sort"
	"sync"

	"alertcore/internal/condition"
	"alertcore/internal/model"
)

// Matches reports whether the rule matches the event: every condition in
// the rule's stored order must evaluate true (strict AND). The empty
// condition list matches. Evaluation short-circuits on the first false.
func Matches(e *model.Event, r *model.Rule) bool {
	for _, c := range r.Conditions {
		if !condition.Evaluate(e, c) {
			return false
		}
	}
	return true
}

// RuleSet is an immutable view of the active rules and running A/B tests
// the engine evaluates against. Built once per snapshot load and swapped
// atomically.
type RuleSet struct {
	rules []model.Rule
	tests map[string]model.ABTest // base rule id -> test
}

// NewRuleSet builds a rule set from the given rules and tests. Inactive
// rules are dropped and the remainder is ordered by ascending priority,
// with rule id as a stable tie-break.
func NewRuleSet(rules []model.Rule, tests []model.ABTest) *RuleSet {
	active := make([]model.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].ID < active[j].ID
	})

	byBase := make(map[string]model.ABTest, len(tests))
	for _, t := range tests {
		byBase[t.BaseRuleID] = t
	}

	return &RuleSet{rules: active, tests: byBase}
}

// Rules returns the active rules in evaluation order.
func (s *RuleSet) Rules() []model.Rule {
	return s.rules
}

// TestFor returns the A/B test whose base rule is ruleID, if one exists.
func (s *RuleSet) TestFor(ruleID string) (model.ABTest, bool) {
	t, ok := s.tests[ruleID]
	return t, ok
}

// Matcher provides thread-safe access to the current rule set.
type Matcher struct {
	mu  sync.RWMutex
	set *RuleSet
}

// NewMatcher creates a matcher with the given initial rule set.
func NewMatcher(set *RuleSet) *Matcher {
	return &Matcher{set: set}
}

// RuleSet returns the current rule set for one evaluation pass. The
// returned set is immutable; a concurrent update swaps the pointer
// without disturbing readers.
func (m *Matcher) RuleSet() *RuleSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.set
}

// UpdateRuleSet atomically swaps the rule set with a new one.
func (m *Matcher) UpdateRuleSet(set *RuleSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set = set
}

// RuleCount returns the number of active rules in the current set.
func (m *Matcher) RuleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.set.rules)
}
