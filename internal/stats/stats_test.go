package stats

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestAggregator_Record(t *testing.T) {
	a := NewAggregator()

	a.Record("rule-1", Sample{Matched: true, ExecutionTime: 2 * time.Millisecond, AlertCreated: true})
	a.Record("rule-1", Sample{Matched: false, ExecutionTime: 4 * time.Millisecond})
	a.Record("rule-1", Sample{Matched: true, ExecutionTime: 6 * time.Millisecond})

	st, ok := a.Snapshot("rule-1")
	if !ok {
		t.Fatal("Snapshot() not found for rule-1")
	}
	if st.EvaluationCount != 3 {
		t.Errorf("EvaluationCount = %d, want 3", st.EvaluationCount)
	}
	if st.TimesTriggered != 2 {
		t.Errorf("TimesTriggered = %d, want 2", st.TimesTriggered)
	}
	if st.AlertsCreated != 1 {
		t.Errorf("AlertsCreated = %d, want 1", st.AlertsCreated)
	}
	// Running mean of 2, 4, 6 ms.
	if math.Abs(st.AverageExecutionTimeMs-4.0) > 1e-9 {
		t.Errorf("AverageExecutionTimeMs = %v, want 4.0", st.AverageExecutionTimeMs)
	}
	if math.Abs(st.SuccessRate-2.0/3.0) > 1e-9 {
		t.Errorf("SuccessRate = %v, want 2/3", st.SuccessRate)
	}
}

func TestAggregator_RunningMeanMatchesFormula(t *testing.T) {
	a := NewAggregator()

	samples := []time.Duration{
		10 * time.Millisecond,
		1 * time.Millisecond,
		7 * time.Millisecond,
		3 * time.Millisecond,
	}

	var wantAvg float64
	for i, d := range samples {
		a.Record("rule-1", Sample{ExecutionTime: d})
		sampleMs := float64(d) / float64(time.Millisecond)
		wantAvg += (sampleMs - wantAvg) / float64(i+1)
	}

	st, _ := a.Snapshot("rule-1")
	if math.Abs(st.AverageExecutionTimeMs-wantAvg) > 1e-9 {
		t.Errorf("AverageExecutionTimeMs = %v, want %v", st.AverageExecutionTimeMs, wantAvg)
	}
}

func TestAggregator_Invariants(t *testing.T) {
	a := NewAggregator()

	// Arbitrary mix of samples; the counter invariants must hold after
	// every sequence.
	for i := 0; i < 100; i++ {
		a.Record("rule-1", Sample{
			Matched:      i%2 == 0,
			AlertCreated: i%4 == 0,
		})
	}

	st, _ := a.Snapshot("rule-1")
	if st.TimesTriggered > st.EvaluationCount {
		t.Errorf("TimesTriggered (%d) > EvaluationCount (%d)", st.TimesTriggered, st.EvaluationCount)
	}
	if st.AlertsCreated > st.TimesTriggered {
		t.Errorf("AlertsCreated (%d) > TimesTriggered (%d)", st.AlertsCreated, st.TimesTriggered)
	}
}

func TestAggregator_ConcurrentRecords(t *testing.T) {
	a := NewAggregator()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				a.Record("rule-1", Sample{Matched: true, AlertCreated: true, ExecutionTime: time.Millisecond})
				a.Record("rule-2", Sample{})
			}
		}()
	}
	wg.Wait()

	st1, _ := a.Snapshot("rule-1")
	if st1.EvaluationCount != 1000 || st1.TimesTriggered != 1000 || st1.AlertsCreated != 1000 {
		t.Errorf("rule-1 counters = %+v, want 1000 each", st1)
	}
	st2, _ := a.Snapshot("rule-2")
	if st2.EvaluationCount != 1000 || st2.TimesTriggered != 0 {
		t.Errorf("rule-2 counters = %+v, want 1000 evaluations, 0 triggers", st2)
	}
}

func TestAggregator_SetFalsePositiveRate(t *testing.T) {
	a := NewAggregator()
	a.Record("rule-1", Sample{Matched: true})
	a.SetFalsePositiveRate("rule-1", 0.25)

	st, _ := a.Snapshot("rule-1")
	if st.FalsePositiveRate != 0.25 {
		t.Errorf("FalsePositiveRate = %v, want 0.25", st.FalsePositiveRate)
	}
}

func TestAggregator_SnapshotUnknownRule(t *testing.T) {
	a := NewAggregator()
	if _, ok := a.Snapshot("missing"); ok {
		t.Error("Snapshot(missing) ok = true, want false")
	}
	if len(a.All()) != 0 {
		t.Errorf("All() on empty aggregator = %v, want empty", a.All())
	}
}
