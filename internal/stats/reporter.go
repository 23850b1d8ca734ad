package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// StatsKeyPrefix is the Redis key prefix for per-rule statistics.
	StatsKeyPrefix = "stats:rule:"
	// StatsTTL is how long reported statistics stay in Redis if not
	// refreshed.
	StatsTTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing
	// statistics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// Reporter periodically writes the aggregator's per-rule statistics to
// Redis so external analytics and dashboards can read them without
// touching the engine.
type Reporter struct {
	aggregator     *Aggregator
	redis          *redis.Client
	reportInterval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewReporter creates a reporter for the given aggregator.
func NewReporter(aggregator *Aggregator, redisClient *redis.Client) *Reporter {
	return &Reporter{
		aggregator:     aggregator,
		redis:          redisClient,
		reportInterval: DefaultReportInterval,
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing statistics to Redis.
func (r *Reporter) SetReportInterval(interval time.Duration) {
	r.reportInterval = interval
}

// Start begins periodic reporting in a background goroutine. A final
// write happens on shutdown.
func (r *Reporter) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.writeStats(context.Background())
				return
			case <-r.stopCh:
				r.writeStats(context.Background())
				return
			case <-ticker.C:
				r.writeStats(ctx)
			}
		}
	}()
}

// Stop stops the reporter and waits for the final write.
func (r *Reporter) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// writeStats writes one JSON document per rule under stats:rule:<id>.
func (r *Reporter) writeStats(ctx context.Context) {
	all := r.aggregator.All()
	for ruleID, st := range all {
		data, err := json.Marshal(st)
		if err != nil {
			slog.Error("Failed to marshal rule statistics", "rule_id", ruleID, "error", err)
			continue
		}
		if err := r.redis.Set(ctx, StatsKeyPrefix+ruleID, data, StatsTTL).Err(); err != nil {
			slog.Warn("Failed to write rule statistics to Redis",
				"rule_id", ruleID,
				"error", err,
			)
			// Keep writing the remaining rules; the next interval retries.
		}
	}
}
