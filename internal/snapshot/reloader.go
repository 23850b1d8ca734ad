package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"alertcore/internal/matcher"
)

// Reloader polls Redis for rule version changes and hot-swaps the
// matcher's rule set when the version moves. ReloadNow supports
// immediate reload when a rule.changed event arrives.
type Reloader struct {
	loader       *Loader
	matcher      *matcher.Matcher
	pollInterval time.Duration

	mu             sync.Mutex
	currentVersion int64
}

// NewReloader creates a new reloader with the given dependencies.
func NewReloader(loader *Loader, m *matcher.Matcher, pollInterval time.Duration) *Reloader {
	return &Reloader{
		loader:       loader,
		matcher:      m,
		pollInterval: pollInterval,
	}
}

// Start records the current version and begins polling in a background
// goroutine. The goroutine exits when ctx is cancelled.
func (r *Reloader) Start(ctx context.Context) error {
	version, err := r.loader.GetVersion(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.currentVersion = version
	r.mu.Unlock()

	slog.Info("Starting rule version poller",
		"poll_interval", r.pollInterval,
		"initial_version", version,
	)

	go r.pollLoop(ctx)
	return nil
}

func (r *Reloader) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Rule version poller stopped")
			return
		case <-ticker.C:
			if err := r.checkAndReload(ctx); err != nil {
				// Keep polling on failure; the stale rule set stays active.
				slog.Error("Failed to check/reload rules", "error", err)
			}
		}
	}
}

func (r *Reloader) checkAndReload(ctx context.Context) error {
	version, err := r.loader.GetVersion(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	unchanged := version == r.currentVersion
	r.mu.Unlock()
	if unchanged {
		return nil
	}

	snap, err := r.loader.LoadSnapshot(ctx)
	if err != nil {
		return err
	}

	set := snap.RuleSet()
	r.matcher.UpdateRuleSet(set)

	r.mu.Lock()
	old := r.currentVersion
	r.currentVersion = version
	r.mu.Unlock()

	slog.Info("Rule set reloaded",
		"old_version", old,
		"new_version", version,
		"rules_count", r.matcher.RuleCount(),
	)
	return nil
}

// ReloadNow forces an immediate check against Redis. Called when a
// rule.changed event is received, instead of waiting for the next poll.
func (r *Reloader) ReloadNow(ctx context.Context) error {
	return r.checkAndReload(ctx)
}
