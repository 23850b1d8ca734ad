package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"alertcore/internal/auditlog"
	"alertcore/internal/bus"
	"alertcore/internal/config"
	"alertcore/internal/consumer"
	"alertcore/internal/database"
	"alertcore/internal/engine"
	"alertcore/internal/escalation"
	"alertcore/internal/matcher"
	"alertcore/internal/memstore"
	"alertcore/internal/notify"
	"alertcore/internal/processor"
	"alertcore/internal/producer"
	"alertcore/internal/rulechange"
	"alertcore/internal/snapshot"
	"alertcore/internal/stats"
)

func main() {
	cfg := &config.Config{}
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", "localhost:9092", "Kafka broker addresses (comma-separated)")
	flag.StringVar(&cfg.EventsTopic, "events-topic", "events.ingest", "Kafka topic for incoming events")
	flag.StringVar(&cfg.AlertsTopic, "alerts-topic", "alerts.created", "Kafka topic for created alerts")
	flag.StringVar(&cfg.OutcomesTopic, "outcomes-topic", "engine.outcomes", "Kafka topic for evaluation outcomes")
	flag.StringVar(&cfg.RuleChangedTopic, "rule-changed-topic", "rule.changed", "Kafka topic for rule change events")
	flag.StringVar(&cfg.ConsumerGroupID, "consumer-group-id", "alertcore-group", "Kafka consumer group ID for events.ingest")
	flag.StringVar(&cfg.RuleChangedGroupID, "rule-changed-group-id", "alertcore-rule-changed-group", "Kafka consumer group ID for rule.changed")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", "localhost:6379", "Redis server address")
	flag.DurationVar(&cfg.VersionPollInterval, "version-poll-interval", 5*time.Second, "Interval for polling Redis rule version")
	flag.DurationVar(&cfg.StatsReportInterval, "stats-report-interval", 30*time.Second, "Interval for publishing rule statistics to Redis")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", config.GetEnvOrDefault("DATABASE_URL", ""), "PostgreSQL DSN (empty runs the in-memory store)")
	flag.StringVar(&cfg.FallbackTeam, "fallback-team", "platform-oncall", "Team assigned when a rule or promotion names none")
	flag.DurationVar(&cfg.NotifyTimeout, "notify-timeout", 5*time.Second, "Timeout for a single notification dispatch")
	escalationTopic := flag.String("escalation-topic", "escalations.pending", "Kafka topic for escalation requests")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting alert core service",
		"kafka_brokers", cfg.KafkaBrokers,
		"events_topic", cfg.EventsTopic,
		"alerts_topic", cfg.AlertsTopic,
		"outcomes_topic", cfg.OutcomesTopic,
		"rule_changed_topic", cfg.RuleChangedTopic,
		"redis_addr", cfg.RedisAddr,
		"version_poll_interval", cfg.VersionPollInterval,
		"durable_store", cfg.PostgresDSN != "",
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	slog.Info("Connecting to Redis", "addr", cfg.RedisAddr)
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		slog.Info("Tip: Start Redis with 'docker compose up -d redis' or ensure Redis is running")
		os.Exit(1)
	}

	loader := snapshot.NewLoader(redisClient)

	slog.Info("Loading initial rule snapshot from Redis")
	snap, err := loader.LoadSnapshot(ctx)
	if err != nil {
		slog.Error("Failed to load initial snapshot", "error", err)
		slog.Info("Tip: Ensure the rule authoring service has published the snapshot to Redis")
		os.Exit(1)
	}

	ruleMatcher := matcher.NewMatcher(snap.RuleSet())
	slog.Info("Initial rule set built", "rules_count", ruleMatcher.RuleCount())

	reload := snapshot.NewReloader(loader, ruleMatcher, cfg.VersionPollInterval)
	if err := reload.Start(ctx); err != nil {
		slog.Error("Failed to start version reloader", "error", err)
		os.Exit(1)
	}

	// Storage: Postgres when a DSN is set, in-memory otherwise. The
	// in-memory audit log pairs with the in-memory store.
	var (
		alertStore engine.AlertStore
		eventStore engine.EventStore
		audit      engine.AuditLog
	)
	if cfg.PostgresDSN != "" {
		db, err := database.NewDB(cfg.PostgresDSN)
		if err != nil {
			slog.Error("Failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		alertStore, eventStore, audit = db, db, db
	} else {
		store := memstore.New()
		alertStore, eventStore = store, store
		audit = auditlog.New()
	}

	aggregator := stats.NewAggregator()
	reporter := stats.NewReporter(aggregator, redisClient)
	reporter.SetReportInterval(cfg.StatsReportInterval)
	reporter.Start(ctx)
	defer reporter.Stop()

	eventBus := bus.New()
	defer eventBus.Close()

	registry := notify.NewRegistry()
	registry.Register(notify.NewWebhookSender())
	registry.Register(notify.NewSlackSender())
	kafkaSender, err := notify.NewKafkaSender(cfg.KafkaBrokers)
	if err != nil {
		slog.Error("Failed to create Kafka notification sender", "error", err)
		os.Exit(1)
	}
	defer kafkaSender.Close()
	registry.Register(kafkaSender)
	sink := notify.NewService(registry)

	escalator, err := escalation.NewProducer(cfg.KafkaBrokers, *escalationTopic)
	if err != nil {
		slog.Error("Failed to create escalation producer", "error", err)
		os.Exit(1)
	}
	defer escalator.Close()

	eng := engine.New(ruleMatcher, engine.Deps{
		Alerts:    alertStore,
		Events:    eventStore,
		Audit:     audit,
		Stats:     aggregator,
		Sink:      sink,
		Escalator: escalator,
		Bus:       eventBus,
	}, engine.Config{
		FallbackTeam:  cfg.FallbackTeam,
		NotifyTimeout: cfg.NotifyTimeout,
	})
	defer eng.Close()

	slog.Info("Connecting to rule.changed consumer", "topic", cfg.RuleChangedTopic)
	ruleChangedConsumer, err := rulechange.NewConsumer(cfg.KafkaBrokers, cfg.RuleChangedTopic, cfg.RuleChangedGroupID)
	if err != nil {
		slog.Error("Failed to create rule.changed consumer", "error", err)
		slog.Info("Tip: Start Kafka with 'docker compose up -d kafka'")
		os.Exit(1)
	}
	defer ruleChangedConsumer.Close()

	ruleHandler := rulechange.NewHandler(ruleChangedConsumer, audit, reload)
	go ruleHandler.Run(ctx)

	slog.Info("Connecting to Kafka consumer", "topic", cfg.EventsTopic)
	eventConsumer, err := consumer.NewConsumer(cfg.KafkaBrokers, cfg.EventsTopic, cfg.ConsumerGroupID)
	if err != nil {
		slog.Error("Failed to create Kafka consumer", "error", err)
		slog.Info("Tip: Start Kafka with 'docker compose up -d kafka'")
		os.Exit(1)
	}
	defer eventConsumer.Close()

	alertProducer, err := producer.NewProducer(cfg.KafkaBrokers, cfg.AlertsTopic)
	if err != nil {
		slog.Error("Failed to create alerts producer", "error", err)
		os.Exit(1)
	}
	defer alertProducer.Close()

	outcomeProducer, err := producer.NewProducer(cfg.KafkaBrokers, cfg.OutcomesTopic)
	if err != nil {
		slog.Error("Failed to create outcomes producer", "error", err)
		os.Exit(1)
	}
	defer outcomeProducer.Close()

	proc := processor.New(eventConsumer, eng, alertStore, outcomeProducer, alertProducer)

	slog.Info("Starting event evaluation loop")
	if err := proc.Run(ctx); err != nil {
		slog.Error("Event processing failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Alert core service stopped")
}
