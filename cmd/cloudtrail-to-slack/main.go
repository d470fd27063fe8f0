package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/config"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/consumer"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/dedup"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/dispatch"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/metrics"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify/validation"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/producer"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/trail"
)

const serviceName = "cloudtrail-to-slack"

func main() {
	// .env is optional; deployments configure through the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	slog.SetDefault(slog.New(cfg.LogHandler(os.Stdout)))

	slog.Info("Starting cloudtrail-to-slack worker",
		"queue_url", cfg.QueueURL,
		"hook_url", validation.MaskURL(cfg.HookURL),
		"use_default_rules", cfg.UseDefaultRules,
		"rule_errors_notified", cfg.NotifyRuleErrors,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.QueueURL == "" {
		slog.Error("Invalid configuration", "error", "SQS_QUEUE_URL cannot be empty in worker mode")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("Failed to load AWS configuration", "error", err)
		slog.Info("Tip: Ensure AWS credentials and region are available (env, shared config, or instance role)")
		os.Exit(1)
	}

	// Validate already compiled these once; keep the errors handled anyway.
	ruleset, err := cfg.Ruleset()
	if err != nil {
		slog.Error("Failed to compile rules", "error", err)
		os.Exit(1)
	}
	routes, err := cfg.Routes()
	if err != nil {
		slog.Error("Failed to parse routing table", "error", err)
		os.Exit(1)
	}
	slog.Info("Compiled rule sets",
		"match_rules", len(ruleset.Match),
		"ignore_rules", len(ruleset.Ignore),
		"routes", len(routes),
	)

	notifier := notify.New(cfg.HookURL, routes, cfg.EmailFrom)
	retriever := trail.NewRetriever(s3.NewFromConfig(awsCfg))

	// Optional Redis: duplicate suppression plus metrics reporting.
	var suppressor dispatch.Suppressor = dedup.NoopSuppressor{}
	var recorder dispatch.MetricsRecorder
	if cfg.RedisAddr != "" {
		redisClient, err := metrics.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			slog.Info("Tip: Start Redis with 'docker compose up -d redis' or unset REDIS_ADDR")
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.Info("Successfully connected to Redis", "addr", cfg.RedisAddr)

		suppressor = dedup.NewRedisSuppressor(redisClient, cfg.DedupTTL)

		collector := metrics.NewCollector(serviceName, redisClient)
		collector.Start(ctx)
		defer collector.Stop()
		recorder = collector
	}

	// Optional Kafka firehose of matched events.
	var publisher dispatch.Publisher
	if cfg.KafkaBrokers != "" {
		prod, err := producer.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			slog.Error("Failed to create Kafka producer", "error", err)
			slog.Info("Tip: Start Kafka with 'docker compose up -d kafka' or unset KAFKA_BROKERS")
			os.Exit(1)
		}
		defer prod.Close()
		slog.Info("Matched event firehose enabled", "topic", cfg.KafkaTopic)
		publisher = prod
	}

	dispatcher := dispatch.NewDispatcher(
		ruleset,
		retriever,
		notifier,
		suppressor,
		publisher,
		recorder,
		cfg.NotifyRuleErrors,
	)

	worker, err := consumer.NewConsumer(
		sqs.NewFromConfig(awsCfg),
		dispatcher,
		cfg.QueueURL,
		int32(cfg.SQSWaitSeconds),
		int32(cfg.SQSMaxMessages),
	)
	if err != nil {
		slog.Error("Failed to create SQS consumer", "error", err)
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil {
		slog.Error("Worker failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Worker stopped")
}
