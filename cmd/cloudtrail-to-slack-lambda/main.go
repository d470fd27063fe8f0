package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/config"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/dedup"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/dispatch"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/metrics"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/producer"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/trail"
)

// dispatcher is built once per container and reused across invocations.
var dispatcher *dispatch.Dispatcher

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("loading configuration: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}
	slog.SetDefault(slog.New(cfg.LogHandler(os.Stdout)))

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		panic(fmt.Sprintf("loading aws configuration: %v", err))
	}

	ruleset, err := cfg.Ruleset()
	if err != nil {
		panic(fmt.Sprintf("compiling rules: %v", err))
	}
	routes, err := cfg.Routes()
	if err != nil {
		panic(fmt.Sprintf("parsing routing table: %v", err))
	}

	notifier := notify.New(cfg.HookURL, routes, cfg.EmailFrom)
	retriever := trail.NewRetriever(s3.NewFromConfig(awsCfg))

	var suppressor dispatch.Suppressor = dedup.NoopSuppressor{}
	if cfg.RedisAddr != "" {
		redisClient, err := metrics.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			panic(fmt.Sprintf("connecting to redis: %v", err))
		}
		suppressor = dedup.NewRedisSuppressor(redisClient, cfg.DedupTTL)
	}

	var publisher dispatch.Publisher
	if cfg.KafkaBrokers != "" {
		prod, err := producer.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			panic(fmt.Sprintf("creating kafka producer: %v", err))
		}
		publisher = prod
	}

	// No metrics collector here: reporting runs on a background ticker,
	// which a Lambda container cannot keep alive between invocations.
	dispatcher = dispatch.NewDispatcher(
		ruleset,
		retriever,
		notifier,
		suppressor,
		publisher,
		nil,
		cfg.NotifyRuleErrors,
	)

	slog.Info("Initialized notification dispatcher",
		"match_rules", len(ruleset.Match),
		"ignore_rules", len(ruleset.Ignore),
		"routes", len(routes),
	)
}

// handler processes one S3 change notification batch. It always reports
// success: failures are already delivered as error notifications, and a
// Lambda retry of the same batch would only repeat them.
func handler(ctx context.Context, payload json.RawMessage) (int, error) {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		slog.Debug("Handling notification batch", "request_id", lc.AwsRequestID)
	}
	dispatcher.HandleBatch(ctx, payload)
	return 200, nil
}

func main() {
	lambda.Start(handler)
}
