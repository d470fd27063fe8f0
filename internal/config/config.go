// Package config loads and validates the service configuration from the
// environment. Configuration is parsed once at startup and treated as
// immutable afterwards.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/notify"
	"github.com/ironsource-mobile/devops-terraform-aws-cloudtrail-to-slack/internal/rules"
)

// Config holds all configuration parameters for both entry points. The
// Lambda handler ignores the worker-only fields.
type Config struct {
	// Delivery.
	HookURL   string `env:"HOOK_URL,required"`
	RoutesRaw string `env:"ROUTES"`
	EmailFrom string `env:"EMAIL_FROM"`

	// Rules.
	RulesRaw         string `env:"RULES"`
	IgnoreRulesRaw   string `env:"IGNORE_RULES"`
	RulesSeparator   string `env:"RULES_SEPARATOR" envDefault:","`
	UseDefaultRules  bool   `env:"USE_DEFAULT_RULES" envDefault:"true"`
	EventsToTrack    string `env:"EVENTS_TO_TRACK"`
	NotifyRuleErrors bool   `env:"RULE_EVALUATION_ERRORS_TO_SLACK" envDefault:"false"`

	// Logging.
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Worker intake.
	QueueURL       string `env:"SQS_QUEUE_URL"`
	SQSWaitSeconds int    `env:"SQS_WAIT_TIME_SECONDS" envDefault:"20"`
	SQSMaxMessages int    `env:"SQS_MAX_MESSAGES" envDefault:"10"`

	// Optional integrations. Empty RedisAddr disables suppression and
	// metrics reporting; empty KafkaBrokers disables the firehose.
	RedisAddr    string        `env:"REDIS_ADDR"`
	DedupTTL     time.Duration `env:"DEDUP_TTL" envDefault:"1h"`
	KafkaBrokers string        `env:"KAFKA_BROKERS"`
	KafkaTopic   string        `env:"KAFKA_TOPIC" envDefault:"cloudtrail.matched"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// Validate checks that all configuration fields have usable values. It
// also compiles the rules and parses the routing table, so an unparsable
// rule or route fails startup instead of surfacing per event.
func (c *Config) Validate() error {
	if c.HookURL == "" {
		return fmt.Errorf("HOOK_URL cannot be empty")
	}
	if !strings.HasPrefix(c.HookURL, "http://") && !strings.HasPrefix(c.HookURL, "https://") {
		return fmt.Errorf("HOOK_URL must be an HTTP or HTTPS URL")
	}
	if c.RulesSeparator == "" {
		return fmt.Errorf("RULES_SEPARATOR cannot be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}

	if c.SQSWaitSeconds < 0 || c.SQSWaitSeconds > 20 {
		return fmt.Errorf("SQS_WAIT_TIME_SECONDS must be between 0 and 20")
	}
	if c.SQSMaxMessages < 1 || c.SQSMaxMessages > 10 {
		return fmt.Errorf("SQS_MAX_MESSAGES must be between 1 and 10")
	}

	if len(c.MatchRuleSources()) == 0 {
		return fmt.Errorf("no match rules configured: set RULES, EVENTS_TO_TRACK, or USE_DEFAULT_RULES=true")
	}
	if _, err := c.Ruleset(); err != nil {
		return err
	}

	routes, err := c.Routes()
	if err != nil {
		return err
	}
	for _, route := range routes {
		if route.Channel == "email" && c.EmailFrom == "" {
			return fmt.Errorf("EMAIL_FROM must be set when a route uses the email channel")
		}
	}

	return nil
}

// MatchRuleSources assembles the ordered match rule list: built-in default
// rules first when enabled, then user rules, then the EVENTS_TO_TRACK rule.
func (c *Config) MatchRuleSources() []string {
	var sources []string
	if c.UseDefaultRules {
		sources = append(sources, rules.DefaultRuleSources()...)
	}
	sources = append(sources, splitRules(c.RulesRaw, c.RulesSeparator)...)
	if tracked := rules.EventsToTrackRule(c.EventsToTrack); tracked != "" {
		sources = append(sources, tracked)
	}
	return sources
}

// IgnoreRuleSources returns the ordered ignore rule list.
func (c *Config) IgnoreRuleSources() []string {
	return splitRules(c.IgnoreRulesRaw, c.RulesSeparator)
}

// Ruleset compiles the configured rules. Compilation failures are fatal
// for startup.
func (c *Config) Ruleset() (rules.Ruleset, error) {
	ignore, err := rules.CompileAll(c.IgnoreRuleSources())
	if err != nil {
		return rules.Ruleset{}, fmt.Errorf("ignore rules: %w", err)
	}
	match, err := rules.CompileAll(c.MatchRuleSources())
	if err != nil {
		return rules.Ruleset{}, fmt.Errorf("match rules: %w", err)
	}
	return rules.Ruleset{Ignore: ignore, Match: match}, nil
}

// Routes parses the ROUTES JSON routing table.
func (c *Config) Routes() ([]notify.Route, error) {
	if c.RoutesRaw == "" {
		return nil, nil
	}
	var routes []notify.Route
	if err := json.Unmarshal([]byte(c.RoutesRaw), &routes); err != nil {
		return nil, fmt.Errorf("parsing ROUTES: %w", err)
	}
	for i, route := range routes {
		if len(route.Accounts) == 0 {
			return nil, fmt.Errorf("ROUTES[%d]: accounts cannot be empty", i)
		}
		if route.Channel == "" {
			return nil, fmt.Errorf("ROUTES[%d]: channel cannot be empty", i)
		}
		if route.Target == "" {
			return nil, fmt.Errorf("ROUTES[%d]: target cannot be empty", i)
		}
	}
	return routes, nil
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogHandler returns the slog handler selected by LOG_FORMAT. Call after
// Validate.
func (c *Config) LogHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func splitRules(raw, separator string) []string {
	if raw == "" {
		return nil
	}
	var sources []string
	for _, part := range strings.Split(raw, separator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sources = append(sources, part)
	}
	return sources
}
