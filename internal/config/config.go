package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/rawblock/riskgraph/pkg/models"
)

// Configuration is read from the environment (PORT, API_AUTH_TOKEN, ...) with
// an optional file named by RISKGRAPH_CONFIG. Environment values win.
//
// Credentials have no defaults. A missing AUDIT_SECRET is fatal in release
// mode; elsewhere the caller generates a per-process secret.

// ErrMissingAuditSecret is returned in release mode when AUDIT_SECRET is unset
var ErrMissingAuditSecret = errors.New("AUDIT_SECRET is required in release mode")

// Webhook is an alert receiver parsed from ALERT_WEBHOOKS
type Webhook struct {
	Name string
	URL  string
}

type Config struct {
	Port    string
	GinMode string

	AuthToken       string
	AllowedOrigins  string
	RateLimitPerMin int
	RateLimitBurst  int

	AuditSecret       string
	DefaultFrameworks []string

	DatabaseURL string

	KafkaBrokers []string
	KafkaTopic   string

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	AlertMinLevel models.RiskLevel
	AlertWebhooks []Webhook
}

// Release reports whether gin runs in release mode
func (c Config) Release() bool {
	return c.GinMode == "release"
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", "5340")
	v.SetDefault("gin_mode", "debug")
	v.SetDefault("rate_limit_per_min", 60)
	v.SetDefault("rate_limit_burst", 20)
	v.SetDefault("kafka_topic", "riskgraph.verdicts")
	v.SetDefault("neo4j_user", "neo4j")
	v.SetDefault("neo4j_database", "neo4j")
	v.SetDefault("alert_min_level", string(models.RiskHigh))
	v.SetDefault("default_frameworks", "FATF,BSA,EU_5AMLD")
}

// Load reads the configuration
func Load() (Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if file := v.GetString("riskgraph_config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:              v.GetString("port"),
		GinMode:           v.GetString("gin_mode"),
		AuthToken:         v.GetString("api_auth_token"),
		AllowedOrigins:    v.GetString("allowed_origins"),
		RateLimitPerMin:   v.GetInt("rate_limit_per_min"),
		RateLimitBurst:    v.GetInt("rate_limit_burst"),
		AuditSecret:       v.GetString("audit_secret"),
		DefaultFrameworks: splitList(v.GetString("default_frameworks")),
		DatabaseURL:       v.GetString("database_url"),
		KafkaBrokers:      splitList(v.GetString("kafka_brokers")),
		KafkaTopic:        v.GetString("kafka_topic"),
		Neo4jURI:          v.GetString("neo4j_uri"),
		Neo4jUser:         v.GetString("neo4j_user"),
		Neo4jPassword:     v.GetString("neo4j_password"),
		Neo4jDatabase:     v.GetString("neo4j_database"),
	}

	level, ok := models.ParseRiskLevel(v.GetString("alert_min_level"))
	if !ok {
		return Config{}, fmt.Errorf("invalid ALERT_MIN_LEVEL %q", v.GetString("alert_min_level"))
	}
	cfg.AlertMinLevel = level

	hooks, err := parseWebhooks(v.GetString("alert_webhooks"))
	if err != nil {
		return Config{}, err
	}
	cfg.AlertWebhooks = hooks

	if cfg.RateLimitPerMin <= 0 || cfg.RateLimitBurst <= 0 {
		return Config{}, fmt.Errorf("rate limit must be positive, got %d/min burst %d", cfg.RateLimitPerMin, cfg.RateLimitBurst)
	}
	if cfg.Release() && cfg.AuditSecret == "" {
		return Config{}, ErrMissingAuditSecret
	}
	return cfg, nil
}

// splitList splits a comma separated list, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseWebhooks reads "name=url,name=url"
func parseWebhooks(s string) ([]Webhook, error) {
	var out []Webhook
	for _, item := range splitList(s) {
		name, url, ok := strings.Cut(item, "=")
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("invalid ALERT_WEBHOOKS entry %q, want name=url", item)
		}
		out = append(out, Webhook{Name: name, URL: url})
	}
	return out, nil
}
