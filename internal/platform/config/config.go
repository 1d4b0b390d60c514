package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	dErrors "preclear/pkg/domain-errors"
)

// Config captures everything the server needs at startup. Values come from the
// environment so main stays lean.
type Config struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string
	AccessTokenTTL time.Duration

	// PreclearTokenTTL bounds how long an issued pre-clearance token remains
	// bookable before the shipper must re-clear.
	PreclearTokenTTL time.Duration

	// AiScoreCutoff is the evaluator threshold: scores at or above it clear.
	AiScoreCutoff int

	// CORSOrigins lists browser origins allowed to call the API. Empty
	// disables the CORS layer entirely.
	CORSOrigins []string

	Redis RedisConfig
	Kafka KafkaConfig
	Docs  ObjectStoreConfig
}

// RedisConfig holds connection settings for the optional Redis token store.
type RedisConfig struct {
	URL         string
	DialTimeout time.Duration
}

// KafkaConfig holds settings for the audit outbox publisher. Empty brokers
// disable publishing; events then remain queryable from the outbox tables.
type KafkaConfig struct {
	Brokers       []string
	ApprovalTopic string
	AuditTopic    string
}

// ObjectStoreConfig holds settings for shipment document blob storage.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load builds a Config from environment variables.
//
// Errors: a missing DATABASE_URL is a configuration error; the caller is
// expected to abort startup rather than continue in a partial state.
func Load() (Config, error) {
	cfg := Config{
		Addr:             envOr("PRECLEAR_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSigningKey:    envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AccessTokenTTL:   envDuration("ACCESS_TOKEN_TTL", time.Hour),
		PreclearTokenTTL: envDuration("PRECLEAR_TOKEN_TTL", 72*time.Hour),
		AiScoreCutoff:    envInt("AI_SCORE_CUTOFF", 90),
		CORSOrigins:      splitNonEmpty(envOr("CORS_ALLOWED_ORIGINS", "*")),
		Redis: RedisConfig{
			URL:         os.Getenv("REDIS_URL"),
			DialTimeout: envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			ApprovalTopic: envOr("KAFKA_APPROVAL_TOPIC", "preclear.approvals"),
			AuditTopic:    envOr("KAFKA_AUDIT_TOPIC", "preclear.audit"),
		},
		Docs: ObjectStoreConfig{
			Endpoint:  os.Getenv("DOCS_S3_ENDPOINT"),
			AccessKey: os.Getenv("DOCS_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("DOCS_S3_SECRET_KEY"),
			Bucket:    envOr("DOCS_S3_BUCKET", "preclear-documents"),
			UseSSL:    os.Getenv("DOCS_S3_USE_SSL") == "true",
		},
	}

	if cfg.DatabaseURL == "" {
		return Config{}, dErrors.New(dErrors.CodeInternal, "DATABASE_URL is required")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
