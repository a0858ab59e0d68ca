package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewDeskConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Tickets   TicketBackendConfig
	NATS      NATSConfig
	Scheduler SchedulerConfig

	RedisURL string

	SnowflakeNode        int64
	OperatorIDs          []int64
	PaymentWebhookSecret string
}

// TicketBackendConfig selects where tickets are stored.
type TicketBackendConfig struct {
	Backend       string
	RemoteURL     string
	RemoteAPIKey  string
	RemoteTable   string
	RemoteTimeout time.Duration
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Queue         string
}

// SchedulerConfig drives the background maintenance jobs.
type SchedulerConfig struct {
	Enabled    bool
	Interval   time.Duration
	BatchSize  int
	PaymentTTL time.Duration
	Jobs       []string
}

const (
	TicketBackendLocal  = "local"
	TicketBackendRemote = "remote"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "vindesk"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "sqlite")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "vindesk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "vindesk.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		Tickets: TicketBackendConfig{
			Backend:       normalizeBackend(getenv("TICKET_BACKEND", TicketBackendLocal)),
			RemoteURL:     strings.TrimRight(strings.TrimSpace(getenv("TICKET_REMOTE_URL", "")), "/"),
			RemoteAPIKey:  strings.TrimSpace(getenv("TICKET_REMOTE_API_KEY", "")),
			RemoteTable:   getenv("TICKET_REMOTE_TABLE", "tickets"),
			RemoteTimeout: getenvDuration("TICKET_REMOTE_TIMEOUT", 5*time.Second),
		},
		NATS: NATSConfig{
			URL:           strings.TrimSpace(getenv("NATS_URL", "")),
			SubjectPrefix: getenv("NATS_SUBJECT_PREFIX", "vindesk"),
			Queue:         getenv("NATS_QUEUE", "vindesk"),
		},
		Scheduler: SchedulerConfig{
			Enabled:    getenvBool("SCHEDULER_ENABLED", true),
			Interval:   getenvDuration("SCHEDULER_INTERVAL", time.Minute),
			BatchSize:  getenvInt("SCHEDULER_BATCH_SIZE", 50),
			PaymentTTL: getenvDuration("PAYMENT_PENDING_TTL", 24*time.Hour),
			Jobs:       splitList(getenv("SCHEDULER_JOBS", "")),
		},

		RedisURL:             strings.TrimSpace(getenv("REDIS_URL", "")),
		SnowflakeNode:        getenvInt64("SNOWFLAKE_NODE", 1),
		OperatorIDs:          parseIDs(getenv("OPERATOR_IDS", "")),
		PaymentWebhookSecret: strings.TrimSpace(getenv("PAYMENT_WEBHOOK_SECRET", "")),
	}

	return cfg
}

// IsDevelopment reports whether the service runs outside production.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func normalizeBackend(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case TicketBackendRemote, "supabase":
		return TicketBackendRemote
	default:
		return TicketBackendLocal
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDs(raw string) []int64 {
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			log.Printf("[config] ignoring invalid operator id %q", p)
			continue
		}
		out = append(out, id)
	}
	return out
}
