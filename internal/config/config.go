package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	Database DatabaseConfig
	RedisURL string

	Casdoor     CasdoorConfig
	Kafka       KafkaConfig
	Storage     StorageConfig
	Certificate CertificateConfig

	// ReconcileConcurrency bounds sibling writes during nested course updates.
	ReconcileConcurrency int
	TracingEnabled       bool
}

type DatabaseConfig struct {
	URL         string
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	AutoMigrate bool
	MaxOpen     int
	MaxIdle     int
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

type KafkaConfig struct {
	Brokers []string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type StorageConfig struct {
	Bucket          string
	CredentialsFile string
	// PublicBaseURL prefixes object keys to form download links.
	PublicBaseURL string
}

type CertificateConfig struct {
	TemplateURL      string
	FontBold         string
	FontItalic       string
	FontRegular      string
	FetchTimeout     time.Duration
	TemplateCacheTTL time.Duration
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		Database: DatabaseConfig{
			URL:         os.Getenv("DATABASE_URL"),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    os.Getenv("DB_PASSWORD"),
			Name:        getEnv("DB_NAME", "enrollment"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", true),
			MaxOpen:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdle:     getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		RedisURL: os.Getenv("REDIS_URL"),
		Casdoor: CasdoorConfig{
			Endpoint:     os.Getenv("CASDOOR_ENDPOINT"),
			ClientID:     os.Getenv("CASDOOR_CLIENT_ID"),
			ClientSecret: os.Getenv("CASDOOR_CLIENT_SECRET"),
			Cert:         os.Getenv("CASDOOR_CERT"),
			Organization: os.Getenv("CASDOOR_ORGANIZATION"),
			Application:  os.Getenv("CASDOOR_APPLICATION"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
		},
		Storage: StorageConfig{
			Bucket:          os.Getenv("GCS_BUCKET"),
			CredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
			PublicBaseURL:   os.Getenv("STORAGE_PUBLIC_BASE_URL"),
		},
		Certificate: CertificateConfig{
			TemplateURL:      os.Getenv("CERT_TEMPLATE_URL"),
			FontBold:         os.Getenv("CERT_FONT_BOLD"),
			FontItalic:       os.Getenv("CERT_FONT_ITALIC"),
			FontRegular:      os.Getenv("CERT_FONT_REGULAR"),
			FetchTimeout:     getEnvDuration("CERT_FETCH_TIMEOUT", 30*time.Second),
			TemplateCacheTTL: getEnvDuration("CERT_TEMPLATE_CACHE_TTL", 10*time.Minute),
		},
		ReconcileConcurrency: getEnvInt("RECONCILE_CONCURRENCY", 4),
		TracingEnabled:       getEnvBool("TRACING_ENABLED", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.Port == "" {
		problems = append(problems, "PORT is required")
	}
	if c.Certificate.TemplateURL == "" {
		problems = append(problems, "CERT_TEMPLATE_URL is required")
	}
	if c.ReconcileConcurrency < 1 {
		problems = append(problems, "RECONCILE_CONCURRENCY must be at least 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
