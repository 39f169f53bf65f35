// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// List is a comma separated setting such as CORS_ORIGINS=a,b. Semicolons
// are accepted too.
type List []string

func (l *List) Decode(v string) error {
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' })
	out := make(List, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	*l = out
	return nil
}

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR,default=:5000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`
	CORSOrigins     List          `env:"CORS_ORIGINS,default=*"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	MySQLDSN     string `env:"MYSQL_DSN,default=root:password@tcp(127.0.0.1:3306)/food_share?charset=utf8mb4&parseTime=True&loc=UTC"`
	AutoMigrate  bool   `env:"DB_AUTO_MIGRATE,default=true"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS,default=20"`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=720h"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	KafkaBrokers List   `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=food-share.lifecycle"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	CloudinaryCloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`
	CloudinaryFolder    string `env:"CLOUDINARY_FOLDER,default=resources"`

	OutboxInterval  time.Duration `env:"OUTBOX_INTERVAL,default=2s"`
	OutboxBatchSize int           `env:"OUTBOX_BATCH_SIZE,default=100"`
	OutboxMaxRetry  int           `env:"OUTBOX_MAX_RETRY,default=10"`
}

// Load reads an optional .env file (files earlier in the list win) and
// decodes the environment into a Config.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.JWTSecret) == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if strings.TrimSpace(c.MySQLDSN) == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) RedisEnabled() bool      { return c.RedisAddr != "" }
func (c *Config) KafkaEnabled() bool      { return len(c.KafkaBrokers) > 0 }
func (c *Config) SMTPEnabled() bool       { return c.SMTPHost != "" }
func (c *Config) CloudinaryEnabled() bool { return c.CloudinaryCloudName != "" }
