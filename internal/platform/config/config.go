// Package config loads service configuration from an optional YAML file and
// command-line flags, with secrets taken from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	platformstrings "socialid/pkg/platform/strings"
)

type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Log      LogConfig      `koanf:"log"`
	Postgres PostgresConfig `koanf:"postgres"`
	Redis    RedisConfig    `koanf:"redis"`
	Session  SessionConfig  `koanf:"session"`
	Jobs     JobsConfig     `koanf:"jobs"`
	Media    MediaConfig    `koanf:"media"`
	Mail     MailConfig     `koanf:"mail"`
}

type HTTPConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	// ClientURL is the frontend origin used in password reset links.
	ClientURL    string `koanf:"client_url"`
	SecureCookie bool   `koanf:"secure_cookie"`
}

type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

type PostgresConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type SessionConfig struct {
	SigningKey string `koanf:"signing_key"`
	Issuer     string `koanf:"issuer"`
	// TTL of zero issues tokens without expiry.
	TTL time.Duration `koanf:"ttl"`
}

const (
	JobBackendMemory = "memory"
	JobBackendRedis  = "redis"
	JobBackendKafka  = "kafka"
)

type JobsConfig struct {
	Backend  string `koanf:"backend"`
	Consumer string `koanf:"consumer"`
	// MaxAttempts of zero retries forever.
	MaxAttempts      int           `koanf:"max_attempts"`
	Backoff          time.Duration `koanf:"backoff"`
	MaxBackoff       time.Duration `koanf:"max_backoff"`
	BatchSize        int           `koanf:"batch_size"`
	Concurrency      int           `koanf:"concurrency"`
	EmailConcurrency int           `koanf:"email_concurrency"`
	DeadLetterPath   string        `koanf:"dead_letter_path"`
	Kafka            KafkaConfig   `koanf:"kafka"`
}

type KafkaConfig struct {
	Brokers     []string `koanf:"brokers"`
	Group       string   `koanf:"group"`
	TopicPrefix string   `koanf:"topic_prefix"`
	Partitions  int32    `koanf:"partitions"`
	Replication int16    `koanf:"replication"`
}

const (
	MediaBackendMemory = "memory"
	MediaBackendS3     = "s3"
)

type MediaConfig struct {
	Backend       string `koanf:"backend"`
	Bucket        string `koanf:"bucket"`
	Region        string `koanf:"region"`
	Endpoint      string `koanf:"endpoint"`
	UsePathStyle  bool   `koanf:"use_path_style"`
	PublicBaseURL string `koanf:"public_base_url"`
	AccessKey     string `koanf:"access_key"`
	SecretKey     string `koanf:"secret_key"`
}

const (
	MailBackendLog  = "log"
	MailBackendSMTP = "smtp"
)

type MailConfig struct {
	Backend  string        `koanf:"backend"`
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	From     string        `koanf:"from"`
	Timeout  time.Duration `koanf:"timeout"`
}

// Default returns the development configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			ClientURL:         "http://localhost:3000",
		},
		Log: LogConfig{Format: "json", Level: "info"},
		Postgres: PostgresConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL:          "redis://localhost:6379/0",
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Session: SessionConfig{Issuer: "socialid", TTL: 7 * 24 * time.Hour},
		Jobs: JobsConfig{
			Backend:          JobBackendRedis,
			Consumer:         hostname(),
			MaxAttempts:      5,
			Backoff:          200 * time.Millisecond,
			MaxBackoff:       30 * time.Second,
			BatchSize:        10,
			Concurrency:      5,
			EmailConcurrency: 5,
			DeadLetterPath:   "deadletters.db",
			Kafka: KafkaConfig{
				Group:       "socialid-workers",
				TopicPrefix: "socialid.",
				Partitions:  3,
				Replication: 1,
			},
		},
		Media: MediaConfig{Backend: MediaBackendMemory, PublicBaseURL: "http://localhost:8080/media"},
		Mail:  MailConfig{Backend: MailBackendLog, Port: 587, Timeout: 10 * time.Second},
	}
}

// RegisterFlags adds the overridable settings to fs. Flag names are the
// dotted config keys, so posflag maps them straight onto the config tree.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http.addr", d.HTTP.Addr, "HTTP listen address")
	fs.String("http.client_url", d.HTTP.ClientURL, "frontend origin used in reset links")
	fs.String("log.format", d.Log.Format, "log format (json or text)")
	fs.String("log.level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("jobs.backend", d.Jobs.Backend, "job queue backend (memory, redis or kafka)")
	fs.Int("jobs.max_attempts", d.Jobs.MaxAttempts, "attempts per job before dead-lettering (0 = unlimited)")
	fs.StringSlice("jobs.kafka.brokers", nil, "Kafka seed brokers")
	fs.String("media.backend", d.Media.Backend, "avatar storage backend (memory or s3)")
	fs.String("mail.backend", d.Mail.Backend, "mail delivery backend (log or smtp)")
}

// Load layers Default, the YAML file at path (if any), flags that were set
// and finally secrets from the environment.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Session.SigningKey, "JWT_SIGNING_KEY")
	setFromEnv(&cfg.Postgres.DSN, "DATABASE_URL")
	setFromEnv(&cfg.Redis.URL, "REDIS_URL")
	setFromEnv(&cfg.Mail.Password, "SMTP_PASSWORD")
	setFromEnv(&cfg.Media.AccessKey, "S3_ACCESS_KEY")
	setFromEnv(&cfg.Media.SecretKey, "S3_SECRET_KEY")
	if brokers := platformstrings.SplitList(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.Jobs.Kafka.Brokers = brokers
	}
}

func setFromEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	var errs []error
	if c.Session.SigningKey == "" {
		errs = append(errs, errors.New("session signing key is required (JWT_SIGNING_KEY)"))
	}
	if c.Session.TTL < 0 {
		errs = append(errs, errors.New("session ttl must not be negative"))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log format must be json or text, got %q", c.Log.Format))
	}
	switch c.Jobs.Backend {
	case JobBackendMemory, JobBackendRedis:
	case JobBackendKafka:
		if len(c.Jobs.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka job backend needs at least one broker"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown job backend %q", c.Jobs.Backend))
	}
	if c.Jobs.MaxAttempts < 0 {
		errs = append(errs, errors.New("jobs max_attempts must not be negative"))
	}
	switch c.Media.Backend {
	case MediaBackendMemory:
	case MediaBackendS3:
		if c.Media.Bucket == "" {
			errs = append(errs, errors.New("s3 media backend needs a bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown media backend %q", c.Media.Backend))
	}
	switch c.Mail.Backend {
	case MailBackendLog:
	case MailBackendSMTP:
		if c.Mail.Host == "" || c.Mail.From == "" {
			errs = append(errs, errors.New("smtp mail backend needs host and from"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail backend %q", c.Mail.Backend))
	}
	return errors.Join(errs...)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "worker"
	}
	return name
}
