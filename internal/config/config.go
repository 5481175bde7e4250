// config — загрузка конфигурации админки.
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Session  SessionConfig  `yaml:"session"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Notify   NotifyConfig   `yaml:"notify"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Events   EventsConfig   `yaml:"events"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// HTTPConfig — BFF-сервер админки.
type HTTPConfig struct {
	Host    string        `yaml:"host"    env:"HTTP_HOST"    env-default:"0.0.0.0"`
	Port    string        `yaml:"port"    env:"HTTP_PORT"    env-default:"50090"`
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"30s"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// GRPCConfig — health-сервер.
type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50091"`
}

func (g GRPCConfig) Addr() string { return net.JoinHostPort(g.Host, g.Port) }

// MetricsConfig — отдельный HTTP для Prometheus и проб.
type MetricsConfig struct {
	Host string `yaml:"host" env:"METRICS_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"METRICS_PORT" env-default:"50085"`
}

func (m MetricsConfig) Addr() string { return net.JoinHostPort(m.Host, m.Port) }

// UpstreamConfig — REST API парка киосков.
type UpstreamConfig struct {
	BaseURL     string        `yaml:"base_url"     env:"UPSTREAM_BASE_URL"     env-default:"http://localhost:8080/api/v1"`
	Timeout     time.Duration `yaml:"timeout"      env:"UPSTREAM_TIMEOUT"      env-default:"5m"`
	LoginPath   string        `yaml:"login_path"   env:"UPSTREAM_LOGIN_PATH"   env-default:"/auth/login"`
	RefreshPath string        `yaml:"refresh_path" env:"UPSTREAM_REFRESH_PATH" env-default:"/auth/refresh"`
	LogoutPath  string        `yaml:"logout_path"  env:"UPSTREAM_LOGOUT_PATH"  env-default:"/auth/logout"`
	UserAgent   string        `yaml:"user_agent"   env:"UPSTREAM_USER_AGENT"   env-default:"kiosk-admin"`
}

// SessionConfig — хранение и обновление сессии.
type SessionConfig struct {
	// Store: memory | redis | postgres.
	Store            string        `yaml:"store"             env:"SESSION_STORE"             env-default:"memory"`
	Profile          string        `yaml:"profile"           env:"SESSION_PROFILE"           env-default:"default"`
	RefreshLookahead time.Duration `yaml:"refresh_lookahead" env:"SESSION_REFRESH_LOOKAHEAD" env-default:"120s"`
	ExpiredDelay     time.Duration `yaml:"expired_delay"     env:"SESSION_EXPIRED_DELAY"     env-default:"1500ms"`
	RetryCodes       []string      `yaml:"retry_codes"       env:"SESSION_RETRY_CODES"       env-separator:","`
	// LegacyMessages — подстроки сообщений для серверов без кодов ошибок.
	LegacyMessages []string      `yaml:"legacy_messages" env:"SESSION_LEGACY_MESSAGES" env-separator:","`
	RedisTTL       time.Duration `yaml:"redis_ttl"       env:"SESSION_REDIS_TTL"       env-default:"720h"`
	RedisPrefix    string        `yaml:"redis_prefix"    env:"SESSION_REDIS_PREFIX"    env-default:"kiosk-admin:session:"`
}

type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL" env-default:"redis://localhost:6379/0"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"DB_URL"`
	// SkipMigrate — не применять встроенную миграцию при старте.
	SkipMigrate bool `yaml:"skip_migrate" env:"DB_SKIP_MIGRATE"`
}

// NotifyConfig — каналы уведомлений помимо лога.
type NotifyConfig struct {
	TelegramToken   string        `yaml:"telegram_token"    env:"NOTIFY_TELEGRAM_TOKEN"`
	TelegramChatID  int64         `yaml:"telegram_chat_id"  env:"NOTIFY_TELEGRAM_CHAT_ID"`
	TelegramPrefix  string        `yaml:"telegram_prefix"   env:"NOTIFY_TELEGRAM_PREFIX"   env-default:"kiosk-admin"`
	TelegramMinSev  string        `yaml:"telegram_min_sev"  env:"NOTIFY_TELEGRAM_MIN_SEV"  env-default:"warning"`
	MongoURI        string        `yaml:"mongo_uri"         env:"NOTIFY_MONGO_URI"`
	MongoRetention  time.Duration `yaml:"mongo_retention"   env:"NOTIFY_MONGO_RETENTION"   env-default:"168h"`
	// MuteFailures отключает общие уведомления об ошибках запросов.
	MuteFailures bool `yaml:"mute_failures" env:"NOTIFY_MUTE_FAILURES"`
}

type RealtimeConfig struct {
	// HubURL пустой — клиент хаба не запускается.
	HubURL  string          `yaml:"hub_url" env:"REALTIME_HUB_URL"`
	Backoff []time.Duration `yaml:"backoff" env:"REALTIME_BACKOFF" env-separator:","`
}

type EventsConfig struct {
	// Driver: gochannel | redis.
	Driver        string `yaml:"driver"         env:"EVENTS_DRIVER"         env-default:"gochannel"`
	Topic         string `yaml:"topic"          env:"EVENTS_TOPIC"          env-default:"session.events"`
	ConsumerGroup string `yaml:"consumer_group" env:"EVENTS_CONSUMER_GROUP" env-default:"kiosk-admin"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"      env:"TRACING_ENABLED"      env-default:"false"`
	Endpoint    string  `yaml:"endpoint"     env:"TRACING_ENDPOINT"     env-default:"localhost:4318"`
	TLS         bool    `yaml:"tls"          env:"TRACING_TLS"`
	SampleRatio float64 `yaml:"sample_ratio" env:"TRACING_SAMPLE_RATIO" env-default:"1"`
}

// Validate проверяет значения, которые нельзя выразить дефолтами.
func (c *Config) Validate() error {
	switch c.Session.Store {
	case "memory", "redis":
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("session.store=postgres requires postgres.url")
		}
	default:
		return fmt.Errorf("unknown session.store %q", c.Session.Store)
	}

	switch c.Events.Driver {
	case "gochannel", "redis":
	default:
		return fmt.Errorf("unknown events.driver %q", c.Events.Driver)
	}

	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is empty")
	}

	return nil
}

// MustLoad — паника при ошибке загрузки.
func MustLoad(path string) *Config {
	cfg, err := Load(path)

	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 1) --config
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) только ENV
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}
	return &cfg, nil
}
