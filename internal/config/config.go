// Package config loads the voicebridge configuration from an optional YAML
// file and the deployment environment.
package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/szaher/voicebridge/internal/bridge"
	"github.com/szaher/voicebridge/internal/secrets"
)

// Session backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendEtcd     = "etcd"
	BackendPostgres = "postgres"
)

// EnvConfigFile names the config file when --config is not given.
const EnvConfigFile = "VOICEBRIDGE_CONFIG"

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Webhook WebhookConfig `yaml:"webhook"`
	Speech  SpeechConfig  `yaml:"speech"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`

	// Secrets holds the credential values in effect, for log redaction.
	Secrets []string `yaml:"-"`
}

// ServerConfig configures the webhook listener.
type ServerConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// EngineConfig configures the dialogue engine client.
type EngineConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// WebhookConfig configures the inbound webhook surface.
type WebhookConfig struct {
	BaseURL    string `yaml:"base_url"`
	AnswerPath string `yaml:"answer_path"`
	EventPath  string `yaml:"event_path"`
	APIKey     string `yaml:"api_key"`
}

// SpeechConfig configures rendered call-control actions. These settings
// can be changed without a restart.
type SpeechConfig struct {
	Language        string `yaml:"language"`
	Voice           string `yaml:"voice"`
	BargeIn         bool   `yaml:"barge_in"`
	EndOnSilence    int    `yaml:"end_on_silence"`
	FallbackText    string `yaml:"fallback_text"`
	TransferNumber  string `yaml:"transfer_number"`
	TransferTimeout int    `yaml:"transfer_timeout"`
}

// SessionConfig selects and configures the session registry backend.
type SessionConfig struct {
	Backend       string         `yaml:"backend"`
	TTL           time.Duration  `yaml:"ttl"`
	SweepSchedule string         `yaml:"sweep_schedule"`
	Redis         RedisConfig    `yaml:"redis"`
	Etcd          EtcdConfig     `yaml:"etcd"`
	Postgres      PostgresConfig `yaml:"postgres"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// EtcdConfig configures the etcd backend.
type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	Prefix      string        `yaml:"prefix"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              1337,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Engine: EngineConfig{
			Timeout: 10 * time.Second,
		},
		Webhook: WebhookConfig{
			AnswerPath: "/webhooks/answer",
			EventPath:  "/webhooks/event",
		},
		Speech: SpeechConfig{
			Language:        "en-GB",
			Voice:           "Amy",
			EndOnSilence:    1,
			FallbackText:    "Sorry, something went wrong. Please call again later.",
			TransferTimeout: bridge.DefaultTransferTimeout,
		},
		Session: SessionConfig{
			Backend:       BackendMemory,
			TTL:           24 * time.Hour,
			SweepSchedule: "@every 5m",
			Etcd: EtcdConfig{
				DialTimeout: 5 * time.Second,
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// non-empty), and environment overrides, then resolves env() secret
// references and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	resolver := secrets.NewEnvResolver()
	if _, err := secrets.ResolveFields(context.Background(), resolver, &cfg.Engine.URL); err != nil {
		return nil, fmt.Errorf("resolving engine.url: %w", err)
	}
	values, err := secrets.ResolveFields(context.Background(), resolver,
		&cfg.Webhook.APIKey,
		&cfg.Session.Redis.Password,
		&cfg.Session.Postgres.DSN,
	)
	if err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}
	cfg.Secrets = values

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from the deployment environment. Empty
// variables are treated as unset.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		return v, ok && v != ""
	}

	strs := []struct {
		env   string
		field *string
	}{
		{"TENEO_ENGINE_URL", &c.Engine.URL},
		{"WEBHOOK_FOR_VONAGE", &c.Webhook.BaseURL},
		{"PATH_TO_ANSWER", &c.Webhook.AnswerPath},
		{"LANGUAGE_ASR", &c.Speech.Language},
		{"VOICENAME", &c.Speech.Voice},
		{"WEBHOOK_API_KEY", &c.Webhook.APIKey},
		{"SESSION_BACKEND", &c.Session.Backend},
		{"REDIS_ADDR", &c.Session.Redis.Addr},
		{"REDIS_PASSWORD", &c.Session.Redis.Password},
		{"POSTGRES_DSN", &c.Session.Postgres.DSN},
		{"LOG_LEVEL", &c.Log.Level},
	}
	for _, s := range strs {
		if v, ok := get(s.env); ok {
			*s.field = v
		}
	}

	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v, ok := get("ETCD_ENDPOINTS"); ok {
		var endpoints []string
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				endpoints = append(endpoints, e)
			}
		}
		c.Session.Etcd.Endpoints = endpoints
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Engine.URL == "" {
		return fmt.Errorf("config: engine.url is required (TENEO_ENGINE_URL)")
	}
	u, err := url.Parse(c.Engine.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: engine.url %q must be an absolute http(s) URL", c.Engine.URL)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if !strings.HasPrefix(c.Webhook.AnswerPath, "/") {
		return fmt.Errorf("config: webhook.answer_path %q must start with /", c.Webhook.AnswerPath)
	}
	if !strings.HasPrefix(c.Webhook.EventPath, "/") {
		return fmt.Errorf("config: webhook.event_path %q must start with /", c.Webhook.EventPath)
	}
	if c.Webhook.AnswerPath == c.Webhook.EventPath {
		return fmt.Errorf("config: webhook.answer_path and webhook.event_path must differ")
	}
	if c.Speech.TransferTimeout < 0 {
		return fmt.Errorf("config: speech.transfer_timeout must not be negative")
	}

	switch c.Session.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("config: session.redis.addr is required for the redis backend")
		}
	case BackendEtcd:
		if len(c.Session.Etcd.Endpoints) == 0 {
			return fmt.Errorf("config: session.etcd.endpoints is required for the etcd backend")
		}
	case BackendPostgres:
		if c.Session.Postgres.DSN == "" {
			return fmt.Errorf("config: session.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown session.backend %q", c.Session.Backend)
	}
	return nil
}

// EventURL is the callback URL placed in input actions: the webhook base
// URL followed by the answer path, joined as-is.
func (c *Config) EventURL() string {
	return c.Webhook.BaseURL + c.Webhook.AnswerPath
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// RenderSettings converts the speech settings for the renderer.
func (c *Config) RenderSettings() bridge.Settings {
	return bridge.Settings{
		Voice:                 c.Speech.Voice,
		Language:              c.Speech.Language,
		BargeIn:               c.Speech.BargeIn,
		EndOnSilence:          c.Speech.EndOnSilence,
		EventURL:              c.EventURL(),
		TransferTimeout:       c.Speech.TransferTimeout,
		DefaultTransferNumber: c.Speech.TransferNumber,
		FallbackText:          c.Speech.FallbackText,
	}
}
