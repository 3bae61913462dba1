package config

import (
	"bytes"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	API        APIConfig        `mapstructure:"api"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Coalescer  CoalescerConfig  `mapstructure:"coalescer"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Push       PushConfig       `mapstructure:"push"`
	Delivery   DeliveryConfig   `mapstructure:"delivery"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type APIConfig struct {
	Key string `mapstructure:"key"`
	// InsecureDev lets /v1 run without a key. Local development only.
	InsecureDev bool `mapstructure:"insecure_dev"`
}

var ErrMissingAPIKey = errors.New("api.key is empty; set it or enable api.insecure_dev")

// Validate fails when the admin API would be left open by accident.
func (c APIConfig) Validate() error {
	if strings.TrimSpace(c.Key) == "" && !c.InsecureDev {
		return ErrMissingAPIKey
	}
	return nil
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type OutboxConfig struct {
	PublishInterval int `mapstructure:"publish_interval_ms"`
	BatchSize       int `mapstructure:"batch_size"`
	MaxAttempts     int `mapstructure:"max_attempts"`
}

type CoalescerConfig struct {
	WindowSeconds int           `mapstructure:"window_seconds"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type DispatcherConfig struct {
	BatchSize       int `mapstructure:"batch_size"`
	MaxSendAttempts int `mapstructure:"max_send_attempts"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type PushConfig struct {
	Name        string        `mapstructure:"name"`
	BaseURL     string        `mapstructure:"base_url"`
	AccessToken string        `mapstructure:"access_token"`
	TimeoutMs   int           `mapstructure:"timeout_ms"`
	RatePerSec  float64       `mapstructure:"rate_per_sec"`
	Burst       int           `mapstructure:"burst"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

type DeliveryConfig struct {
	ProcessingTTL  time.Duration `mapstructure:"processing_ttl"`
	ReaperSchedule string        `mapstructure:"reaper_schedule"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

func (c OutboxConfig) Interval() time.Duration {
	return time.Duration(c.PublishInterval) * time.Millisecond
}

func (c CoalescerConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (NOTIFY_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (NOTIFY_*), nested keys use "_" (NOTIFY_KAFKA_TOPIC)
	v.SetEnvPrefix("NOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
