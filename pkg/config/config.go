package config

import (
	"os"
	"strings"
	"time"

	"github.com/thutasann/nano-pulse/pkg/utils"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration. Values from the yaml file are
// overridden by environment variables so deployments can keep a checked-in
// base file.
type Config struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumer_group"`
}

type WebhookConfig struct {
	FastQueueKey    string        `yaml:"fast_queue_key"`
	PubSubChannel   string        `yaml:"pubsub_channel"`
	MediumTopic     string        `yaml:"medium_topic"`
	LowTopic        string        `yaml:"low_topic"`
	RetryTopic      string        `yaml:"retry_topic"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
	RetryBatchSize  int           `yaml:"retry_batch_size"`
	PollIdleBackoff time.Duration `yaml:"poll_idle_backoff"`
	FanoutWorkers   int           `yaml:"fanout_workers"`
	ProcessTimeout  time.Duration `yaml:"process_timeout"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

// Load reads the yaml file at path when it exists, then applies env
// overrides. A missing file is not an error; env alone is enough.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if dsn := utils.GetEnv("POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if addr := utils.GetEnv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if brokers := utils.GetEnv("KAFKA_BROKER"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if group := utils.GetEnv("KAFKA_CONSUMER_GROUP"); group != "" {
		cfg.Kafka.ConsumerGroup = group
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Postgres: PostgresConfig{DSN: "host=localhost user=postgres password=postgres dbname=webhooks port=5432 sslmode=disable"},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "webhook-consumer-group",
		},
		Webhook: WebhookConfig{
			FastQueueKey:    "webhook:queue:high",
			PubSubChannel:   "webhook:events",
			MediumTopic:     "webhook-medium-priority",
			LowTopic:        "webhook-low-priority",
			RetryTopic:      "webhook-retries",
			RetryInterval:   60 * time.Second,
			RetryBatchSize:  100,
			PollIdleBackoff: time.Second,
			FanoutWorkers:   8,
			ProcessTimeout:  10 * time.Second,
			RateLimitRPS:    50,
			RateLimitBurst:  100,
		},
	}
}
