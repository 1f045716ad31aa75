package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKER", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Webhook.FastQueueKey != "webhook:queue:high" {
		t.Errorf("unexpected fast queue key: %s", cfg.Webhook.FastQueueKey)
	}
	if cfg.Webhook.MediumTopic != "webhook-medium-priority" || cfg.Webhook.LowTopic != "webhook-low-priority" {
		t.Errorf("unexpected topics: %s / %s", cfg.Webhook.MediumTopic, cfg.Webhook.LowTopic)
	}
	if cfg.Webhook.RateLimitRPS != 50 || cfg.Webhook.RateLimitBurst != 100 {
		t.Errorf("unexpected rate limit defaults: rps=%v burst=%d",
			cfg.Webhook.RateLimitRPS, cfg.Webhook.RateLimitBurst)
	}
	if cfg.Kafka.ConsumerGroup != "webhook-consumer-group" {
		t.Errorf("unexpected consumer group: %s", cfg.Kafka.ConsumerGroup)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte("webhook:\n  rate_limit_rps: 10\n  rate_limit_burst: 20\n  fanout_workers: 2\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Webhook.RateLimitRPS != 10 || cfg.Webhook.RateLimitBurst != 20 {
		t.Errorf("expected rps=10 burst=20, got rps=%v burst=%d",
			cfg.Webhook.RateLimitRPS, cfg.Webhook.RateLimitBurst)
	}
	if cfg.Webhook.FanoutWorkers != 2 {
		t.Errorf("expected fanout_workers 2, got %d", cfg.Webhook.FanoutWorkers)
	}
	// untouched fields keep their defaults
	if cfg.Webhook.RetryBatchSize != 100 {
		t.Errorf("expected retry_batch_size default 100, got %d", cfg.Webhook.RetryBatchSize)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing config file must not be an error, got %v", err)
	}
	if cfg.Webhook.RetryTopic != "webhook-retries" {
		t.Errorf("unexpected retry topic: %s", cfg.Webhook.RetryTopic)
	}
}
