package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds the ambient service settings, populated from environment variables.
// Input and output paths come from command-line flags, not from here.
type Config struct {
	HTTPAddr        string // empty disables the status server
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	Workers    int
	RandomSeed uint64

	// Kafka loss publishing configuration.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaLossTopic string
	BatchSize      int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	workers, err := parseWorkers()
	if err != nil {
		return nil, err
	}

	seed, err := parseSeed()
	if err != nil {
		return nil, err
	}

	brokers := os.Getenv("KAFKA_BROKERS")
	kafkaEnabled := brokers != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	var brokerList []string
	if brokers != "" {
		brokerList = sharedcfg.ParseBrokers(brokers)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ""),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		Workers:         workers,
		RandomSeed:      seed,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   brokerList,
		KafkaLossTopic: sharedcfg.EnvOrDefault("KAFKA_LOSS_TOPIC", "wind-loss-records"),
		BatchSize:      batchSize,
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaLossTopic == "" {
		return nil, errors.New("KAFKA_LOSS_TOPIC is required")
	}

	return cfg, nil
}

func parseWorkers() (int, error) {
	s := os.Getenv("WORKERS")
	if s == "" {
		return runtime.NumCPU(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid WORKERS %q: must be a positive integer", s)
	}
	return n, nil
}

// parseSeed defaults to 121, the seed used for the published Ida estimates.
func parseSeed() (uint64, error) {
	s := os.Getenv("RANDOM_SEED")
	if s == "" {
		return 121, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid RANDOM_SEED %q: %w", s, err)
	}
	return n, nil
}
