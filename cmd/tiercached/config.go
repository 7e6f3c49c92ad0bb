package main

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/emrvault/tiercache/pkg/cache"
	"github.com/emrvault/tiercache/pkg/logger"
)

// Config is the process configuration.
type Config struct {
	Address          string        `env:"HTTP_ADDR" envDefault:":8080" yaml:"address"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s" yaml:"shutdown_timeout"`
	StatsSchedule    string        `env:"STATS_SCHEDULE" envDefault:"@every 1m" yaml:"stats_schedule"`
	MetricsNamespace string        `env:"METRICS_NAMESPACE" envDefault:"tiercache" yaml:"metrics_namespace"`

	Log   logger.Config `yaml:"log"`
	Cache cache.Config  `yaml:"cache"`
	Redis RedisConfig   `yaml:"redis"`
}

// RedisConfig tunes the client shared by every cache.
type RedisConfig struct {
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10" yaml:"pool_size"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"500ms" yaml:"read_timeout"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"500ms" yaml:"write_timeout"`

	// ConnectAttempts is how many pings startup makes before giving up on
	// Redis and starting degraded. Zero skips the check.
	ConnectAttempts int           `env:"REDIS_CONNECT_ATTEMPTS" envDefault:"3" yaml:"connect_attempts"`
	ConnectInterval time.Duration `env:"REDIS_CONNECT_INTERVAL" envDefault:"500ms" yaml:"connect_interval"`
}

// loadConfig reads .env (if present), then the environment, then the
// optional YAML file. Values in the file win over the environment.
func loadConfig(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
