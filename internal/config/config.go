package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServiceName     string        `envconfig:"SERVICE_NAME" default:"nursery"`
	Env             string        `envconfig:"ENV" default:"dev"`
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	StockLockWait   time.Duration `envconfig:"STOCK_LOCK_WAIT" default:"2s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	SeedDemoData    bool          `envconfig:"SEED_DEMO_DATA" default:"false"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
