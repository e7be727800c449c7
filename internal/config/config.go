// Package config содержит логику чтения конфигурации сервиса ценообразования.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса ценообразования.
type Config struct {
	RunAddress           string `env:"RUN_ADDRESS"`
	DatabaseURI          string `env:"DATABASE_URI"`
	RatesProviderAddress string `env:"RATES_PROVIDER_ADDRESS"`
	ForeignCurrency      string `env:"FOREIGN_CURRENCY"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRatesAddress := cfg.RatesProviderAddress
	envCurrency := cfg.ForeignCurrency

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RatesProviderAddress, "r", "", "exchange rates provider address")
	flag.StringVar(&cfg.ForeignCurrency, "c", "TRY", "foreign currency code")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRatesAddress != "" {
		cfg.RatesProviderAddress = envRatesAddress
	}
	if envCurrency != "" {
		cfg.ForeignCurrency = envCurrency
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.ForeignCurrency == "" {
		cfg.ForeignCurrency = "TRY"
	}

	return cfg, nil
}
