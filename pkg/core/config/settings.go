// Package config loads runtime settings and the source schemas that drive
// ingestion.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings holds all runtime configuration. Every field maps 1:1 to an
// environment variable.
type Settings struct {
	// Inputs
	SalesPath     string `mapstructure:"SALES_PATH"`
	PurchasesPath string `mapstructure:"PURCHASES_PATH"`
	BalancePath   string `mapstructure:"BALANCE_PATH"`
	EmployeesPath string `mapstructure:"EMPLOYEES_PATH"`
	SchemaPath    string `mapstructure:"SCHEMA_PATH"`

	// Outputs
	OutputDir      string `mapstructure:"OUTPUT_DIR" validate:"required"`
	CurrencySymbol string `mapstructure:"CURRENCY_SYMBOL"`

	// Projection
	GrowthRate      float64 `mapstructure:"GROWTH_RATE" validate:"gt=-1"`
	ProjectionYears int     `mapstructure:"PROJECTION_YEARS" validate:"gte=1,lte=50"`

	// External rate service
	RatesEnabled bool          `mapstructure:"RATES_ENABLED"`
	RatesBaseURL string        `mapstructure:"RATES_BASE_URL" validate:"required,url"`
	RatesTimeout time.Duration `mapstructure:"RATES_TIMEOUT" validate:"gt=0"`
	SelicSeries  int           `mapstructure:"SELIC_SERIES" validate:"gt=0"`
	IPCASeries   int           `mapstructure:"IPCA_SERIES" validate:"gt=0"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"oneof=json text"`
}

var defaults = map[string]any{
	"SALES_PATH":       "data/sales.csv",
	"PURCHASES_PATH":   "data/purchases.csv",
	"BALANCE_PATH":     "data/balance.csv",
	"EMPLOYEES_PATH":   "",
	"SCHEMA_PATH":      "",
	"OUTPUT_DIR":       "out",
	"CURRENCY_SYMBOL":  "R$",
	"GROWTH_RATE":      0.10,
	"PROJECTION_YEARS": 5,
	"RATES_ENABLED":    false,
	"RATES_BASE_URL":   "https://api.bcb.gov.br/dados/serie",
	"RATES_TIMEOUT":    "10s",
	"SELIC_SERIES":     432,
	"IPCA_SERIES":      433,
	"LOG_LEVEL":        "info",
	"LOG_FORMAT":       "text",
}

// Load reads an optional .env file, then environment variables, applying
// defaults for anything unset. A missing envFile is not an error.
func Load(envFile string) (*Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &Settings{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
