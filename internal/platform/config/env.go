package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every variable read by ParseEnv.
const EnvPrefix = "METEORFALL_"

// ParseEnv loads configuration from METEORFALL_-prefixed environment variables.
//
// Struct tags name the variable without the prefix, e.g. `env:"CATALOG_PORT"`
// reads METEORFALL_CATALOG_PORT.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
