// Package config provides configuration management for the broker process.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// BrokerConfig holds the broker's process-level configuration: where the
// tree definition and overlays live, where the JWT verification key is,
// where the health endpoint listens, and where audit records go.
type BrokerConfig struct {
	TreeDefinitionPath string
	OverlayDir         string
	JWTPublicKeyPath   string
	HealthHost         string
	HealthPort         int
	AuditDBURL         string
	LogLevel           string
	LogFormat          string
}

// DefaultBrokerConfig returns configuration with default values.
func DefaultBrokerConfig() *BrokerConfig {
	return &BrokerConfig{
		TreeDefinitionPath: "./vss.json",
		OverlayDir:         "",
		JWTPublicKeyPath:   "",
		HealthHost:         "0.0.0.0",
		HealthPort:         8080,
		AuditDBURL:         "",
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// LoadConfig loads configuration from an optional file using viper.
// Precedence: CLI flags (bound by the caller) > environment > config file >
// defaults, same as the teacher's LoadConfig.
func LoadConfig(configPath string) (*BrokerConfig, error) {
	v := viper.New()

	v.SetDefault("broker.tree_definition_path", "./vss.json")
	v.SetDefault("broker.overlay_dir", "")
	v.SetDefault("broker.jwt_public_key_path", "")
	v.SetDefault("broker.health_host", "0.0.0.0")
	v.SetDefault("broker.health_port", 8080)
	v.SetDefault("broker.audit_db_url", "")
	v.SetDefault("broker.log_level", "info")
	v.SetDefault("broker.log_format", "json")

	v.SetEnvPrefix("VSSBROKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &BrokerConfig{
		TreeDefinitionPath: v.GetString("broker.tree_definition_path"),
		OverlayDir:         v.GetString("broker.overlay_dir"),
		JWTPublicKeyPath:   v.GetString("broker.jwt_public_key_path"),
		HealthHost:         v.GetString("broker.health_host"),
		HealthPort:         v.GetInt("broker.health_port"),
		AuditDBURL:         v.GetString("broker.audit_db_url"),
		LogLevel:           v.GetString("broker.log_level"),
		LogFormat:          v.GetString("broker.log_format"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range and required paths.
func validateConfig(cfg *BrokerConfig) error {
	if cfg.HealthPort <= 0 || cfg.HealthPort > 65535 {
		return fmt.Errorf("health_port must be between 1 and 65535, got %d", cfg.HealthPort)
	}
	if cfg.TreeDefinitionPath == "" {
		return fmt.Errorf("tree_definition_path must not be empty")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}
	return nil
}
