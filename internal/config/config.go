// Package config loads the environment configuration recognized by the
// core. Required keys have no safe default and cause startup to fail fast;
// optional keys fall back to their stated defaults.
package config

import (
	"fmt"

	"github.com/jmagar/swag-mcp/internal/models"
	"github.com/spf13/viper"
)

// ExitCode mirrors the exit codes a process wrapping the core should use.
type ExitCode int

const (
	ExitSuccess        ExitCode = 0
	ExitUnhandled      ExitCode = 1
	ExitInvalidConfig  ExitCode = 2
	ExitMissingTemplate ExitCode = 3
)

// Config is the fully resolved environment configuration.
type Config struct {
	ConfigDir   string
	TemplateDir string
	LogDir      string

	DefaultAuthMethod  models.AuthMethod
	DefaultConfigBase  models.BaseType
	DefaultQUICEnabled bool
	BackupRetentionDays int
	HealthTimeoutDefaultS int
	MaxFileBytes int64

	HealthCheckInsecure bool
}

// ConfigError reports that a required key was missing or a value failed
// basic sanity checks; the caller should exit with ExitInvalidConfig.
type ConfigError struct {
	Key string
	Msg string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Msg)
}

// Load reads the environment configuration using viper, bound to the
// SWAG_MCP_ prefix, with env-var overrides of the bare key names listed in
// convention also accepted for operational convenience.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SWAG_MCP")
	v.AutomaticEnv()

	// Also bind the bare, unprefixed names directly, since operators commonly
	// set these without a SWAG_MCP_ prefix.
	bareKeys := []string{
		"CONFIG_DIR", "TEMPLATE_DIR", "LOG_DIR",
		"DEFAULT_AUTH_METHOD", "DEFAULT_CONFIG_BASE", "DEFAULT_QUIC_ENABLED",
		"BACKUP_RETENTION_DAYS", "HEALTH_TIMEOUT_DEFAULT_S", "MAX_FILE_BYTES",
		"HEALTH_CHECK_INSECURE",
	}
	for _, k := range bareKeys {
		_ = v.BindEnv(k, k)
	}

	v.SetDefault("DEFAULT_AUTH_METHOD", string(models.AuthAuthelia))
	v.SetDefault("DEFAULT_CONFIG_BASE", string(models.BaseSubdomain))
	v.SetDefault("DEFAULT_QUIC_ENABLED", false)
	v.SetDefault("BACKUP_RETENTION_DAYS", 30)
	v.SetDefault("HEALTH_TIMEOUT_DEFAULT_S", 30)
	v.SetDefault("MAX_FILE_BYTES", 2097152)
	v.SetDefault("HEALTH_CHECK_INSECURE", false)

	configDir := v.GetString("CONFIG_DIR")
	if configDir == "" {
		return nil, &ConfigError{Key: "CONFIG_DIR", Msg: "required, no safe default"}
	}
	templateDir := v.GetString("TEMPLATE_DIR")
	if templateDir == "" {
		return nil, &ConfigError{Key: "TEMPLATE_DIR", Msg: "required, no safe default"}
	}
	logDir := v.GetString("LOG_DIR")
	if logDir == "" {
		return nil, &ConfigError{Key: "LOG_DIR", Msg: "required, no safe default"}
	}

	cfg := &Config{
		ConfigDir:             configDir,
		TemplateDir:           templateDir,
		LogDir:                logDir,
		DefaultAuthMethod:     models.AuthMethod(v.GetString("DEFAULT_AUTH_METHOD")),
		DefaultConfigBase:     models.BaseType(v.GetString("DEFAULT_CONFIG_BASE")),
		DefaultQUICEnabled:    v.GetBool("DEFAULT_QUIC_ENABLED"),
		BackupRetentionDays:   v.GetInt("BACKUP_RETENTION_DAYS"),
		HealthTimeoutDefaultS: v.GetInt("HEALTH_TIMEOUT_DEFAULT_S"),
		MaxFileBytes:          v.GetInt64("MAX_FILE_BYTES"),
		HealthCheckInsecure:   v.GetBool("HEALTH_CHECK_INSECURE"),
	}
	return cfg, nil
}

// Defaults projects the operator-configured defaults as the models.Defaults
// snapshot returned by the defaults() operation.
func (c *Config) Defaults() models.Defaults {
	return models.Defaults{
		AuthMethod:  c.DefaultAuthMethod,
		ConfigBase:  c.DefaultConfigBase,
		QUICEnabled: c.DefaultQUICEnabled,
	}
}
