package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmagar/swag-mcp/internal/models"
)

func TestLoadFailsFastOnMissingRequiredKey(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "CONFIG_DIR", cerr.Key)
}

func TestLoadAcceptsBareEnvNames(t *testing.T) {
	t.Setenv("CONFIG_DIR", "/config/nginx/proxy-confs")
	t.Setenv("TEMPLATE_DIR", "/app/templates")
	t.Setenv("LOG_DIR", "/config/log")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/config/nginx/proxy-confs", cfg.ConfigDir)
	assert.Equal(t, "/app/templates", cfg.TemplateDir)
	assert.Equal(t, "/config/log", cfg.LogDir)

	// Optional keys fall back to their stated defaults.
	assert.Equal(t, models.AuthAuthelia, cfg.DefaultAuthMethod)
	assert.Equal(t, models.BaseSubdomain, cfg.DefaultConfigBase)
	assert.False(t, cfg.DefaultQUICEnabled)
	assert.Equal(t, 30, cfg.BackupRetentionDays)
	assert.Equal(t, 30, cfg.HealthTimeoutDefaultS)
	assert.Equal(t, int64(2097152), cfg.MaxFileBytes)
}

func TestLoadAcceptsPrefixedEnvNames(t *testing.T) {
	t.Setenv("SWAG_MCP_CONFIG_DIR", "/config/nginx/proxy-confs")
	t.Setenv("SWAG_MCP_TEMPLATE_DIR", "/app/templates")
	t.Setenv("SWAG_MCP_LOG_DIR", "/config/log")
	t.Setenv("SWAG_MCP_BACKUP_RETENTION_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/config/nginx/proxy-confs", cfg.ConfigDir)
	assert.Equal(t, 7, cfg.BackupRetentionDays)
}

func TestDefaultsProjectsOperatorConfiguredValues(t *testing.T) {
	cfg := &Config{
		DefaultAuthMethod:  models.AuthLDAP,
		DefaultConfigBase:  models.BaseSubfolder,
		DefaultQUICEnabled: true,
	}
	d := cfg.Defaults()
	assert.Equal(t, models.AuthLDAP, d.AuthMethod)
	assert.Equal(t, models.BaseSubfolder, d.ConfigBase)
	assert.True(t, d.QUICEnabled)
}
