package fbconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCreateExampleConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "example.yaml")

	require.NoError(t, CreateExampleConfig(file))

	data, err := os.ReadFile(file)
	require.NoError(t, err)

	var config Config
	require.NoError(t, yaml.Unmarshal(data, &config))
	assert.Equal(t, "sqlite", config.Database.Db)
	assert.Equal(t, "admin@example.com", config.User.Login)
	assert.Equal(t, "simulated", config.Payments.Gateway)
	assert.Equal(t, time.Hour, config.Auth.TokenTTL)
}

func TestLoadHashesSeedPassword(t *testing.T) {
	file := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, CreateExampleConfig(file))

	conf, err := Load(file)
	require.NoError(t, err)
	assert.Empty(t, conf.User.Pass)
	assert.True(t, strings.HasPrefix(conf.User.Hash, "argon2id$"))

	reloaded, err := LoadConfig(file)
	require.NoError(t, err)
	assert.Empty(t, reloaded.User.Pass)
	assert.Equal(t, conf.User.Hash, reloaded.User.Hash)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FUNNELBOARD_JWT_SECRET", "from-env")
	t.Setenv("FUNNELBOARD_LISTEN", ":9000")

	conf := &Config{Auth: AuthConfig{JWTSecret: "from-file"}}
	applyEnv(conf)
	applyDefaults(conf)

	assert.Equal(t, "from-env", conf.Auth.JWTSecret)
	assert.Equal(t, "localhost:9000", conf.Listen.Website)
	assert.Equal(t, 30, conf.Maintenance.RetentionDays)
	assert.Equal(t, "120-M", conf.Tracking.RateLimit)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{
			Database: DatabaseConfig{Db: "sqlite", Path: "x.db"},
			Auth:     AuthConfig{JWTSecret: "secret"},
			Payments: PaymentsConfig{Gateway: "simulated"},
		}
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty db", func(c *Config) { c.Database.Db = "" }, "database.db cannot be empty"},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"mysql without dsn", func(c *Config) { c.Database.Db = "mysql" }, "database.dsn"},
		{"unknown db", func(c *Config) { c.Database.Db = "oracle" }, "must be sqlite, mysql or postgres"},
		{"no secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwtsecret"},
		{"default secret in production", func(c *Config) {
			c.Production = true
			c.Auth.JWTSecret = "change-me"
		}, "must be changed"},
		{"unknown gateway", func(c *Config) { c.Payments.Gateway = "paypal" }, "payments.gateway"},
		{"short password", func(c *Config) { c.User.Pass = "short" }, "at least 8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := Validate(c)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
