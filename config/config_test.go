package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "recordhub", cfg.App.Name)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 2*time.Minute, cfg.AuthCode.TTL)
	assert.Equal(t, 300, cfg.Database.Startup.MaxAttempts)
	assert.Equal(t, "log", cfg.Events.Routes["user_auth_code"].Created)
	assert.Equal(t, "log", cfg.Events.Routes["file"].Updated)
	assert.Equal(t, "/images/avatar", cfg.Files.URLPrefixes["avatar"])
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RECORDHUB_DATABASE_DRIVER", "sqlite")
	t.Setenv("RECORDHUB_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recordhub.yaml")
	content := `
app:
  env: production
database:
  driver: mysql
  host: db.internal
redis:
  enabled: true
mail:
  enabled: true
  from: codes@example.com
events:
  routes:
    user_auth_code:
      created: mail
    file:
      created: queue
      updated: queue
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "mail", cfg.Events.Routes["user_auth_code"].Created)
	assert.Equal(t, "log", cfg.Events.Routes["user_auth_code"].Updated)
	assert.Equal(t, "queue", cfg.Events.Routes["file"].Created)
	assert.Equal(t, "codes@example.com", cfg.Mail.From)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "sqlite"},
			Events:   EventsConfig{Routes: map[string]EventRoute{"user": {Created: "log", Updated: "noop"}}},
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Database.Driver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Events.Routes["file"] = EventRoute{Created: "queue"}
	assert.ErrorContains(t, cfg.Validate(), "redis.enabled")

	cfg = base()
	cfg.Events.Routes["user_auth_code"] = EventRoute{Created: "mail"}
	assert.ErrorContains(t, cfg.Validate(), "mail.enabled")

	cfg = base()
	cfg.Events.Routes["user"] = EventRoute{Created: "carrier-pigeon"}
	assert.ErrorContains(t, cfg.Validate(), "unknown sender")

	cfg = base()
	cfg.Database.Driver = "memory"
	cfg.Worker.Enabled = true
	assert.Error(t, cfg.Validate())
}
