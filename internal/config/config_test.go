package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("GATEWAY_DRIVER", "")
	t.Setenv("CHANGEFEED_DRIVER", "")
	t.Setenv("SIDE_EFFECTS_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, GatewayMemory, cfg.Gateway.Driver)
	assert.Equal(t, ChangeFeedMemory, cfg.ChangeFeed.Driver)
	assert.Equal(t, SideEffectsOutbox, cfg.SideEffects.Mode)
	assert.Equal(t, "@every 5s", cfg.SideEffects.OutboxSchedule)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, 2*time.Second, cfg.ChangeFeed.ReconnectDelay)
	assert.Equal(t, 5*time.Second, cfg.Postgres.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.Zero(t, cfg.Redis.PoolSize)
}

func TestLoadPostgresDefaultsGateway(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/helpdesk")
	t.Setenv("GATEWAY_DRIVER", "")
	t.Setenv("CHANGEFEED_DRIVER", ChangeFeedPostgres)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, GatewayPostgres, cfg.Gateway.Driver)
	assert.Equal(t, ChangeFeedPostgres, cfg.ChangeFeed.Driver)
}

func TestLoadRejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "primary")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid REDIS_DB")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Gateway:     GatewayConfig{Driver: GatewayMemory},
			ChangeFeed:  ChangeFeedConfig{Driver: ChangeFeedMemory},
			SideEffects: SideEffectsConfig{Mode: SideEffectsDirect},
		}
	}

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown gateway", func(c *Config) { c.Gateway.Driver = "mysql" }, "unknown GATEWAY_DRIVER"},
		{"postgres without dsn", func(c *Config) { c.Gateway.Driver = GatewayPostgres }, "requires POSTGRES_DSN"},
		{"pg feed on memory gateway", func(c *Config) { c.ChangeFeed.Driver = ChangeFeedPostgres }, "requires the postgres gateway"},
		{"unknown feed", func(c *Config) { c.ChangeFeed.Driver = "kafka" }, "unknown CHANGEFEED_DRIVER"},
		{"unknown mode", func(c *Config) { c.SideEffects.Mode = "async" }, "unknown SIDE_EFFECTS_MODE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("HELPDESK_TEST_INT", "not-a-number")
	t.Setenv("HELPDESK_TEST_BOOL", "maybe")
	t.Setenv("HELPDESK_TEST_DURATION", "soon")

	assert.Equal(t, 7, getEnvAsInt("HELPDESK_TEST_INT", 7))
	assert.True(t, getEnvAsBool("HELPDESK_TEST_BOOL", true))
	assert.Equal(t, time.Second, getEnvAsDuration("HELPDESK_TEST_DURATION", time.Second))
	assert.Equal(t, "fallback", getEnv("HELPDESK_TEST_MISSING", "fallback"))
}
