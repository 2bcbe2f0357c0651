package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENV", "DEBUG", "DB_DRIVER", "DB_DSN", "SQLITE_PATH", "HTTP_ADDR",
		"BOOKING_LEAD_MINUTES", "TIME_ZONE", "CORS_ALLOWED_ORIGINS",
		"AMQP_EXCHANGE", "NOTIFY_QUEUE_SIZE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DSN", "postgres://localhost/portal")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 60*time.Minute, cfg.LeadTime)
	assert.Equal(t, "Europe/London", cfg.Location.String())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "advising.events", cfg.AMQPExchange)
	assert.Equal(t, 256, cfg.NotifyQueueSize)
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("BOOKING_LEAD_MINUTES", "0")
	t.Setenv("TIME_ZONE", "UTC")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.Equal(t, time.Duration(0), cfg.LeadTime)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "sqlite")

	t.Setenv("BOOKING_LEAD_MINUTES", "soon")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("BOOKING_LEAD_MINUTES", "")
	t.Setenv("TIME_ZONE", "Mars/Olympus")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("TIME_ZONE", "")
	t.Setenv("DB_DRIVER", "mysql")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadFallsBackToKeyring(t *testing.T) {
	keyring.MockInit()
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)

	require.NoError(t, SetDSN("postgres://from-keyring/portal"))
	t.Cleanup(func() { _ = DeleteDSN() })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://from-keyring/portal", cfg.DBDSN)
}

func TestDeleteDSNNotFound(t *testing.T) {
	keyring.MockInit()
	assert.ErrorIs(t, DeleteDSN(), ErrDSNNotFound)
}
