package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaultsAutoDriver(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "auto"
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, "sqlite", cfg.DBDriver)

	cfg = NewForTesting()
	cfg.DBDriver = "auto"
	cfg.PostgresDSN = "postgres://localhost/reminders"
	require.NoError(t, cfg.ResolveDefaults())
	assert.Equal(t, "postgres", cfg.DBDriver)
}

func TestResolveDefaultsRejectsUnknownDriver(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "dynamo"
	assert.Error(t, cfg.ResolveDefaults())
}

func TestResolveDefaultsPostgresNeedsDSN(t *testing.T) {
	cfg := NewForTesting()
	cfg.DBDriver = "postgres"
	cfg.PostgresDSN = ""
	assert.Error(t, cfg.ResolveDefaults())
}

func TestResolveDefaultsValidatesTimeZone(t *testing.T) {
	cfg := NewForTesting()
	cfg.DisplayTimeZone = "Mars/Olympus_Mons"
	assert.Error(t, cfg.ResolveDefaults())
}
