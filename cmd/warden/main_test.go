package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"warden/internal/config"
	"warden/internal/database/sqlstore"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLDriver(t *testing.T) {
	d, err := sqlDriver("sqlite")
	require.NoError(t, err)
	assert.Equal(t, sqlstore.DriverSQLite, d)

	d, err = sqlDriver("postgres")
	require.NoError(t, err)
	assert.Equal(t, sqlstore.DriverPostgres, d)

	_, err = sqlDriver("mysql")
	assert.Error(t, err)
}

func TestDSNFor(t *testing.T) {
	assert.Equal(t, sqlstore.SQLiteDSN("warden.db"), dsnFor(config.DatabaseConfig{Driver: "sqlite", DSN: "warden.db"}))
	assert.Equal(t, "postgres://x", dsnFor(config.DatabaseConfig{Driver: "postgres", DSN: "postgres://x"}))
}

func TestSetupLogging(t *testing.T) {
	originalLogger := log.Logger
	originalLevel := zerolog.GlobalLevel()
	defer func() {
		log.Logger = originalLogger
		zerolog.SetGlobalLevel(originalLevel)
	}()

	t.Run("json output with structured fields", func(t *testing.T) {
		var buf bytes.Buffer
		setupLogging(config.LogConfig{Level: "info", Format: "json"}, &buf)

		log.Info().Str("guild_id", "1").Int64("case_id", 7).Msg("pipeline: action executed")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
		assert.Equal(t, "pipeline: action executed", entry["message"])
		assert.Equal(t, "1", entry["guild_id"])
		assert.Equal(t, float64(7), entry["case_id"])
		assert.Contains(t, entry, "time")
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		setupLogging(config.LogConfig{Level: "warn", Format: "json"}, &buf)

		log.Info().Msg("hidden")
		log.Warn().Msg("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("console output", func(t *testing.T) {
		var buf bytes.Buffer
		setupLogging(config.LogConfig{}, &buf)

		log.Info().Msg("hello")
		assert.Contains(t, buf.String(), "hello")
		assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
		assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	})
}
