package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.NotEmpty(t, cfg.DatabaseDSN)
	assert.NotEmpty(t, cfg.SecretKey)
	assert.Equal(t, 15*time.Minute, cfg.TokenValidityDuration)
}

func TestJsonConfig_ParsesDurationString(t *testing.T) {
	var jc jsonConfig
	require.NoError(t, json.Unmarshal([]byte(`{
		"database_dsn": "postgres://localhost/sync",
		"token_validity_duration": "1h"
	}`), &jc))

	assert.Equal(t, "postgres://localhost/sync", jc.DatabaseDSN)
	assert.Equal(t, time.Hour, jc.TokenValidityDuration.Duration)
}
