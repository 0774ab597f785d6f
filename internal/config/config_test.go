package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/wire"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 3*time.Second, cfg.NoticeTTL)
	assert.Equal(t, "serviceRequestState", cfg.SessionKey)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, wire.FirstInstance, cfg.Strategy)
	assert.Equal(t, "compose.db", cfg.StorePath())
}

func TestLoad_File(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvDB, "")
	t.Setenv(EnvBackend, "")
	t.Setenv(EnvStrategy, "")
	t.Setenv(EnvOffline, "")

	cfg, err := Load("testdata/compose.yaml")
	require.NoError(t, err)

	assert.Equal(t, "https://lab.example.com/api", cfg.APIURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, BackendBadger, cfg.Backend)
	assert.Equal(t, "/var/lib/compose/state", cfg.StorePath())
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.Equal(t, "catalog.cue", cfg.Catalog)
	assert.Equal(t, wire.AllInstances, cfg.Strategy)
	assert.Equal(t, 5*time.Second, cfg.NoticeTTL)
	assert.Equal(t, 0.5, cfg.DrainRate)
	assert.Equal(t, 5, cfg.DrainMaxAttempts)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIURL, "http://override/api")
	t.Setenv(EnvDB, "/tmp/x.db")
	t.Setenv(EnvBackend, "sqlite")
	t.Setenv(EnvStrategy, "first-instance")
	t.Setenv(EnvOffline, "true")

	cfg, err := Load("testdata/compose.yaml")
	require.NoError(t, err)
	assert.Equal(t, "http://override/api", cfg.APIURL)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, wire.FirstInstance, cfg.Strategy)
	assert.True(t, cfg.Offline)
}

func TestApplyEnv_BadBool(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{EnvOffline: "sometimes"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvOffline)
}

func TestParse_EmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_RejectsUnknownField(t *testing.T) {
	_, err := Parse([]byte("debounse: 1s\n"))
	require.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"backend", "backend: postgres\n", "unknown backend"},
		{"strategy", "strategy: every\n", "unknown transformation strategy"},
		{"drain rate", "drain_rate: 0\n", "drain_rate"},
		{"negative debounce", "debounce: -1s\n", "debounce"},
		{"empty key", "session_key: \"\"\n", "session_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/nope.yaml")
	require.Error(t, err)
}
