package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "content", cfg.Worker.Queue)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, 60*time.Second, cfg.Retry.MaxDelay)
	assert.False(t, cfg.R2.Enabled())

	policy := cfg.Retry.Policy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 2.0, policy.ExponentialBase)
}

func TestLoad_EnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_INITIAL_DELAY", "500ms")
	t.Setenv("LLM_MODEL", "test-model")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, "test-model", cfg.LLM.Model)
}

func TestReadSecret_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm_key")
	require.NoError(t, os.WriteFile(path, []byte("sk-secret\n"), 0o600))

	t.Setenv("LLM_API_KEY", "")
	t.Setenv("LLM_API_KEY_FILE", path)

	readSecret("LLM_API_KEY")
	assert.Equal(t, "sk-secret", os.Getenv("LLM_API_KEY"))
}

func TestReadSecret_DirectValueWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llm_key")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o600))

	t.Setenv("LLM_API_KEY", "direct")
	t.Setenv("LLM_API_KEY_FILE", path)

	readSecret("LLM_API_KEY")
	assert.Equal(t, "direct", os.Getenv("LLM_API_KEY"))
}
