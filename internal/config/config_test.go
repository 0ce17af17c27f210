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
	t.Setenv("CHATRELAY_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ModeLocal, cfg.Mode)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, "hackaton_chat", cfg.MongoDatabase)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.True(t, cfg.UseMockLLM)
	assert.True(t, cfg.SerializeTurns)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHATRELAY_PORT", "9090")
	t.Setenv("CHATRELAY_STORAGE_BACKEND", "SQLite")
	t.Setenv("CHATRELAY_PERSIST_QUEUE_SIZE", "8")
	t.Setenv("CHATRELAY_PERSIST_WRITE_TIMEOUT", "3s")
	t.Setenv("CHATRELAY_SERIALIZE_TURNS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StorageSQLite, cfg.StorageBackend)
	assert.Equal(t, 8, cfg.PersistQueueSize)
	assert.Equal(t, 3*time.Second, cfg.PersistWriteTimeout)
	assert.False(t, cfg.SerializeTurns)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatrelay.yaml")
	body := []byte(`
port: "7000"
storage_backend: mongo
mongo_database: other_db
analysis_concurrency: 4
shutdown_timeout: 30s
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("CHATRELAY_CONFIG", path)
	t.Setenv("CHATRELAY_PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7001", cfg.Port, "env wins over file")
	assert.Equal(t, StorageMongo, cfg.StorageBackend)
	assert.Equal(t, "other_db", cfg.MongoDatabase)
	assert.Equal(t, 4, cfg.AnalysisConcurrency)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("bad int", func(t *testing.T) {
		t.Setenv("CHATRELAY_PERSIST_WORKERS", "many")
		_, err := Load()
		assert.ErrorContains(t, err, "CHATRELAY_PERSIST_WORKERS")
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("CHATRELAY_STORAGE_BACKEND", "cassandra")
		_, err := Load()
		assert.ErrorContains(t, err, "unknown storage backend")
	})

	t.Run("firestore without project", func(t *testing.T) {
		t.Setenv("CHATRELAY_STORAGE_BACKEND", "firestore")
		_, err := Load()
		assert.ErrorContains(t, err, "CHATRELAY_GCP_PROJECT")
	})

	t.Run("real llm without keys", func(t *testing.T) {
		t.Setenv("CHATRELAY_USE_MOCK_LLM", "false")
		_, err := Load()
		assert.ErrorContains(t, err, "GEMINI_API")
		assert.ErrorContains(t, err, "MISTRAL_API")
	})

	t.Run("vertex without location", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "chatrelay.yaml")
		require.NoError(t, os.WriteFile(path, []byte("gcp_location: \"\"\n"), 0o600))
		t.Setenv("CHATRELAY_CONFIG", path)
		t.Setenv("CHATRELAY_USE_MOCK_LLM", "false")
		t.Setenv("CHATRELAY_GCP_PROJECT", "demo")
		t.Setenv("MISTRAL_API", "key")

		_, err := Load()
		assert.ErrorContains(t, err, "CHATRELAY_GCP_LOCATION")
	})

	t.Run("api key needs no location", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "chatrelay.yaml")
		require.NoError(t, os.WriteFile(path, []byte("gcp_location: \"\"\n"), 0o600))
		t.Setenv("CHATRELAY_CONFIG", path)
		t.Setenv("CHATRELAY_USE_MOCK_LLM", "false")
		t.Setenv("GEMINI_API", "key")
		t.Setenv("MISTRAL_API", "key")

		_, err := Load()
		assert.NoError(t, err)
	})

	t.Run("non positive shutdown timeout", func(t *testing.T) {
		t.Setenv("CHATRELAY_SHUTDOWN_TIMEOUT", "0s")
		_, err := Load()
		assert.ErrorContains(t, err, "shutdown timeout must be positive")
	})

	t.Run("negative write timeout", func(t *testing.T) {
		t.Setenv("CHATRELAY_PERSIST_WRITE_TIMEOUT", "-1s")
		_, err := Load()
		assert.ErrorContains(t, err, "persist write timeout must be positive")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Setenv("CHATRELAY_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.ErrorContains(t, err, "reading config file")
	})
}
