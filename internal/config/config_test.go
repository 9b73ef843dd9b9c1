package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every override so ambient variables do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RAG_INDEX_PATH", "RAG_REMOTE_KEY", "RAG_REMOTE", "REDIS_URL", "REDIS_PREFIX",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION", "RAG_DEDUPE",
		"TRANSCRIBE_WITH_OPENAI", "GENERATE_WITH_OPENAI", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"GITHUB_TOKEN", "PORT", "SERVER_MODE", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("data", "index.json"), cfg.Index.Path)
	assert.Equal(t, "index.json", cfg.Index.RemoteKey)
	assert.Equal(t, RemoteNone, cfg.Remote.Backend)
	assert.Equal(t, "lexrag:", cfg.Remote.Redis.Prefix)
	assert.Equal(t, 6334, cfg.Remote.Qdrant.Port)
	assert.Equal(t, 5, cfg.Search.DefaultTopK)
	assert.Equal(t, 50, cfg.Search.MaxTopK)
	assert.Equal(t, 6, cfg.Synthesis.MaxSentences)
	assert.Equal(t, 8, cfg.Synthesis.MinSentenceChars)
	assert.Equal(t, 1.2, cfg.Synthesis.K1)
	assert.Equal(t, 0.75, cfg.Synthesis.B)
	assert.Equal(t, 2000, cfg.Synthesis.MaxAnswerChars)
	assert.Equal(t, "keep", cfg.Ingest.Dedupe)
	assert.Equal(t, 4, cfg.Ingest.Concurrency)
	assert.Equal(t, int64(60), int64(cfg.Ingest.FetchTimeout().Seconds()))
	assert.False(t, cfg.Transcription.Enabled)
	assert.False(t, cfg.Generation.Enabled)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "stdio", cfg.Server.Mode)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileValuesKeptAndGapsFilled(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "lexrag.yaml")
	yaml := `
index:
  path: /var/lib/lexrag/index.json
remote:
  backend: redis
  redis:
    url: redis://cache:6379/2
search:
  default_top_k: 3
ingest:
  dedupe: last-write-wins
transcription:
  enabled: true
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/lexrag/index.json", cfg.Index.Path)
	assert.Equal(t, RemoteRedis, cfg.Remote.Backend)
	assert.Equal(t, "redis://cache:6379/2", cfg.Remote.Redis.URL)
	assert.Equal(t, "lexrag:", cfg.Remote.Redis.Prefix)
	assert.Equal(t, 3, cfg.Search.DefaultTopK)
	assert.Equal(t, 50, cfg.Search.MaxTopK)
	assert.Equal(t, "last-write-wins", cfg.Ingest.Dedupe)
	assert.True(t, cfg.Transcription.Enabled)
	assert.Equal(t, "whisper-1", cfg.Transcription.Model)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "lexrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote:\n  backend: redis\n"), 0o644))

	t.Setenv("RAG_REMOTE", "QDRANT")
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("QDRANT_PORT", "7334")
	t.Setenv("RAG_INDEX_PATH", "/tmp/idx.json")
	t.Setenv("GENERATE_WITH_OPENAI", "true")
	t.Setenv("SERVER_MODE", "true")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, RemoteQdrant, cfg.Remote.Backend)
	assert.Equal(t, "qdrant.internal", cfg.Remote.Qdrant.Host)
	assert.Equal(t, 7334, cfg.Remote.Qdrant.Port)
	assert.Equal(t, "/tmp/idx.json", cfg.Index.Path)
	assert.True(t, cfg.Generation.Enabled)
	assert.Equal(t, "http", cfg.Server.Mode)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidEnvNumbersIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("QDRANT_PORT", "not-a-port")
	t.Setenv("TRANSCRIBE_WITH_OPENAI", "maybe")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6334, cfg.Remote.Qdrant.Port)
	assert.False(t, cfg.Transcription.Enabled)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Remote.Backend = "s3" }, "remote.backend"},
		{"topK above max", func(c *Config) { c.Search.DefaultTopK = 80 }, "default_top_k"},
		{"unknown dedupe", func(c *Config) { c.Ingest.Dedupe = "first" }, "ingest.dedupe"},
		{"zero concurrency", func(c *Config) { c.Ingest.Concurrency = -1 }, "concurrency"},
		{"bad mode", func(c *Config) { c.Server.Mode = "sse" }, "server.mode"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "lexrag.yaml")
	cfg := Default()
	cfg.GitHub.Owner = "acme"
	cfg.GitHub.Repo = "handbook"

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "acme", loaded.GitHub.Owner)
	assert.Equal(t, cfg.Synthesis, loaded.Synthesis)
}
