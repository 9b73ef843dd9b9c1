// Package config loads the lexrag configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Remote backends.
const (
	RemoteNone   = "none"
	RemoteRedis  = "redis"
	RemoteQdrant = "qdrant"
)

// IndexConfig locates the persisted index.
type IndexConfig struct {
	Path      string `yaml:"path"`
	RemoteKey string `yaml:"remote_key"`
}

// RedisConfig configures the redis mirror.
type RedisConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// QdrantConfig configures the qdrant mirror.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// RemoteConfig selects the optional remote mirror.
type RemoteConfig struct {
	Backend string       `yaml:"backend"`
	Redis   RedisConfig  `yaml:"redis"`
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

// SearchConfig bounds topK.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// SynthesisConfig tunes the extractive answer.
type SynthesisConfig struct {
	MaxDocuments     int     `yaml:"max_documents"`
	MaxSentences     int     `yaml:"max_sentences"`
	MinSentenceChars int     `yaml:"min_sentence_chars"`
	K1               float64 `yaml:"k1"`
	B                float64 `yaml:"b"`
	MaxAnswerChars   int     `yaml:"max_answer_chars"`
}

// IngestConfig tunes document resolution.
type IngestConfig struct {
	Dedupe           string `yaml:"dedupe"`
	Concurrency      int    `yaml:"concurrency"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs"`
	MaxMediaBytes    int64  `yaml:"max_media_bytes"`
}

// FetchTimeout returns the media fetch timeout as a duration.
func (c IngestConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
}

// TranscriptionConfig enables the speech-to-text collaborator.
type TranscriptionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

// GenerationConfig enables generative answers.
type GenerationConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// OpenAIConfig holds credentials shared by transcription and generation.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// GitHubConfig names the repository synced by "ragctl sync".
type GitHubConfig struct {
	Owner         string `yaml:"owner"`
	Repo          string `yaml:"repo"`
	Path          string `yaml:"path"`
	Ref           string `yaml:"ref"`
	SplitSections bool   `yaml:"split_sections"`
	Token         string `yaml:"token"`
}

// ServerConfig configures ragd.
type ServerConfig struct {
	Port string `yaml:"port"`
	// Mode is "http" (API and MCP over HTTP) or "stdio" (MCP over stdio,
	// API in the background).
	Mode string `yaml:"mode"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration.
type Config struct {
	Index         IndexConfig         `yaml:"index"`
	Remote        RemoteConfig        `yaml:"remote"`
	Search        SearchConfig        `yaml:"search"`
	Synthesis     SynthesisConfig     `yaml:"synthesis"`
	Ingest        IngestConfig        `yaml:"ingest"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Generation    GenerationConfig    `yaml:"generation"`
	OpenAI        OpenAIConfig        `yaml:"openai"`
	GitHub        GitHubConfig        `yaml:"github"`
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the config at path, fills unset fields with defaults and applies
// environment overrides. A missing file yields the defaults; an empty path
// skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyDefaults(cfg)
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyDefaults(cfg *Config) {
	if cfg.Index.Path == "" {
		cfg.Index.Path = filepath.Join("data", "index.json")
	}
	if cfg.Index.RemoteKey == "" {
		cfg.Index.RemoteKey = "index.json"
	}
	if cfg.Remote.Backend == "" {
		cfg.Remote.Backend = RemoteNone
	}
	if cfg.Remote.Redis.URL == "" {
		cfg.Remote.Redis.URL = "redis://localhost:6379/0"
	}
	if cfg.Remote.Redis.Prefix == "" {
		cfg.Remote.Redis.Prefix = "lexrag:"
	}
	if cfg.Remote.Qdrant.Host == "" {
		cfg.Remote.Qdrant.Host = "localhost"
	}
	if cfg.Remote.Qdrant.Port == 0 {
		cfg.Remote.Qdrant.Port = 6334
	}
	if cfg.Remote.Qdrant.Collection == "" {
		cfg.Remote.Qdrant.Collection = "lexrag_index"
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 50
	}
	if cfg.Synthesis.MaxDocuments == 0 {
		cfg.Synthesis.MaxDocuments = 6
	}
	if cfg.Synthesis.MaxSentences == 0 {
		cfg.Synthesis.MaxSentences = 6
	}
	if cfg.Synthesis.MinSentenceChars == 0 {
		cfg.Synthesis.MinSentenceChars = 8
	}
	if cfg.Synthesis.K1 == 0 {
		cfg.Synthesis.K1 = 1.2
	}
	if cfg.Synthesis.B == 0 {
		cfg.Synthesis.B = 0.75
	}
	if cfg.Synthesis.MaxAnswerChars == 0 {
		cfg.Synthesis.MaxAnswerChars = 2000
	}
	if cfg.Ingest.Dedupe == "" {
		cfg.Ingest.Dedupe = "keep"
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}
	if cfg.Ingest.FetchTimeoutSecs == 0 {
		cfg.Ingest.FetchTimeoutSecs = 60
	}
	if cfg.Ingest.MaxMediaBytes == 0 {
		cfg.Ingest.MaxMediaBytes = 25 << 20
	}
	if cfg.Transcription.Model == "" {
		cfg.Transcription.Model = "whisper-1"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o"
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 16000
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "stdio"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	c.Index.Path = getEnv("RAG_INDEX_PATH", c.Index.Path)
	c.Index.RemoteKey = getEnv("RAG_REMOTE_KEY", c.Index.RemoteKey)
	c.Remote.Backend = strings.ToLower(getEnv("RAG_REMOTE", c.Remote.Backend))
	c.Remote.Redis.URL = getEnv("REDIS_URL", c.Remote.Redis.URL)
	c.Remote.Redis.Prefix = getEnv("REDIS_PREFIX", c.Remote.Redis.Prefix)
	c.Remote.Qdrant.Host = getEnv("QDRANT_HOST", c.Remote.Qdrant.Host)
	c.Remote.Qdrant.Port = getEnvInt("QDRANT_PORT", c.Remote.Qdrant.Port)
	c.Remote.Qdrant.Collection = getEnv("QDRANT_COLLECTION", c.Remote.Qdrant.Collection)
	c.Ingest.Dedupe = getEnv("RAG_DEDUPE", c.Ingest.Dedupe)

	c.Transcription.Enabled = getEnvBool("TRANSCRIBE_WITH_OPENAI", c.Transcription.Enabled)
	c.Generation.Enabled = getEnvBool("GENERATE_WITH_OPENAI", c.Generation.Enabled)
	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.GitHub.Token = getEnv("GITHUB_TOKEN", c.GitHub.Token)

	c.Server.Port = getEnv("PORT", c.Server.Port)
	// SERVER_MODE=true is the deployment switch for HTTP mode
	switch v := strings.ToLower(os.Getenv("SERVER_MODE")); v {
	case "":
	case "true", "1", "http":
		c.Server.Mode = "http"
	default:
		c.Server.Mode = "stdio"
	}
	c.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", c.Log.Level))
	c.Log.Format = strings.ToLower(getEnv("LOG_FORMAT", c.Log.Format))
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Remote.Backend {
	case RemoteNone, RemoteRedis, RemoteQdrant:
	default:
		return fmt.Errorf("remote.backend must be 'none', 'redis' or 'qdrant', got %s", c.Remote.Backend)
	}
	if c.Search.DefaultTopK < 1 || c.Search.MaxTopK < c.Search.DefaultTopK {
		return fmt.Errorf("search.default_top_k must be between 1 and max_top_k (%d), got %d",
			c.Search.MaxTopK, c.Search.DefaultTopK)
	}
	switch c.Ingest.Dedupe {
	case "keep", "last-write-wins":
	default:
		return fmt.Errorf("ingest.dedupe must be 'keep' or 'last-write-wins', got %s", c.Ingest.Dedupe)
	}
	if c.Ingest.Concurrency < 1 {
		return fmt.Errorf("ingest.concurrency must be positive, got %d", c.Ingest.Concurrency)
	}
	switch c.Server.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("server.mode must be 'http' or 'stdio', got %s", c.Server.Mode)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json', got %s", c.Log.Format)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
