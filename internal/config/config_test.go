package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semchunk/internal/embedder"
	"github.com/dshills/semchunk/internal/logging"
	"github.com/dshills/semchunk/internal/segmenter"
)

func parseMap(t *testing.T, vars map[string]string) (*Config, error) {
	t.Helper()
	return Parse(env.Options{Environment: vars})
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parseMap(t, map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ".semchunk/semchunk.db", cfg.DBPath)
	assert.Equal(t, 1, cfg.BufferSize)
	assert.Equal(t, 80.0, cfg.PercentileThreshold)
	assert.Equal(t, 2, cfg.MinChunkSentences)
	assert.Equal(t, segmenter.NameAuto, cfg.Segmenter)
	assert.Equal(t, 40, cfg.FixedWindowWords)
	assert.Equal(t, 10000, cfg.EmbeddingCacheSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogJSON)
	assert.Equal(t, embedder.ProviderLocal, cfg.Provider())
	assert.Positive(t, cfg.WorkerCount())
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := parseMap(t, map[string]string{
		"SEMCHUNK_DB_PATH":              "/tmp/x.db",
		"SEMCHUNK_BUFFER_SIZE":          "2",
		"SEMCHUNK_PERCENTILE_THRESHOLD": "92.5",
		"SEMCHUNK_MIN_CHUNK_SENTENCES":  "3",
		"SEMCHUNK_SEGMENTER":            "fixed",
		"SEMCHUNK_FIXED_WINDOW_WORDS":   "25",
		"SEMCHUNK_LOG_LEVEL":            "debug",
		"SEMCHUNK_LOG_JSON":             "true",
		"SEMCHUNK_WORKERS":              "3",
		"JINA_API_KEY":                  "jina-key",
	})
	require.NoError(t, err)

	opts := cfg.ChunkOptions()
	assert.Equal(t, 2, opts.BufferSize)
	assert.Equal(t, 92.5, opts.PercentileThreshold)
	assert.Equal(t, 3, opts.MinChunkSentences)
	assert.Equal(t, 3, cfg.WorkerCount())

	seg, err := cfg.NewSegmenter()
	require.NoError(t, err)
	assert.Equal(t, segmenter.NameFixed, seg.Name())

	ecfg := cfg.EmbedderConfig()
	assert.Equal(t, embedder.ProviderJina, ecfg.Provider)
	assert.Equal(t, "jina-key", ecfg.APIKey)

	lcfg := cfg.LoggingConfig()
	assert.Equal(t, logging.DebugLevel, lcfg.Level)
	assert.True(t, lcfg.JSON)
}

func TestEmbedderConfig_Ollama(t *testing.T) {
	cfg, err := parseMap(t, map[string]string{
		"SEMCHUNK_EMBEDDING_PROVIDER": "ollama",
		"SEMCHUNK_OLLAMA_URL":         "http://gpu-box:11434/",
		"SEMCHUNK_EMBEDDING_MODEL":    "mxbai-embed-large",
		"OPENAI_API_KEY":              "ignored",
	})
	require.NoError(t, err)

	ecfg := cfg.EmbedderConfig()
	assert.Equal(t, embedder.ProviderOllama, ecfg.Provider)
	assert.Equal(t, "http://gpu-box:11434/api", ecfg.BaseURL)
	assert.Equal(t, "mxbai-embed-large", ecfg.Model)
	assert.Empty(t, ecfg.APIKey)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{name: "negative buffer", vars: map[string]string{"SEMCHUNK_BUFFER_SIZE": "-1"}},
		{name: "percentile too high", vars: map[string]string{"SEMCHUNK_PERCENTILE_THRESHOLD": "150"}},
		{name: "zero min sentences", vars: map[string]string{"SEMCHUNK_MIN_CHUNK_SENTENCES": "0"}},
		{name: "unknown segmenter", vars: map[string]string{"SEMCHUNK_SEGMENTER": "paragraphs"}},
		{name: "unknown provider", vars: map[string]string{"SEMCHUNK_EMBEDDING_PROVIDER": "word2vec"}},
		{name: "batch too large", vars: map[string]string{"SEMCHUNK_EMBEDDING_BATCH_SIZE": "500"}},
		{name: "zero attempts", vars: map[string]string{"SEMCHUNK_EMBEDDING_MAX_ATTEMPTS": "0"}},
		{name: "negative workers", vars: map[string]string{"SEMCHUNK_WORKERS": "-2"}},
		{name: "not a number", vars: map[string]string{"SEMCHUNK_BUFFER_SIZE": "one"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseMap(t, tt.vars)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	const key = "SEMCHUNK_FIXED_WINDOW_WORDS"
	if _, set := os.LookupEnv(key); set {
		t.Skipf("%s already set in the environment", key)
	}
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=17\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 17, cfg.FixedWindowWords)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}
