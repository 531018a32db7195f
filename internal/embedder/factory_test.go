package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		jinaKey   string
		openaiKey string
		want      string
	}{
		{name: "explicit jina", provider: "jina", want: ProviderJina},
		{name: "explicit openai uppercased", provider: "OpenAI", want: ProviderOpenAI},
		{name: "explicit ollama", provider: "ollama", want: ProviderOllama},
		{name: "explicit wins over keys", provider: "local", jinaKey: "k", want: ProviderLocal},
		{name: "jina key present", jinaKey: "k", want: ProviderJina},
		{name: "openai key present", openaiKey: "k", want: ProviderOpenAI},
		{name: "both keys, jina takes precedence", jinaKey: "a", openaiKey: "b", want: ProviderJina},
		{name: "nothing set falls back to local", want: ProviderLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveProvider(tt.provider, tt.jinaKey, tt.openaiKey))
		})
	}
}

func TestDetectProvider(t *testing.T) {
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "openai-key")
	assert.Equal(t, ProviderOpenAI, DetectProvider())

	t.Setenv(EnvProvider, "ollama")
	assert.Equal(t, ProviderOllama, DetectProvider())
}

func TestAPIKeyFor(t *testing.T) {
	assert.Equal(t, "j", APIKeyFor(ProviderJina, "j", "o"))
	assert.Equal(t, "o", APIKeyFor(ProviderOpenAI, "j", "o"))
	assert.Empty(t, APIKeyFor(ProviderLocal, "j", "o"))
	assert.Empty(t, APIKeyFor(ProviderOllama, "j", "o"))
}

func TestNewFromEnv(t *testing.T) {
	t.Run("falls back to local", func(t *testing.T) {
		t.Setenv(EnvProvider, "")
		t.Setenv(EnvJinaAPIKey, "")
		t.Setenv(EnvOpenAIAPIKey, "")

		emb, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, emb.Provider())
	})

	t.Run("uses jina key", func(t *testing.T) {
		t.Setenv(EnvProvider, "")
		t.Setenv(EnvJinaAPIKey, "jina-key")
		t.Setenv(EnvOpenAIAPIKey, "")

		emb, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, ProviderJina, emb.Provider())
		assert.Equal(t, JinaDimension, emb.Dimension())
	})

	t.Run("explicit provider without key fails", func(t *testing.T) {
		t.Setenv(EnvProvider, "openai")
		t.Setenv(EnvJinaAPIKey, "")
		t.Setenv(EnvOpenAIAPIKey, "")

		_, err := NewFromEnv()
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantProvider string
		wantModel    string
		wantErr      error
	}{
		{name: "local", cfg: Config{Provider: "local"}, wantProvider: ProviderLocal, wantModel: DefaultLocalModel},
		{name: "jina with key", cfg: Config{Provider: "jina", APIKey: "k"}, wantProvider: ProviderJina, wantModel: DefaultJinaModel},
		{name: "openai custom model", cfg: Config{Provider: "openai", APIKey: "k", Model: "text-embedding-3-large"}, wantProvider: ProviderOpenAI, wantModel: "text-embedding-3-large"},
		{name: "ollama", cfg: Config{Provider: "ollama", Model: "mxbai-embed-large"}, wantProvider: ProviderOllama, wantModel: "mxbai-embed-large"},
		{name: "jina without key", cfg: Config{Provider: "jina"}, wantErr: ErrNoProviderEnabled},
		{name: "unknown provider", cfg: Config{Provider: "word2vec"}, wantErr: ErrUnsupportedModel},
		{name: "empty provider", cfg: Config{}, wantErr: ErrUnsupportedModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer func() { _ = emb.Close() }()
			assert.Equal(t, tt.wantProvider, emb.Provider())
			assert.Equal(t, tt.wantModel, emb.Model())
		})
	}
}
