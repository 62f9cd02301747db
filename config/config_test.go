package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmprovider "github.com/starhound/null-llm-go"
)

const yamlSettings = `# null-llm settings
provider: anthropic
system_prompt: Be brief.
providers:
  anthropic:
    api_key: sk-ant-file
    model: claude-3-5-haiku-latest
  ollama:
    endpoint: http://localhost:11434
generation:
  max_tokens: 512
  temperature: 0.3
  read_timeout: 90s
  connect_timeout: 2
fallback:
  enabled: true
  providers: [openai, ollama]
  max_retries: 2
  initial_backoff: 500ms
`

const jsoncSettings = `{
  // active provider
  "provider": "openai",
  "providers": {
    "openai": {"api_key": "sk-file", "model": "gpt-4o",},
  },
  /* disable failover */
  "fallback": {"enabled": false, "max_backoff": "10s"},
  "generation": {"read_timeout": 30,},
}`

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseYAML(t *testing.T) {
	s, err := Parse([]byte(yamlSettings))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", s.Provider)
	assert.Equal(t, "sk-ant-file", s.Providers["anthropic"].APIKey)
	assert.Equal(t, "http://localhost:11434", s.Providers["ollama"].Endpoint)
	require.NotNil(t, s.Generation.MaxTokens)
	assert.Equal(t, 512, *s.Generation.MaxTokens)
	assert.Equal(t, 90*time.Second, s.Generation.ReadTimeout.Std())
	assert.Equal(t, 2*time.Second, s.Generation.ConnectTimeout.Std())
	assert.Equal(t, []string{"openai", "ollama"}, s.Fallback.Providers)
	assert.Equal(t, 500*time.Millisecond, s.Fallback.InitialBackoff.Std())
}

func TestParseJSONC(t *testing.T) {
	s, err := Parse([]byte(jsoncSettings))
	require.NoError(t, err)

	assert.Equal(t, "openai", s.Provider)
	assert.Equal(t, "gpt-4o", s.Providers["openai"].Model)
	require.NotNil(t, s.Fallback.Enabled)
	assert.False(t, *s.Fallback.Enabled)
	assert.Equal(t, 10*time.Second, s.Fallback.MaxBackoff.Std())
	assert.Equal(t, 30*time.Second, s.Generation.ReadTimeout.Std())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`{"provider": 3}`))
	assert.Error(t, err)

	_, err = Parse([]byte("generation:\n  read_timeout: soon\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", yamlSettings)
	env := envMap(map[string]string{
		"OPENAI_API_KEY":            "sk-env",
		"ANTHROPIC_API_KEY":         "sk-ant-env",
		"NULL_LLM_OLLAMA_MODEL":     "qwen2.5",
		"NULL_LLM_PROVIDER":         "ollama",
		"NULL_LLM_FALLBACK_ENABLED": "false",
	})

	c, err := Load(path, WithoutDotEnv(), WithLookupEnv(env))
	require.NoError(t, err)
	assert.Equal(t, path, c.Path())

	assert.Equal(t, "ollama", c.ActiveProvider())
	assert.Equal(t, "Be brief.", c.SystemPrompt())

	// Vendor variables only fill gaps.
	assert.Equal(t, "sk-ant-file", c.ProviderConfig("anthropic").APIKey)
	assert.Equal(t, "sk-env", c.ProviderConfig("openai").APIKey)

	ollama := c.ProviderConfig("ollama")
	assert.Equal(t, llmprovider.ProviderOllama, ollama.Name)
	assert.Equal(t, "qwen2.5", ollama.Model)
	assert.Equal(t, "http://localhost:11434", ollama.Endpoint)
	require.NotNil(t, ollama.Options)
	assert.Equal(t, 512, ollama.Options.GetMaxTokens(0))
	assert.Equal(t, 90*time.Second, ollama.Options.GetReadTimeout(0))

	fb := c.Fallback()
	assert.False(t, fb.Enabled)
	assert.Equal(t, []string{"openai", "ollama"}, fb.Providers)
	assert.Equal(t, 2, fb.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, fb.InitialBackoff)
	assert.Equal(t, 30*time.Second, fb.MaxBackoff)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	c, err := Load("", WithoutDotEnv(), WithLookupEnv(envMap(nil)))
	require.NoError(t, err)
	assert.Equal(t, DefaultProvider, c.ActiveProvider())
	assert.True(t, c.Fallback().Enabled)

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"), WithoutDotEnv())
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	path := writeFile(t, "config.yaml", "generation:\n  temperature: 3\n")
	_, err := Load(path, WithoutDotEnv(), WithLookupEnv(envMap(nil)))
	assert.ErrorIs(t, err, llmprovider.ErrInvalidRequest)

	path = writeFile(t, "config.yaml", "fallback:\n  backoff_multiplier: 0.5\n")
	_, err = Load(path, WithoutDotEnv(), WithLookupEnv(envMap(nil)))
	assert.Error(t, err)
}

func TestAccessToken(t *testing.T) {
	c := New(Settings{})
	assert.Nil(t, c.ProviderConfig("claude_oauth").Tokens)

	s := Settings{}
	applyEnv(&s, envMap(map[string]string{"CLAUDE_CODE_OAUTH_TOKEN": "tok"}))
	c = New(s)

	tokens := c.ProviderConfig("claude_oauth").Tokens
	require.NotNil(t, tokens)
	token, err := tokens.ValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestSetters(t *testing.T) {
	c := New(Settings{})
	c.SetActiveProvider("lorem")
	c.SetModel("lorem", "lorem-fast")

	assert.Equal(t, "lorem", c.ActiveProvider())
	assert.Equal(t, "lorem-fast", c.ProviderConfig("lorem").Model)

	snapshot := c.Settings()
	snapshot.Providers["lorem"] = ProviderSettings{Model: "changed"}
	assert.Equal(t, "lorem-fast", c.ProviderConfig("lorem").Model)
}

func TestDotEnv(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("NULL_LLM_TEST_DOTENV=loaded\n"), 0o600))

	path, ok := FindDotEnv(nested)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, ".env"), path)

	t.Setenv("NULL_LLM_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("NULL_LLM_TEST_DOTENV"))
	require.NoError(t, LoadDotEnv(nested))
	assert.Equal(t, "loaded", os.Getenv("NULL_LLM_TEST_DOTENV"))
}
