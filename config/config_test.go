package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{EnvFile: missingEnvFile(t), Lookup: envLookup(nil)})
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Model.ID)
	assert.Equal(t, 0, cfg.Model.RequestsPerMinute, "client-side limiting is opt-in")
	assert.Equal(t, 0, cfg.Capacity())
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultBranchTimeout, cfg.BranchTimeout)
	assert.Equal(t, 0, cfg.ModelKeys.Len())
	assert.Error(t, cfg.Validate())
}

func TestLoadPrecedence(t *testing.T) {
	yamlFile := writeFile(t, "fashnai.yaml", `
http_addr: ":9000"
model:
  provider: openai
  id: gpt-4o-mini
  requests_per_minute: 10
redis:
  addr: "localhost:6379"
branch_timeout: 30s
max_retries: 2
`)
	envFile := writeFile(t, ".env", "MODEL_API_KEY_1=a\nMODEL_API_KEY_2=b\nMAX_RETRIES=4\nSERPER_API_KEY=serper\n")
	cfg, err := Load(Options{
		File:    yamlFile,
		EnvFile: envFile,
		Lookup:  envLookup(map[string]string{"MAX_RETRIES": "5", "REDIS_ADDR": "redis:6379"}),
	})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.ID)
	assert.Equal(t, 30*time.Second, cfg.BranchTimeout)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "serper", cfg.Search.SerperAPIKey)
	assert.Equal(t, []string{"a", "b"}, cfg.ModelKeys.Keys())
	assert.Equal(t, 20, cfg.Capacity())
}

func TestLoadSingleKeyFallback(t *testing.T) {
	cfg, err := Load(Options{
		EnvFile: missingEnvFile(t),
		Lookup:  envLookup(map[string]string{"MODEL_API_KEY": "k", "GEMINI_API_KEY": "g", "GEMINI_API_KEY_2": "g2"}),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, cfg.ModelKeys.Keys())
	assert.Equal(t, []string{"g2"}, cfg.GeminiKeys.Keys())
}

func TestLoadInvalidValues(t *testing.T) {
	_, err := Load(Options{
		EnvFile: missingEnvFile(t),
		Lookup:  envLookup(map[string]string{"MAX_RETRIES": "three", "BRANCH_TIMEOUT": "soon"}),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_RETRIES")
	assert.Contains(t, err.Error(), "BRANCH_TIMEOUT")
}

func TestLoadMissingYAML(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "nope.yaml"), EnvFile: missingEnvFile(t), Lookup: envLookup(nil)})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		env  map[string]string
		want string
	}{
		"unknown provider":      {map[string]string{"MODEL_PROVIDER": "cohere", "MODEL_ID": "x"}, `unknown model provider "cohere"`},
		"bedrock needs no keys": {map[string]string{"MODEL_PROVIDER": "Bedrock"}, ""},
		"zero rpm is unlimited": {map[string]string{"MODEL_API_KEY": "k", "MODEL_REQUESTS_PER_MINUTE": "0"}, ""},
		"negative rpm":          {map[string]string{"MODEL_API_KEY": "k", "MODEL_REQUESTS_PER_MINUTE": "-1"}, "MODEL_REQUESTS_PER_MINUTE"},
		"zero retries":          {map[string]string{"MODEL_API_KEY": "k", "MAX_RETRIES": "0"}, "MAX_RETRIES"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(Options{EnvFile: missingEnvFile(t), Lookup: envLookup(tc.env)})
			require.NoError(t, err)
			err = cfg.Validate()
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
