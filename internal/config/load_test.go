package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a temporary config file for testing
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	filePath := filepath.Join(dir, "chain.yaml")
	err := os.WriteFile(filePath, []byte(content), 0644)
	require.NoError(t, err, "Failed to create temporary config file")
	return filePath
}

func TestLoadConfig_ValidCases(t *testing.T) {
	t.Run("Minimal Valid Config", func(t *testing.T) {
		validYAML := `
logging: { level: info }
catalog:
  - { name: Users, url: http://example.com/users, method: GET }
`
		filePath := createTempConfigFile(t, validYAML)
		cfg, err := LoadConfig(filePath)
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.Equal(t, "info", cfg.Logging.Level)
		require.Len(t, cfg.Catalog, 1, "A configured catalog replaces the defaults")
		assert.Equal(t, "http://example.com/users", cfg.Catalog[0].URL)
		assert.Nil(t, cfg.Chain, "Chain should be nil when not defined")
	})

	t.Run("Config with Chain", func(t *testing.T) {
		validYAML := `
logging: { level: debug }
http: { timeout_seconds: 30, force_http1: true }
transform: { engine: expr, timeout_ms: 250 }
chain:
  output: { file: result.json }
  steps:
    - endpoint: Get Users List
      transformation: "data[0]"
    - endpoint: Create New Post
      engine: js
      body: { title: hello, tags: [a, b] }
      fields:
        - { source_step: 0, source_field: id, target_field: userId }
    - endpoint: Get Comments by Post
      engine: jq
      transformation: "[.[].email]"
      fields:
        - { source_step: 1, source_field: id, target_field: postId }
`
		filePath := createTempConfigFile(t, validYAML)
		cfg, err := LoadConfig(filePath)
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, 30, cfg.HTTP.TimeoutSeconds)
		assert.True(t, cfg.HTTP.ForceHTTP1)
		assert.Equal(t, EngineExpr, cfg.Transform.Engine)
		assert.Equal(t, 250, cfg.Transform.TimeoutMs)
		assert.Equal(t, DefaultCatalog(), cfg.Catalog)

		require.NotNil(t, cfg.Chain)
		require.Len(t, cfg.Chain.Steps, 3)
		assert.Equal(t, "data[0]", cfg.Chain.Steps[0].Transformation)
		assert.Equal(t, "hello", cfg.Chain.Steps[1].Body["title"])
		assert.Equal(t, []any{"a", "b"}, cfg.Chain.Steps[1].Body["tags"])
		assert.Equal(t, []FieldMapping{{SourceStep: 0, SourceField: "id", TargetField: "userId"}}, cfg.Chain.Steps[1].Fields)
		assert.Equal(t, EngineJQ, cfg.Chain.Steps[2].Engine)
		require.NotNil(t, cfg.Chain.Output)
		assert.Equal(t, "result.json", cfg.Chain.Output.File)
	})

	t.Run("Config with Defaults Applied", func(t *testing.T) {
		filePath := createTempConfigFile(t, "")
		cfg, err := LoadConfig(filePath)
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, EngineJS, cfg.Transform.Engine)
		assert.Zero(t, cfg.HTTP.TimeoutSeconds, "No timeout unless configured")
		require.Len(t, cfg.Catalog, 3)
		assert.Equal(t, "Get Users List", cfg.Catalog[0].Name)
		assert.Equal(t, []string{"id", "title", "body", "userId"}, cfg.Catalog[1].Fields)
	})

	t.Run("Engine Names Normalized", func(t *testing.T) {
		validYAML := `
transform: { engine: JS }
chain:
  steps:
    - endpoint: Get Users List
      engine: JQ
      transformation: length
`
		cfg, err := LoadConfig(createTempConfigFile(t, validYAML))
		require.NoError(t, err)
		assert.Equal(t, EngineJS, cfg.Transform.Engine)
		assert.Equal(t, EngineJQ, cfg.Chain.Steps[0].Engine)
	})

	t.Run("Env Placeholder In URL", func(t *testing.T) {
		t.Setenv("API_CHAIN_TEST_HOST", "api.test")
		validYAML := `
catalog:
  - { name: Users, url: "https://${API_CHAIN_TEST_HOST}/users", method: get }
`
		cfg, err := LoadConfig(createTempConfigFile(t, validYAML))
		require.NoError(t, err)
		assert.Equal(t, "https://${API_CHAIN_TEST_HOST}/users", cfg.Catalog[0].URL, "Expansion happens when the catalog is built")
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, ValidateConfigManually(cfg))
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, EngineJS, cfg.Transform.Engine)
	assert.Len(t, cfg.Catalog, 3)
	assert.Nil(t, cfg.Chain)
}

func TestLoadConfig_ErrorCases(t *testing.T) {
	t.Run("File Not Found", func(t *testing.T) {
		_, err := LoadConfig("nonexistent_config_file_12345.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("Invalid YAML Syntax", func(t *testing.T) {
		invalidYAML := `
logging: {level: info}
catalog:
  - { name: a, url: "http://a.com", method: GET } } # Extra brace
`
		filePath := createTempConfigFile(t, invalidYAML)
		_, err := LoadConfig(filePath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML")
	})
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	baseValid := `
logging:
  level: info
transform:
  engine: js
catalog:
  - name: Users
    url: http://a.com/users
    method: GET
  - name: Posts
    url: http://a.com/posts
    method: POST
`
	tests := []struct {
		name        string
		yaml        string
		errContains []string
	}{
		{
			name:        "Invalid Log Level",
			yaml:        strings.Replace(baseValid, "level: info", "level: trace", 1),
			errContains: []string{"Config.Logging.Level: invalid log level 'trace'"},
		},
		{
			name:        "Invalid Engine",
			yaml:        strings.Replace(baseValid, "engine: js", "engine: lua", 1),
			errContains: []string{"Config.Transform.Engine: invalid engine 'lua'"},
		},
		{
			name:        "Negative Timeouts",
			yaml:        baseValid + "http: { timeout_seconds: -1 }\n",
			errContains: []string{"Config.HTTP.TimeoutSeconds: cannot be negative"},
		},
		{
			name:        "Unknown Method",
			yaml:        strings.Replace(baseValid, "method: POST", "method: DELETE", 1),
			errContains: []string{"Config.Catalog[Posts].Method: invalid HTTP method 'DELETE'"},
		},
		{
			name:        "Invalid URL Scheme",
			yaml:        strings.Replace(baseValid, "http://a.com/users", "htp:/invalid", 1),
			errContains: []string{"invalid URL scheme 'htp', must be http or https"},
		},
		{
			name:        "Relative URL",
			yaml:        strings.Replace(baseValid, "http://a.com/users", "users", 1),
			errContains: []string{"Config.Catalog[Users].URL: invalid URL format"},
		},
		{
			name: "Missing Name And Duplicate",
			yaml: baseValid + `  - { url: http://a.com/x, method: GET }
  - { name: Users, url: http://a.com/y, method: GET }
`,
			errContains: []string{"Config.Catalog[2].Name: is required", "Config.Catalog[Users].Name: duplicate endpoint name"},
		},
		{
			name: "Chain Step Problems",
			yaml: baseValid + `chain:
  output: {}
  steps:
    - endpoint: Nope
    - endpoint: Users
      engine: python
      body: { a: 1 }
      fields:
        - { source_step: -1, source_field: id, target_field: userId }
        - { source_step: 5 }
`,
			errContains: []string{
				"Config.Chain.Output.File: is required when output is set",
				"Config.Chain.Steps[0].Endpoint: unknown endpoint 'Nope'",
				"Config.Chain.Steps[1].Engine: invalid engine 'python'",
				"Config.Chain.Steps[1].Body: only POST endpoints take a body, 'Users' is GET",
				"Config.Chain.Steps[1].Fields[0].SourceStep: -1 is outside the chain (0-1)",
				"Config.Chain.Steps[1].Fields[1].SourceStep: 5 is outside the chain (0-1)",
				"Config.Chain.Steps[1].Fields[1].SourceField: is required",
				"Config.Chain.Steps[1].Fields[1].TargetField: is required",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(createTempConfigFile(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "configuration validation failed:")
			for _, want := range tt.errContains {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
