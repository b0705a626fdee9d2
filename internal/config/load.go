package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCatalog returns the endpoints available when the config file does not define any.
func DefaultCatalog() []EndpointConfig {
	return []EndpointConfig{
		{
			Name:   "Get Users List",
			URL:    "https://jsonplaceholder.typicode.com/users",
			Method: "GET",
			Fields: []string{"id", "name", "email", "username"},
		},
		{
			Name:   "Create New Post",
			URL:    "https://jsonplaceholder.typicode.com/posts",
			Method: "POST",
			Fields: []string{"id", "title", "body", "userId"},
		},
		{
			Name:   "Get Comments by Post",
			URL:    "https://jsonplaceholder.typicode.com/comments",
			Method: "GET",
			Fields: []string{"id", "postId", "name", "email", "body"},
		},
	}
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads, parses, and validates the YAML configuration file.
func LoadConfig(filename string) (*Config, error) {
	fileBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filename, err)
	}

	var config Config
	err = yaml.Unmarshal(fileBytes, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML in '%s': %w", filename, err)
	}

	applyDefaults(&config)

	if err := ValidateConfigManually(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	config.Transform.Engine = strings.ToLower(config.Transform.Engine)
	if config.Transform.Engine == "" {
		config.Transform.Engine = EngineJS
	}
	if config.Chain != nil {
		for i := range config.Chain.Steps {
			config.Chain.Steps[i].Engine = strings.ToLower(config.Chain.Steps[i].Engine)
		}
	}
	if len(config.Catalog) == 0 {
		config.Catalog = DefaultCatalog()
	}
}
