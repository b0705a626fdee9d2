package config

import (
	"fmt"
	"net/url"
	"strings"

	"api-chain/internal/util"
)

// --- Known values definitions ---
var (
	knownLogLevels   = []string{"none", "error", "warn", "warning", "info", "debug"}
	knownEngines     = []string{EngineJS, EngineExpr, EngineJQ, EngineCEL}
	knownHttpMethods = []string{"GET", "POST"}
)

// isValidEnumValue checks case-insensitively whether value is one of allowedValues.
func isValidEnumValue(value string, allowedValues []string) bool {
	for _, allowed := range allowedValues {
		if strings.EqualFold(value, allowed) {
			return true
		}
	}
	return false
}

// ValidateConfigManually performs comprehensive validation of the loaded configuration.
func ValidateConfigManually(cfg *Config) error {
	var allErrors []string
	allErrors = append(allErrors, validateLoggingConfig("Config.Logging", &cfg.Logging)...)
	allErrors = append(allErrors, validateHTTPConfig("Config.HTTP", &cfg.HTTP)...)
	allErrors = append(allErrors, validateTransformConfig("Config.Transform", &cfg.Transform)...)

	methods := make(map[string]string, len(cfg.Catalog))
	if len(cfg.Catalog) < 1 {
		allErrors = append(allErrors, "- Config.Catalog: at least one endpoint definition is required")
	}
	for i := range cfg.Catalog {
		ep := &cfg.Catalog[i]
		prefix := fmt.Sprintf("Config.Catalog[%d]", i)
		if ep.Name != "" {
			prefix = fmt.Sprintf("Config.Catalog[%s]", ep.Name)
			if _, dup := methods[ep.Name]; dup {
				allErrors = append(allErrors, fmt.Sprintf("- %s.Name: duplicate endpoint name", prefix))
			}
			methods[ep.Name] = strings.ToUpper(ep.Method)
		}
		allErrors = append(allErrors, validateEndpointConfig(prefix, ep)...)
	}

	if cfg.Chain != nil {
		allErrors = append(allErrors, validateChainConfig("Config.Chain", cfg.Chain, methods)...)
	}
	if len(allErrors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(allErrors, "\n"))
	}
	return nil
}

func validateLoggingConfig(prefix string, cfg *LoggingConfig) []string {
	var errs []string
	if !isValidEnumValue(cfg.Level, knownLogLevels) {
		errs = append(errs, fmt.Sprintf("- %s.Level: invalid log level '%s', must be one of %v", prefix, cfg.Level, knownLogLevels))
	}
	return errs
}

func validateHTTPConfig(prefix string, cfg *HTTPConfig) []string {
	var errs []string
	if cfg.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Sprintf("- %s.TimeoutSeconds: cannot be negative", prefix))
	}
	return errs
}

func validateTransformConfig(prefix string, cfg *TransformConfig) []string {
	var errs []string
	if !isValidEnumValue(cfg.Engine, knownEngines) {
		errs = append(errs, fmt.Sprintf("- %s.Engine: invalid engine '%s', must be one of %v", prefix, cfg.Engine, knownEngines))
	}
	if cfg.TimeoutMs < 0 {
		errs = append(errs, fmt.Sprintf("- %s.TimeoutMs: cannot be negative", prefix))
	}
	return errs
}

func validateEndpointConfig(prefix string, cfg *EndpointConfig) []string {
	var errs []string
	if cfg.Name == "" {
		errs = append(errs, fmt.Sprintf("- %s.Name: is required", prefix))
	}
	if cfg.URL == "" {
		errs = append(errs, fmt.Sprintf("- %s.URL: is required", prefix))
	} else {
		expanded := util.ExpandEnvUniversal(cfg.URL)
		parsedURL, err := url.ParseRequestURI(expanded)
		if err != nil {
			errs = append(errs, fmt.Sprintf("- %s.URL: invalid URL format: %v", prefix, err))
		} else if scheme := strings.ToLower(parsedURL.Scheme); scheme != "http" && scheme != "https" {
			errs = append(errs, fmt.Sprintf("- %s.URL: invalid URL scheme '%s', must be http or https", prefix, parsedURL.Scheme))
		}
	}
	if !isValidEnumValue(cfg.Method, knownHttpMethods) {
		errs = append(errs, fmt.Sprintf("- %s.Method: invalid HTTP method '%s', must be GET or POST", prefix, cfg.Method))
	}
	return errs
}

func validateChainConfig(prefix string, cfg *ChainConfig, methods map[string]string) []string {
	var errs []string
	if cfg.Output != nil && cfg.Output.File == "" {
		errs = append(errs, fmt.Sprintf("- %s.Output.File: is required when output is set", prefix))
	}
	for i, step := range cfg.Steps {
		stepPrefix := fmt.Sprintf("%s.Steps[%d]", prefix, i)
		method, known := methods[step.Endpoint]
		switch {
		case step.Endpoint == "":
			errs = append(errs, fmt.Sprintf("- %s.Endpoint: is required", stepPrefix))
		case !known:
			errs = append(errs, fmt.Sprintf("- %s.Endpoint: unknown endpoint '%s'", stepPrefix, step.Endpoint))
		case method != "POST" && step.Body != nil:
			errs = append(errs, fmt.Sprintf("- %s.Body: only POST endpoints take a body, '%s' is %s", stepPrefix, step.Endpoint, method))
		}
		if step.Engine != "" && !isValidEnumValue(step.Engine, knownEngines) {
			errs = append(errs, fmt.Sprintf("- %s.Engine: invalid engine '%s', must be one of %v", stepPrefix, step.Engine, knownEngines))
		}
		for j, field := range step.Fields {
			fieldPrefix := fmt.Sprintf("%s.Fields[%d]", stepPrefix, j)
			if field.SourceStep < 0 || field.SourceStep >= len(cfg.Steps) {
				errs = append(errs, fmt.Sprintf("- %s.SourceStep: %d is outside the chain (0-%d)", fieldPrefix, field.SourceStep, len(cfg.Steps)-1))
			}
			if field.SourceField == "" {
				errs = append(errs, fmt.Sprintf("- %s.SourceField: is required", fieldPrefix))
			}
			if field.TargetField == "" {
				errs = append(errs, fmt.Sprintf("- %s.TargetField: is required", fieldPrefix))
			}
		}
	}
	return errs
}
