package config

// Transformation engine names.
const (
	EngineJS   = "js"
	EngineExpr = "expr"
	EngineJQ   = "jq"
	EngineCEL  = "cel"
)

// Config holds the endpoint catalog, runtime settings and an optional chain definition.
type Config struct {
	Logging   LoggingConfig    `yaml:"logging"`
	HTTP      HTTPConfig       `yaml:"http"`
	Transform TransformConfig  `yaml:"transform"`
	Catalog   []EndpointConfig `yaml:"catalog,omitempty"`
	Chain     *ChainConfig     `yaml:"chain,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// HTTPConfig controls the client used for step requests.
type HTTPConfig struct {
	TimeoutSeconds int  `yaml:"timeout_seconds"` // 0 means no timeout
	TlsSkipVerify  bool `yaml:"tls_skip_verify,omitempty"`
	ForceHTTP1     bool `yaml:"force_http1,omitempty"`
}

// TransformConfig selects the default transformation engine.
type TransformConfig struct {
	Engine    string `yaml:"engine"`
	TimeoutMs int    `yaml:"timeout_ms"` // js only; 0 means no limit
}

// EndpointConfig is one entry of the endpoint catalog.
type EndpointConfig struct {
	Name   string   `yaml:"name"`
	URL    string   `yaml:"url"`
	Method string   `yaml:"method"`
	Fields []string `yaml:"fields,omitempty"`
}

// ChainConfig defines a chain to execute from the command line.
type ChainConfig struct {
	Steps  []ChainStep  `yaml:"steps"`
	Output *ChainOutput `yaml:"output,omitempty"`
}

// ChainOutput names the file the executed chain is written to.
type ChainOutput struct {
	File string `yaml:"file"` // env enabled
}

// ChainStep represents one step in the chain, referring to a catalog endpoint by name.
type ChainStep struct {
	Endpoint       string         `yaml:"endpoint"`
	Engine         string         `yaml:"engine,omitempty"`
	Transformation string         `yaml:"transformation,omitempty"`
	Body           map[string]any `yaml:"body,omitempty"`
	Fields         []FieldMapping `yaml:"fields,omitempty"`
}

// FieldMapping copies source_field of step source_step (0-based) into target_field.
type FieldMapping struct {
	SourceStep  int    `yaml:"source_step"`
	SourceField string `yaml:"source_field"`
	TargetField string `yaml:"target_field"`
}
