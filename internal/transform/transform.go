// Package transform applies a step's transformation expression to a parsed
// response. The expression sees exactly one bound name, data.
package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"api-chain/internal/config"
	"api-chain/internal/logging"
	"api-chain/internal/util"
)

// ErrTransform is matched by every transformation failure.
var ErrTransform = errors.New("transformation failed")

// Error is a failed transformation. Its message carries the
// "Transformation failed:" prefix that identifies the phase.
type Error struct {
	Engine string
	Err    error
}

func (e *Error) Error() string {
	return "Transformation failed: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrTransform }

// Engine evaluates one expression against data.
type Engine interface {
	Eval(ctx context.Context, expression string, data any) (any, error)
}

// Transformer dispatches expressions to the configured engines.
type Transformer struct {
	engines       map[string]Engine
	defaultEngine string
}

// New creates a Transformer with the js, expr, jq and cel engines registered.
// A nil cfg selects the js engine without a time limit.
func New(cfg *config.TransformConfig) *Transformer {
	defaultEngine := config.EngineJS
	var timeout time.Duration
	if cfg != nil {
		if cfg.Engine != "" {
			defaultEngine = strings.ToLower(cfg.Engine)
		}
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	return &Transformer{
		engines: map[string]Engine{
			config.EngineJS:   &jsEngine{timeout: timeout},
			config.EngineExpr: &exprEngine{},
			config.EngineJQ:   jqEngine{},
			config.EngineCEL:  &celEngine{},
		},
		defaultEngine: defaultEngine,
	}
}

// Register adds or replaces an engine under name. Engine names are case-insensitive.
func (t *Transformer) Register(name string, engine Engine) {
	t.engines[strings.ToLower(name)] = engine
}

// DefaultEngine returns the engine used when a step does not name one.
func (t *Transformer) DefaultEngine() string {
	return t.defaultEngine
}

// Transform evaluates expression against data with the named engine, or the
// default engine when engineName is empty. Engine names match case-insensitively.
// An empty or whitespace-only expression returns data unchanged.
func (t *Transformer) Transform(ctx context.Context, engineName, expression string, data any) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return data, nil
	}
	engineName = strings.ToLower(engineName)
	if engineName == "" {
		engineName = t.defaultEngine
	}
	engine, ok := t.engines[engineName]
	if !ok {
		return nil, &Error{Engine: engineName, Err: fmt.Errorf("unknown transformation engine '%s'", engineName)}
	}

	logging.Logf(logging.Debug, "Applying transformation (%s): %s", engineName, expression)
	result, err := engine.Eval(ctx, expression, data)
	if err != nil {
		return nil, &Error{Engine: engineName, Err: err}
	}
	logging.Logf(logging.Debug, "Transformed data: %s", util.JSONSnippet(result))
	return result, nil
}

// normalize converts an engine result into plain decoded JSON
// (map[string]any, []any, float64, string, bool, nil).
func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("result is not representable as JSON: %w", err)
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("result is not representable as JSON: %w", err)
	}
	return out, nil
}
