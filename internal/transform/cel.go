package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var jsonValueType = reflect.TypeOf(&structpb.Value{})

// celEngine evaluates Common Expression Language expressions with data bound
// as a dynamically typed variable. Compiled programs are cached.
type celEngine struct {
	once   sync.Once
	env    *cel.Env
	envErr error

	mu    sync.RWMutex
	cache map[string]cel.Program
}

func (e *celEngine) environment() (*cel.Env, error) {
	e.once.Do(func() {
		e.env, e.envErr = cel.NewEnv(cel.Variable("data", cel.DynType))
		if e.envErr != nil {
			e.envErr = fmt.Errorf("create CEL environment: %w", e.envErr)
		}
	})
	return e.env, e.envErr
}

func (e *celEngine) getOrCompile(expression string) (cel.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	env, err := e.environment()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	prg, err := env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, fmt.Errorf("CEL program error: %w", err)
	}
	if e.cache == nil {
		e.cache = make(map[string]cel.Program)
	}
	e.cache[expression] = prg
	return prg, nil
}

func (e *celEngine) Eval(ctx context.Context, expression string, data any) (any, error) {
	prg, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}
	out, _, err := prg.ContextEval(ctx, map[string]any{"data": data})
	if err != nil {
		return nil, fmt.Errorf("CEL evaluation failed: %w", err)
	}
	return celToJSON(out)
}

// celToJSON converts a CEL value into decoded JSON through its protobuf
// JSON form. Integers become float64 like every other JSON number.
func celToJSON(v ref.Val) (any, error) {
	native, err := v.ConvertToNative(jsonValueType)
	if err != nil {
		return nil, fmt.Errorf("result is not representable as JSON: %w", err)
	}
	encoded, err := protojson.Marshal(native.(*structpb.Value))
	if err != nil {
		return nil, fmt.Errorf("result is not representable as JSON: %w", err)
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("result is not representable as JSON: %w", err)
	}
	return out, nil
}
