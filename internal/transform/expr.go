package transform

import (
	"context"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// exprEngine evaluates expr-lang expressions. Programs are compiled without a
// typed environment so the same expression works for any shape of data.
type exprEngine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func (e *exprEngine) getOrCompile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}
	prg, err := expr.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("expr compile error: %w", err)
	}
	if e.cache == nil {
		e.cache = make(map[string]*vm.Program)
	}
	e.cache[expression] = prg
	return prg, nil
}

func (e *exprEngine) Eval(_ context.Context, expression string, data any) (any, error) {
	prg, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}
	out, err := vm.Run(prg, map[string]any{"data": data})
	if err != nil {
		return nil, fmt.Errorf("expr evaluation failed: %w", err)
	}
	return normalize(out)
}
