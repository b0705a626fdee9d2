package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// jsEngine evaluates JavaScript expressions with goja. Each expression is
// wrapped in a function taking data, so anything valid after "return" works,
// arrow functions and method chains included.
type jsEngine struct {
	timeout time.Duration

	mu       sync.Mutex
	programs map[string]*goja.Program
}

func (e *jsEngine) compile(expression string) (*goja.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.programs[expression]; ok {
		return prg, nil
	}
	src := "(function (data) {\nreturn (" + expression + "\n);\n})"
	prg, err := goja.Compile("transformation", src, false)
	if err != nil {
		return nil, err
	}
	if e.programs == nil {
		e.programs = make(map[string]*goja.Program)
	}
	e.programs[expression] = prg
	return prg, nil
}

func (e *jsEngine) Eval(ctx context.Context, expression string, data any) (any, error) {
	prg, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	vm := goja.New()
	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() {
			vm.Interrupt(fmt.Sprintf("execution exceeded %s", e.timeout))
		})
		defer timer.Stop()
	}
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	fnValue, err := vm.RunProgram(prg)
	if err != nil {
		return nil, jsFault(err)
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, errors.New("transformation did not compile to a function")
	}

	parse, stringify, err := jsonFuncs(vm)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode data: %w", err)
	}
	arg, err := parse(goja.Undefined(), vm.ToValue(string(encoded)))
	if err != nil {
		return nil, jsFault(err)
	}

	out, err := fn(goja.Undefined(), arg)
	if err != nil {
		return nil, jsFault(err)
	}

	text, err := stringify(goja.Undefined(), out)
	if err != nil {
		return nil, jsFault(err)
	}
	if goja.IsUndefined(text) {
		// undefined and functions have no JSON form.
		return nil, nil
	}
	var result any
	if err := json.Unmarshal([]byte(text.String()), &result); err != nil {
		return nil, fmt.Errorf("failed to decode transformation result: %w", err)
	}
	return result, nil
}

// jsonFuncs returns the runtime's JSON.parse and JSON.stringify.
func jsonFuncs(vm *goja.Runtime) (parse, stringify goja.Callable, err error) {
	jsonObj := vm.Get("JSON").ToObject(vm)
	parse, ok := goja.AssertFunction(jsonObj.Get("parse"))
	if !ok {
		return nil, nil, errors.New("JSON.parse is not available")
	}
	stringify, ok = goja.AssertFunction(jsonObj.Get("stringify"))
	if !ok {
		return nil, nil, errors.New("JSON.stringify is not available")
	}
	return parse, stringify, nil
}

// jsFault turns an error raised while running script code into the message
// shown to the user. Thrown values report their message property.
func jsFault(err error) error {
	var exception *goja.Exception
	if errors.As(err, &exception) {
		msg := "undefined"
		if obj, ok := exception.Value().(*goja.Object); ok {
			if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
				msg = m.String()
			}
		}
		return fmt.Errorf("Transformation runtime error: %s", msg)
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("transformation interrupted: %v", interrupted.Value())
	}
	return err
}
