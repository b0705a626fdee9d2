// Package jq runs jq programs in-process against decoded JSON values.
package jq

import (
	"context"
	"fmt"
	"sync"

	"api-chain/internal/logging"
	"api-chain/internal/util"

	"github.com/itchyny/gojq"
)

var (
	cacheMu sync.Mutex
	cache   = map[string]*gojq.Code{}
)

// Compile parses and compiles a jq filter, reusing earlier compilations of the same text.
func Compile(filter string) (*gojq.Code, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if code, ok := cache[filter]; ok {
		return code, nil
	}
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter '%s': %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter '%s': %w", filter, err)
	}
	cache[filter] = code
	return code, nil
}

// RunFilter applies filter to input and collects its outputs.
// No output yields nil, a single output is returned as is, and several
// outputs are returned as a []any in emission order.
func RunFilter(ctx context.Context, input any, filter string) (any, error) {
	code, err := Compile(filter)
	if err != nil {
		return nil, err
	}

	logging.Logf(logging.Debug, "Executing jq filter '%s'", filter)

	var results []any
	iter := code.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			if haltErr, halted := err.(*gojq.HaltError); halted && haltErr.Value() == nil {
				break
			}
			return nil, fmt.Errorf("jq filter execution failed (filter: '%s', input snippet: '%s'): %w", filter, util.JSONSnippet(input), err)
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}
