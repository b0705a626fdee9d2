// Package resolve computes the values a step's field mappings inject,
// reading them from the responses already stored in the working chain.
package resolve

import (
	"errors"
	"fmt"
	"strconv"

	"api-chain/internal/logging"
	"api-chain/internal/model"
	"api-chain/internal/util"
)

// ErrInvalidReference is returned when a mapping points outside the chain,
// typically because the referenced step was removed.
var ErrInvalidReference = errors.New("field mapping references a step that does not exist")

// Undefined marks a property the source response does not have.
// It is still injected: as the text "undefined" in a query, or as a removed key in a body.
type Undefined struct{}

// Field is one resolved mapping, ready for the request builder.
type Field struct {
	Target string
	Value  any
}

// Resolve reads the value for a single mapping from the working chain.
// ok is false when the mapping is skipped because the source step has no
// composite response yet; that is not an error.
func Resolve(mapping model.FieldMapping, working model.Chain) (value any, ok bool, err error) {
	if mapping.SourceStep < 0 || mapping.SourceStep >= len(working) {
		return nil, false, fmt.Errorf("%w: step %d (chain has %d steps)", ErrInvalidReference, mapping.SourceStep+1, len(working))
	}
	source := working[mapping.SourceStep]
	if !source.HasResponse {
		return nil, false, nil
	}
	return property(source.Response, mapping.SourceField)
}

// All resolves the mappings of step in declaration order, dropping skipped ones.
func All(step model.Step, working model.Chain) ([]Field, error) {
	fields := make([]Field, 0, len(step.FieldMappings))
	for _, mapping := range step.FieldMappings {
		logging.Logf(logging.Debug, "Applying field: %s from Step %d", mapping.TargetField, mapping.SourceStep+1)
		value, ok, err := Resolve(mapping, working)
		if err != nil {
			return nil, err
		}
		if !ok {
			logging.Logf(logging.Debug, "Source step %d response is not an object, skipping '%s'", mapping.SourceStep+1, mapping.TargetField)
			continue
		}
		if _, undefined := value.(Undefined); undefined {
			logging.Logf(logging.Debug, "Source value: undefined")
		} else {
			logging.Logf(logging.Debug, "Source value: %s", util.JSONSnippet(value))
		}
		fields = append(fields, Field{Target: mapping.TargetField, Value: value})
	}
	return fields, nil
}

// property performs a property read on a decoded JSON value.
// Objects are read by key, arrays by canonical index or "length".
func property(v any, name string) (any, bool, error) {
	switch t := v.(type) {
	case map[string]any:
		if val, found := t[name]; found {
			return val, true, nil
		}
		return Undefined{}, true, nil
	case []any:
		if name == "length" {
			return float64(len(t)), true, nil
		}
		idx, err := strconv.Atoi(name)
		if err != nil || idx < 0 || idx >= len(t) || strconv.Itoa(idx) != name {
			return Undefined{}, true, nil
		}
		return t[idx], true, nil
	default:
		// Scalars and null are not composite.
		return nil, false, nil
	}
}
