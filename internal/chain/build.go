package chain

import (
	"encoding/json"
	"fmt"
	"strings"

	"api-chain/internal/config"
	"api-chain/internal/model"
)

// EndpointLookup resolves catalog endpoints by name.
type EndpointLookup interface {
	Lookup(name string) (model.Endpoint, bool)
}

// FromConfig builds a chain from its YAML definition. A nil cc yields an empty chain.
func FromConfig(cc *config.ChainConfig, lookup EndpointLookup) (model.Chain, error) {
	c := model.Chain{}
	if cc == nil {
		return c, nil
	}
	for i, sc := range cc.Steps {
		endpoint, ok := lookup.Lookup(sc.Endpoint)
		if !ok {
			return nil, fmt.Errorf("step %d: unknown endpoint '%s'", i+1, sc.Endpoint)
		}
		step := model.NewStep(endpoint)
		step.Transformation = sc.Transformation
		step.TransformEngine = strings.ToLower(sc.Engine)
		for _, f := range sc.Fields {
			step.FieldMappings = append(step.FieldMappings, model.FieldMapping{
				SourceStep:  f.SourceStep,
				SourceField: f.SourceField,
				TargetField: f.TargetField,
			})
		}
		if sc.Body != nil {
			if !step.IsPost() {
				return nil, fmt.Errorf("step %d: %w ('%s' is %s)", i+1, ErrBodyNotAllowed, sc.Endpoint, endpoint.Method)
			}
			body, err := jsonBody(sc.Body)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			step.RequestBody = body
		}
		c = append(c, step)
	}
	return c, nil
}

// jsonBody re-decodes a YAML body template so it holds the same value types
// a JSON request body would (float64 numbers, map[string]any objects).
func jsonBody(body map[string]any) (map[string]any, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("request body is not representable as JSON: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("request body is not representable as JSON: %w", err)
	}
	return out, nil
}
