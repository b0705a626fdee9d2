// Package request turns a step and its resolved fields into the concrete
// HTTP request the executor sends.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/url"

	"api-chain/internal/logging"
	"api-chain/internal/model"
	"api-chain/internal/resolve"
	"api-chain/internal/util"
)

// ErrMalformedURL is returned when the endpoint URL cannot be parsed as an absolute URL.
var ErrMalformedURL = errors.New("malformed endpoint URL")

// Request is the finished request for one step.
// Body is nil for GET; Payload keeps the decoded body for logging and display.
type Request struct {
	URL     string
	Method  string
	Body    []byte
	Payload map[string]any
}

// Build applies resolved fields to the step's endpoint URL or body template.
// GET fields are appended as query parameters (repeats kept, the whole query
// re-serialized as form-urlencoded text), POST fields are
// set on a shallow copy of the body template (later fields overwrite earlier ones).
func Build(step model.Step, fields []resolve.Field) (*Request, error) {
	u, err := url.Parse(step.Endpoint.URL)
	if err != nil {
		return nil, fmt.Errorf("%w '%s': %v", ErrMalformedURL, step.Endpoint.URL, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("%w '%s': URL must be absolute", ErrMalformedURL, step.Endpoint.URL)
	}

	body := maps.Clone(step.RequestBody)
	if body == nil {
		body = map[string]any{}
	}
	logging.Logf(logging.Debug, "Initial URL: %s", u.String())
	logging.Logf(logging.Debug, "Initial Body: %s", util.JSONSnippet(body))

	var query []queryPair
	for _, field := range fields {
		switch step.Endpoint.Method {
		case model.MethodGet:
			query = append(query, queryPair{name: field.Target, value: JSString(field.Value)})
		case model.MethodPost:
			if _, undefined := field.Value.(resolve.Undefined); undefined {
				// JSON encoding drops undefined members, so the key disappears.
				delete(body, field.Target)
				continue
			}
			body[field.Target] = field.Value
		}
	}

	if len(query) > 0 {
		// Appending re-serializes the whole query, existing pairs included.
		u.RawQuery = encodeQuery(append(parseQuery(u.RawQuery), query...))
		u.ForceQuery = false
	}

	built := &Request{
		URL:    u.String(),
		Method: step.Endpoint.Method,
	}
	if step.Endpoint.Method == model.MethodPost {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		built.Body = encoded
		built.Payload = body
	}
	logging.Logf(logging.Debug, "Final URL: %s", built.URL)
	logging.Logf(logging.Debug, "Final Body: %s", util.JSONSnippet(body))
	return built, nil
}
