// Package model holds the chain data types shared by the resolver,
// request builder, executor and presentation packages.
package model

import (
	"maps"
	"strings"

	"github.com/google/uuid"
)

// Supported HTTP methods for a step.
const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// Endpoint describes one callable API from the catalog.
type Endpoint struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Method string `json:"method"`
}

// FieldMapping wires a field of an earlier step's response into this step's request.
type FieldMapping struct {
	SourceStep  int    `json:"sourceStep"`
	SourceField string `json:"sourceField"`
	TargetField string `json:"targetField"`
}

// Step is one HTTP call in a chain.
// Response is only meaningful when HasResponse is true; it may legitimately hold a JSON null.
type Step struct {
	ID              string         `json:"id"`
	Endpoint        Endpoint       `json:"endpoint"`
	FieldMappings   []FieldMapping `json:"fieldMappings"`
	Transformation  string         `json:"transformation"`
	TransformEngine string         `json:"engine,omitempty"`
	RequestBody     map[string]any `json:"requestBody,omitempty"`
	Response        any            `json:"response,omitempty"`
	HasResponse     bool           `json:"hasResponse"`
}

// Chain is the ordered list of steps. Index order is execution order.
type Chain []Step

// NewStep creates a step for the given endpoint with a fresh identity.
// POST steps start with an empty body template, GET steps with none.
func NewStep(endpoint Endpoint) Step {
	endpoint.Method = strings.ToUpper(endpoint.Method)
	step := Step{
		ID:            uuid.NewString(),
		Endpoint:      endpoint,
		FieldMappings: []FieldMapping{},
	}
	if endpoint.Method == MethodPost {
		step.RequestBody = map[string]any{}
	}
	return step
}

// IsPost reports whether the step sends a JSON body.
func (s Step) IsPost() bool {
	return s.Endpoint.Method == MethodPost
}

// Clone copies the step so that edits to the copy's mappings or body template
// do not leak into the original. Response values are shared; they are never mutated in place.
func (s Step) Clone() Step {
	out := s
	if s.FieldMappings != nil {
		out.FieldMappings = append(make([]FieldMapping, 0, len(s.FieldMappings)), s.FieldMappings...)
	}
	if s.RequestBody != nil {
		out.RequestBody = maps.Clone(s.RequestBody)
	}
	return out
}

// Clone copies every step of the chain.
func (c Chain) Clone() Chain {
	if c == nil {
		return nil
	}
	out := make(Chain, len(c))
	for i, step := range c {
		out[i] = step.Clone()
	}
	return out
}

// IndexOf returns the index of the step with the given id, or -1.
func (c Chain) IndexOf(id string) int {
	for i, step := range c {
		if step.ID == id {
			return i
		}
	}
	return -1
}
