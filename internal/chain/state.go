package chain

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"api-chain/internal/logging"
	"api-chain/internal/model"
)

// chainRunner executes a chain and returns the updated copy.
type chainRunner interface {
	Run(ctx context.Context, c model.Chain) (model.Chain, error)
}

// StepUpdate carries the user-editable parts of a step. Nil fields are left unchanged.
// A step's response has no counterpart here: only execution sets it.
type StepUpdate struct {
	FieldMappings   *[]model.FieldMapping `json:"fieldMappings,omitempty"`
	Transformation  *string               `json:"transformation,omitempty"`
	TransformEngine *string               `json:"engine,omitempty"`
	RequestBody     map[string]any        `json:"requestBody,omitempty"`
}

// Session is the committed chain being built, plus the outcome of the last run.
// It is safe for concurrent use. Edits apply to the committed chain; Execute
// runs a snapshot and commits the result only when every step succeeds.
type Session struct {
	mu      sync.Mutex
	chain   model.Chain
	running bool
	lastErr error
	runner  chainRunner
}

// NewSession creates a session around initial, which may be nil.
func NewSession(runner chainRunner, initial model.Chain) *Session {
	return &Session{runner: runner, chain: initial.Clone()}
}

// Steps returns a copy of the committed chain.
func (s *Session) Steps() model.Chain {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.chain.Clone()
	if out == nil {
		out = model.Chain{}
	}
	return out
}

// Step returns a copy of the step with the given id.
func (s *Session) Step(id string) (model.Step, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.chain.IndexOf(id)
	if idx < 0 {
		return model.Step{}, false
	}
	return s.chain[idx].Clone(), true
}

// AddStep appends a new step for endpoint and returns it.
func (s *Session) AddStep(endpoint model.Endpoint) model.Step {
	step := model.NewStep(endpoint)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chain = append(s.chain, step)
	logging.Logf(logging.Debug, "Added step %d: %s (%s)", len(s.chain), endpoint.Name, step.ID)
	return step.Clone()
}

// UpdateStep applies update to the step with the given id.
func (s *Session) UpdateStep(id string, update StepUpdate) (model.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.chain.IndexOf(id)
	if idx < 0 {
		return model.Step{}, fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}
	step := &s.chain[idx]
	if update.RequestBody != nil && !step.IsPost() {
		return model.Step{}, fmt.Errorf("%w: step %s is %s", ErrBodyNotAllowed, id, step.Endpoint.Method)
	}

	if update.FieldMappings != nil {
		step.FieldMappings = append([]model.FieldMapping{}, (*update.FieldMappings)...)
	}
	if update.Transformation != nil {
		step.Transformation = *update.Transformation
	}
	if update.TransformEngine != nil {
		step.TransformEngine = strings.ToLower(*update.TransformEngine)
	}
	if update.RequestBody != nil {
		step.RequestBody = maps.Clone(update.RequestBody)
	}
	return step.Clone(), nil
}

// RemoveStep deletes the step with the given id. Mappings in other steps are
// not reindexed, so a mapping may afterwards point at a different step or past the end.
func (s *Session) RemoveStep(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.chain.IndexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}
	s.chain = append(s.chain[:idx:idx], s.chain[idx+1:]...)
	return nil
}

// AddFieldMapping appends an empty mapping (step 0, no fields) to the step.
func (s *Session) AddFieldMapping(id string) (model.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.chain.IndexOf(id)
	if idx < 0 {
		return model.Step{}, fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}
	s.chain[idx].FieldMappings = append(s.chain[idx].FieldMappings, model.FieldMapping{})
	return s.chain[idx].Clone(), nil
}

// SetFieldMapping replaces the mapping at index of the step.
func (s *Session) SetFieldMapping(id string, index int, mapping model.FieldMapping) (model.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.chain.IndexOf(id)
	if idx < 0 {
		return model.Step{}, fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}
	mappings := s.chain[idx].FieldMappings
	if index < 0 || index >= len(mappings) {
		return model.Step{}, fmt.Errorf("%w: %d (step has %d)", ErrMappingNotFound, index, len(mappings))
	}
	mappings[index] = mapping
	return s.chain[idx].Clone(), nil
}

// RemoveFieldMapping deletes the mapping at index from the step.
func (s *Session) RemoveFieldMapping(id string, index int) (model.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.chain.IndexOf(id)
	if idx < 0 {
		return model.Step{}, fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}
	mappings := s.chain[idx].FieldMappings
	if index < 0 || index >= len(mappings) {
		return model.Step{}, fmt.Errorf("%w: %d (step has %d)", ErrMappingNotFound, index, len(mappings))
	}
	s.chain[idx].FieldMappings = append(mappings[:index:index], mappings[index+1:]...)
	return s.chain[idx].Clone(), nil
}

// Execute runs the committed chain. On success the result becomes the
// committed chain and is returned; on failure the committed chain is left as
// it was and the error is remembered for LastError. Only one run may be in
// flight at a time.
func (s *Session) Execute(ctx context.Context) (model.Chain, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.running = true
	s.lastErr = nil
	snapshot := s.chain.Clone()
	s.mu.Unlock()

	result, err := s.runner.Run(ctx, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if err != nil {
		s.lastErr = err
		return nil, err
	}
	// Edits made while the run was in flight are replaced by the run's result.
	s.chain = result
	return result.Clone(), nil
}

// LastError returns the message of the last failed run, or "" if the last run succeeded.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return ""
	}
	return s.lastErr.Error()
}

// Running reports whether a run is in flight.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
