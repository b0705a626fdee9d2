package chain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"api-chain/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner stamps a response onto every step, or fails, optionally blocking until released.
type stubRunner struct {
	err     error
	release chan struct{}
	started chan struct{}
	calls   int
	mu      sync.Mutex
}

func (r *stubRunner) Run(ctx context.Context, c model.Chain) (model.Chain, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.started != nil {
		close(r.started)
	}
	if r.release != nil {
		<-r.release
	}
	if r.err != nil {
		return nil, &StepError{Index: 0, Err: r.err}
	}
	out := c.Clone()
	for i := range out {
		out[i].Response = map[string]any{"step": float64(i)}
		out[i].HasResponse = true
	}
	return out, nil
}

func TestSession_Editing(t *testing.T) {
	s := NewSession(&stubRunner{}, nil)
	assert.Equal(t, model.Chain{}, s.Steps())

	users := s.AddStep(model.Endpoint{Name: "Get Users List", URL: "https://api.test/users", Method: "get"})
	post := s.AddStep(postsEndpoint)
	assert.NotEqual(t, users.ID, post.ID)
	assert.Equal(t, model.MethodGet, users.Endpoint.Method)
	assert.Nil(t, users.RequestBody, "GET steps have no body template")
	assert.Equal(t, map[string]any{}, post.RequestBody, "POST steps start with an empty body template")
	assert.Empty(t, post.FieldMappings)

	got, ok := s.Step(post.ID)
	require.True(t, ok)
	assert.Equal(t, post, got)
	_, ok = s.Step("nope")
	assert.False(t, ok)

	expr := "data.id"
	engine := "js"
	mappings := []model.FieldMapping{{SourceStep: 0, SourceField: "id", TargetField: "userId"}}
	updated, err := s.UpdateStep(post.ID, StepUpdate{
		Transformation:  &expr,
		TransformEngine: &engine,
		FieldMappings:   &mappings,
		RequestBody:     map[string]any{"title": "t"},
	})
	require.NoError(t, err)
	assert.Equal(t, "data.id", updated.Transformation)
	assert.Equal(t, "js", updated.TransformEngine)
	assert.Equal(t, mappings, updated.FieldMappings)
	assert.Equal(t, map[string]any{"title": "t"}, updated.RequestBody)

	mappings[0].TargetField = "changed"
	got, _ = s.Step(post.ID)
	assert.Equal(t, "userId", got.FieldMappings[0].TargetField, "The session keeps its own copy")

	_, err = s.UpdateStep(users.ID, StepUpdate{RequestBody: map[string]any{"a": 1.0}})
	assert.ErrorIs(t, err, ErrBodyNotAllowed)
	_, err = s.UpdateStep("nope", StepUpdate{})
	assert.ErrorIs(t, err, ErrStepNotFound)

	withNew, err := s.AddFieldMapping(post.ID)
	require.NoError(t, err)
	require.Len(t, withNew.FieldMappings, 2)
	assert.Equal(t, model.FieldMapping{SourceStep: 0, SourceField: "", TargetField: ""}, withNew.FieldMappings[1])

	afterRemove, err := s.RemoveFieldMapping(post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []model.FieldMapping{{}}, afterRemove.FieldMappings)
	_, err = s.RemoveFieldMapping(post.ID, 5)
	assert.ErrorIs(t, err, ErrMappingNotFound)
	_, err = s.AddFieldMapping("nope")
	assert.ErrorIs(t, err, ErrStepNotFound)

	steps := s.Steps()
	steps[0].Transformation = "mutated"
	got, _ = s.Step(users.ID)
	assert.Empty(t, got.Transformation, "Steps returns a copy")
}

func TestSession_RemoveStepKeepsMappings(t *testing.T) {
	s := NewSession(&stubRunner{}, nil)
	a := s.AddStep(usersEndpoint)
	b := s.AddStep(postsEndpoint)
	c := s.AddStep(commentsEndpoint)

	mappings := []model.FieldMapping{{SourceStep: 1, SourceField: "id", TargetField: "postId"}}
	_, err := s.UpdateStep(c.ID, StepUpdate{FieldMappings: &mappings})
	require.NoError(t, err)

	require.NoError(t, s.RemoveStep(b.ID))
	assert.ErrorIs(t, s.RemoveStep(b.ID), ErrStepNotFound)

	steps := s.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, a.ID, steps[0].ID)
	assert.Equal(t, c.ID, steps[1].ID)
	assert.Equal(t, mappings, steps[1].FieldMappings, "Mappings are not reindexed")
}

func TestSession_Execute(t *testing.T) {
	s := NewSession(&stubRunner{}, nil)
	s.AddStep(usersEndpoint)
	s.AddStep(commentsEndpoint)

	result, err := s.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, map[string]any{"step": 1.0}, result[1].Response)
	assert.Equal(t, result, s.Steps(), "Success commits the run's chain")
	assert.Empty(t, s.LastError())
	assert.False(t, s.Running())
}

func TestSession_ExecuteFailureCommitsNothing(t *testing.T) {
	runner := &stubRunner{}
	s := NewSession(runner, nil)
	s.AddStep(usersEndpoint)
	s.AddStep(commentsEndpoint)

	_, err := s.Execute(context.Background())
	require.NoError(t, err)
	before := s.Steps()

	runner.err = errors.New("API call failed: 500 Internal Server Error")
	_, err = s.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, "API call failed: 500 Internal Server Error", s.LastError())
	assert.Equal(t, before, s.Steps(), "Previously committed responses are kept")

	runner.err = nil
	_, err = s.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.LastError(), "A new run clears the previous error")
}

func TestSession_ExecuteInProgress(t *testing.T) {
	runner := &stubRunner{release: make(chan struct{}), started: make(chan struct{})}
	s := NewSession(runner, model.Chain{model.NewStep(usersEndpoint)})

	done := make(chan error, 1)
	go func() {
		_, err := s.Execute(context.Background())
		done <- err
	}()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}
	assert.True(t, s.Running())

	_, err := s.Execute(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(runner.release)
	require.NoError(t, <-done)
	assert.False(t, s.Running())
	assert.Equal(t, 1, runner.calls)
}

func TestNewSession_CopiesInitialChain(t *testing.T) {
	initial := model.Chain{model.NewStep(usersEndpoint)}
	s := NewSession(&stubRunner{}, initial)
	initial[0].Transformation = "changed"
	assert.Empty(t, s.Steps()[0].Transformation)
}

func TestSession_SetFieldMapping(t *testing.T) {
	s := NewSession(&stubRunner{}, nil)
	step := s.AddStep(commentsEndpoint)
	_, err := s.AddFieldMapping(step.ID)
	require.NoError(t, err)

	updated, err := s.SetFieldMapping(step.ID, 0, model.FieldMapping{SourceStep: 2, SourceField: "id", TargetField: "postId"})
	require.NoError(t, err)
	assert.Equal(t, []model.FieldMapping{{SourceStep: 2, SourceField: "id", TargetField: "postId"}}, updated.FieldMappings)

	_, err = s.SetFieldMapping(step.ID, 1, model.FieldMapping{})
	assert.ErrorIs(t, err, ErrMappingNotFound)
	_, err = s.SetFieldMapping("nope", 0, model.FieldMapping{})
	assert.ErrorIs(t, err, ErrStepNotFound)
}

func TestSession_UpdateStepNormalizesEngine(t *testing.T) {
	s := NewSession(&stubRunner{}, nil)
	step := s.AddStep(usersEndpoint)

	engine := "JS"
	updated, err := s.UpdateStep(step.ID, StepUpdate{TransformEngine: &engine})
	require.NoError(t, err)
	assert.Equal(t, "js", updated.TransformEngine)
}
