package chain

import (
	"context"
	"fmt"
	"net/http"

	"api-chain/internal/config"
	"api-chain/internal/executor"
	"api-chain/internal/httpclient"
	"api-chain/internal/logging"
	"api-chain/internal/model"
	"api-chain/internal/request"
	"api-chain/internal/resolve"
	"api-chain/internal/transform"
)

// --- Interfaces for Dependencies ---

// httpClientProvider defines the interface for creating HTTP clients.
type httpClientProvider interface {
	NewClient(cfg *config.HTTPConfig) *http.Client
}

// requestExecutor performs one step's HTTP call and decodes the JSON response.
type requestExecutor interface {
	ExecuteRequest(ctx context.Context, client *http.Client, req *request.Request) (*executor.Response, error)
}

// transformer applies a step's transformation expression to its response.
type transformer interface {
	Transform(ctx context.Context, engine, expression string, data any) (any, error)
}

// --- Default Implementations ---

type defaultHttpClientProvider struct{}

func (p *defaultHttpClientProvider) NewClient(cfg *config.HTTPConfig) *http.Client {
	return httpclient.NewClient(cfg)
}

type defaultRequestExecutor struct{}

func (e *defaultRequestExecutor) ExecuteRequest(ctx context.Context, client *http.Client, req *request.Request) (*executor.Response, error) {
	return executor.ExecuteRequest(ctx, client, req)
}

// --- Runner Struct ---

// Runner executes chains. It holds no chain state of its own; each Run works
// on a private copy of the chain it is given.
type Runner struct {
	cfg             *config.Config
	client          *http.Client
	requestExecutor requestExecutor
	transformer     transformer
}

// RunnerOpts allows configuring the Runner's dependencies for testing or custom behavior.
type RunnerOpts struct {
	HttpClientProvider httpClientProvider
	RequestExecutor    requestExecutor
	Transformer        transformer
}

// NewRunner creates a new chain runner instance with default dependencies.
func NewRunner(cfg *config.Config) *Runner {
	return NewRunnerWithOpts(cfg, RunnerOpts{})
}

// NewRunnerWithOpts creates a new chain runner instance with injected dependencies.
func NewRunnerWithOpts(cfg *config.Config, opts RunnerOpts) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	provider := opts.HttpClientProvider
	if provider == nil {
		provider = &defaultHttpClientProvider{}
	}
	exec := opts.RequestExecutor
	if exec == nil {
		exec = &defaultRequestExecutor{}
	}
	tr := opts.Transformer
	if tr == nil {
		tr = transform.New(&cfg.Transform)
	}
	return &Runner{
		cfg:             cfg,
		client:          provider.NewClient(&cfg.HTTP),
		requestExecutor: exec,
		transformer:     tr,
	}
}

// Run executes every step of c in order and returns the updated copy, each
// step carrying its new response. The first failing step aborts the run with a
// *StepError; c itself is never modified, so a failed run commits nothing.
func (r *Runner) Run(ctx context.Context, c model.Chain) (model.Chain, error) {
	working := c.Clone()
	if len(working) == 0 {
		logging.Logf(logging.Info, "Chain is empty, nothing to execute.")
		return working, nil
	}

	for i := range working {
		step := working[i]
		logging.Logf(logging.Info, "Executing step %d: %s", i+1, step.Endpoint.Name)

		if ctx.Err() != nil {
			return nil, &StepError{Index: i, Name: step.Endpoint.Name, Err: fmt.Errorf("chain cancelled: %w", ctx.Err())}
		}

		response, err := r.executeStep(ctx, step, working)
		if err != nil {
			logging.Logf(logging.Error, "Step %d (%s) failed: %v", i+1, step.Endpoint.Name, err)
			return nil, &StepError{Index: i, Name: step.Endpoint.Name, Err: err}
		}
		working[i].Response = response
		working[i].HasResponse = true
	}

	logging.Logf(logging.Info, "Chain execution completed.")
	return working, nil
}

// executeStep resolves, builds, calls and transforms a single step.
// Resolution reads working, so earlier steps are seen with this run's responses.
func (r *Runner) executeStep(ctx context.Context, step model.Step, working model.Chain) (any, error) {
	fields, err := resolve.All(step, working)
	if err != nil {
		return nil, err
	}
	built, err := request.Build(step, fields)
	if err != nil {
		return nil, err
	}
	resp, err := r.requestExecutor.ExecuteRequest(ctx, r.client, built)
	if err != nil {
		return nil, err
	}
	return r.transformer.Transform(ctx, step.TransformEngine, step.Transformation, resp.Data)
}
