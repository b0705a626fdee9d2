// Package server exposes the chain builder over HTTP: browse the catalog,
// edit steps and their field wiring, execute the chain and view the result.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"api-chain/internal/catalog"
	"api-chain/internal/chain"
	"api-chain/internal/logging"
	"api-chain/internal/model"
	"api-chain/internal/render"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Server holds the handlers for one builder session.
type Server struct {
	session *chain.Session
	catalog *catalog.Catalog
}

// New creates a Server editing session with endpoints from cat.
func New(session *chain.Session, cat *catalog.Catalog) *Server {
	return &Server{session: session, catalog: cat}
}

// ChainState is the body of GET /api/chain and POST /api/chain/execute.
type ChainState struct {
	Steps   model.Chain `json:"steps"`
	Running bool        `json:"running"`
	Error   string      `json:"error,omitempty"`
}

type addStepRequest struct {
	Endpoint string `json:"endpoint"`
}

// setFieldRequest selects a source option ("j.field") and names the target field.
type setFieldRequest struct {
	Option      string `json:"option"`
	TargetField string `json:"targetField"`
}

// Router returns the API routes under /api.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/catalog", s.GetCatalog).Methods("GET")
	api.HandleFunc("/chain", s.GetChain).Methods("GET")
	api.HandleFunc("/chain/steps", s.AddStep).Methods("POST")
	api.HandleFunc("/chain/steps/{id}", s.UpdateStep).Methods("PATCH")
	api.HandleFunc("/chain/steps/{id}", s.RemoveStep).Methods("DELETE")
	api.HandleFunc("/chain/steps/{id}/fields", s.AddField).Methods("POST")
	api.HandleFunc("/chain/steps/{id}/fields/options", s.GetFieldOptions).Methods("GET")
	api.HandleFunc("/chain/steps/{id}/fields/{index:[0-9]+}", s.SetField).Methods("PUT")
	api.HandleFunc("/chain/steps/{id}/fields/{index:[0-9]+}", s.RemoveField).Methods("DELETE")
	api.HandleFunc("/chain/execute", s.Execute).Methods("POST")
	api.HandleFunc("/chain/render", s.Render).Methods("GET")
	return router
}

// Handler wraps Router for serving: panics in a handler become a 500, and
// clients that can only POST may tunnel PUT, PATCH and DELETE through the
// X-HTTP-Method-Override header.
func (s *Server) Handler() http.Handler {
	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))
	return recovery(handlers.HTTPMethodOverrideHandler(s.Router()))
}

// recoveryLogger routes recovered panics to the application log.
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	logging.Logf(logging.Error, "Recovered from panic: %s", fmt.Sprint(v...))
}

// ListenAndServe serves the API on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Logf(logging.Info, "Chain builder API listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Logf(logging.Info, "Shutting down chain builder API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// GetCatalog lists the endpoints steps can be created from.
func (s *Server) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Entries())
}

// GetChain returns the committed chain and the outcome of the last run.
func (s *Server) GetChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

// AddStep appends a step for a catalog endpoint chosen by name.
func (s *Server) AddStep(w http.ResponseWriter, r *http.Request) {
	var req addStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	endpoint, ok := s.catalog.Lookup(req.Endpoint)
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown endpoint '%s'", req.Endpoint), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, s.session.AddStep(endpoint))
}

// UpdateStep edits a step's mappings, transformation, engine or body template.
func (s *Server) UpdateStep(w http.ResponseWriter, r *http.Request) {
	var update chain.StepUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	step, err := s.session.UpdateStep(mux.Vars(r)["id"], update)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

// RemoveStep deletes a step. Other steps' mappings are left as they are.
func (s *Server) RemoveStep(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RemoveStep(mux.Vars(r)["id"]); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddField appends an empty field mapping to a step.
func (s *Server) AddField(w http.ResponseWriter, r *http.Request) {
	step, err := s.session.AddFieldMapping(mux.Vars(r)["id"])
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, step)
}

// SetField points a field mapping at a source option and names its target.
func (s *Server) SetField(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, _ := strconv.Atoi(vars["index"])

	var req setFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	sourceStep, sourceField, err := catalog.ParseFieldOption(req.Option)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	step, err := s.session.SetFieldMapping(vars["id"], index, model.FieldMapping{
		SourceStep:  sourceStep,
		SourceField: sourceField,
		TargetField: req.TargetField,
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

// RemoveField deletes a step's field mapping by position.
func (s *Server) RemoveField(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, _ := strconv.Atoi(vars["index"])
	step, err := s.session.RemoveFieldMapping(vars["id"], index)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

// GetFieldOptions lists the source fields of the steps before the given one.
func (s *Server) GetFieldOptions(w http.ResponseWriter, r *http.Request) {
	steps := s.session.Steps()
	idx := steps.IndexOf(mux.Vars(r)["id"])
	if idx < 0 {
		http.Error(w, "Step not found", http.StatusNotFound)
		return
	}
	options := s.catalog.PossibleFields(steps, idx)
	if options == nil {
		options = []catalog.FieldOption{}
	}
	writeJSON(w, http.StatusOK, options)
}

// Execute runs the chain. The run is detached from the request so a client
// disconnect does not abort it; a failed run reports its error with status 502.
func (s *Server) Execute(w http.ResponseWriter, r *http.Request) {
	_, err := s.session.Execute(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, chain.ErrRunInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		writeJSON(w, http.StatusBadGateway, s.state())
	default:
		writeJSON(w, http.StatusOK, s.state())
	}
}

// Render returns the text view of the committed chain.
func (s *Server) Render(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := render.Chain(w, s.session.Steps()); err != nil {
		logging.Logf(logging.Error, "Failed to render chain: %v", err)
	}
}

func (s *Server) state() ChainState {
	return ChainState{
		Steps:   s.session.Steps(),
		Running: s.session.Running(),
		Error:   s.session.LastError(),
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chain.ErrStepNotFound), errors.Is(err, chain.ErrMappingNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, chain.ErrBodyNotAllowed):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logf(logging.Error, "Failed to encode response: %v", err)
	}
}
