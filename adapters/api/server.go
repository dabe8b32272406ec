// Package api exposes the batch service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"

	"gocompare/adapters/memory"
	"gocompare/adapters/roles"
	"gocompare/adapters/sqlstore"
	"gocompare/app"
	"gocompare/domain/analysis"
	"gocompare/internal"
	"gocompare/internal/errors"
	"gocompare/ports"
)

const maxBodyBytes = 64 << 20

// Server routes HTTP requests to the batch service.
type Server struct {
	router  *chi.Mux
	service *app.BatchService
	db      *sqlx.DB
	logger  *internal.Logger
}

// NewServer creates the HTTP adapter. db may be nil, in which case table
// data sources are rejected.
func NewServer(service *app.BatchService, db *sqlx.DB, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		db:      db,
		logger:  logger.WithComponent("API"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures HTTP middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/batches", s.handleRunBatch)
		r.Post("/plans", s.handlePlan)
		r.Post("/contracts/merge", s.handleMergeContract)
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr until the server fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, batch, err := s.decode(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	report, err := s.service.Plan(r.Context(), batch)
	if err != nil {
		s.writeError(w, errors.Wrapf(err, "plan %s", req.Mode))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	req, batch, err := s.decode(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if wantsStream(r) {
		s.streamBatch(w, r, req, batch)
		return
	}
	result, err := s.service.Run(r.Context(), batch)
	if err != nil {
		s.writeError(w, errors.Wrapf(err, "batch %s", req.Mode))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// streamBatch runs the batch and reports progress as server-sent events.
// The final event carries the BatchResult or the batch error.
func (s *Server) streamBatch(w http.ResponseWriter, r *http.Request, req BatchRequest, batch app.BatchRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, errors.InternalError("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	send := func(e SSEEvent) {
		fmt.Fprint(w, e.ToSSEFormat())
		flusher.Flush()
	}
	send(SSEEvent{EventType: EventTypeBatchStarted, Data: BatchStartedEvent{Mode: req.Mode}})

	batch.Progress = func(completed, total int, target string) {
		send(SSEEvent{EventType: EventTypeBatchProgress, Data: BatchProgressEvent{
			Completed:       completed,
			Total:           total,
			CurrentTarget:   target,
			ProgressPercent: 100 * float64(completed) / float64(total),
		}})
	}
	result, err := s.service.Run(r.Context(), batch)
	if err != nil {
		err = errors.Wrapf(err, "batch %s", req.Mode)
		send(SSEEvent{EventType: EventTypeBatchFailed, Data: ErrorResponse{Code: errors.GetCode(err), Error: err.Error()}})
		return
	}
	send(SSEEvent{EventType: EventTypeBatchCompleted, Data: result})
}

func wantsStream(r *http.Request) bool {
	return r.URL.Query().Get("stream") == "true" || strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// decode reads the request body, resolves its data source and merges any
// role suggestions into the contract.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (BatchRequest, app.BatchRequest, error) {
	var req BatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return req, app.BatchRequest{}, errors.InvalidInput(fmt.Sprintf("invalid request body: %v", err))
	}
	mode, err := analysis.ParseMode(req.Mode)
	if err != nil {
		return req, app.BatchRequest{}, errors.Wrap(err, "invalid mode")
	}

	contract := req.Contract
	if len(req.Suggestions) > 0 {
		doc, err := roles.Parse(req.Suggestions, req.SuggestionPath)
		if err != nil {
			return req, app.BatchRequest{}, errors.InvalidInput(err.Error())
		}
		merged, report, err := roles.Merge(contract, doc, req.MinConfidence)
		if err != nil {
			return req, app.BatchRequest{}, errors.Wrap(err, "merge suggestions")
		}
		s.logger.Debug("suggestions: added %v, filled %v, skipped %v", report.Added, report.Filled, report.Skipped)
		contract = merged
	}

	source, err := s.source(r.Context(), req.Data)
	if err != nil {
		return req, app.BatchRequest{}, err
	}
	return req, app.BatchRequest{Contract: contract, Mode: mode, Source: source}, nil
}

func (s *Server) source(ctx context.Context, spec DataSpec) (ports.DataAccessor, error) {
	switch {
	case len(spec.Records) > 0:
		f, err := memory.FromRecords(spec.Records)
		if err != nil {
			return nil, errors.InvalidInput(err.Error())
		}
		return f, nil
	case len(spec.Rows) > 0:
		records, err := ParseRecords(spec.Rows, spec.Path)
		if err != nil {
			return nil, errors.InvalidInput(err.Error())
		}
		f, err := memory.FromRecords(records)
		if err != nil {
			return nil, errors.InvalidInput(err.Error())
		}
		return f, nil
	case spec.Table != "":
		if s.db == nil {
			return nil, errors.InvalidInput("no database configured for table sources")
		}
		acc, err := sqlstore.NewAccessor(ctx, s.db, spec.Table, spec.OrderBy)
		if err != nil {
			return nil, errors.DataSource("open table "+spec.Table, err)
		}
		return acc, nil
	}
	return nil, errors.InvalidInput("request has no data")
}

// handleMergeContract merges a suggestion document into a contract and
// returns the validated result without running anything.
func (s *Server) handleMergeContract(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, errors.InvalidInput(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	doc, err := roles.Parse(req.Suggestions, req.SuggestionPath)
	if err != nil {
		s.writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	merged, report, err := roles.Merge(req.Contract, doc, req.MinConfidence)
	if err != nil {
		s.writeError(w, errors.Wrap(err, "merge suggestions"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"contract": merged, "report": report})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%v", err)
	} else {
		s.logger.Warn("%v", err)
	}
	writeJSON(w, status, ErrorResponse{Code: code, Error: err.Error()})
}

func statusFor(code string) int {
	switch code {
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeResourceExhausted:
		return http.StatusRequestEntityTooLarge
	case errors.CodeDataSource:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
