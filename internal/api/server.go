// Package api exposes loreguard's HTTP boundary: content evaluation,
// redaction, and health. The content-evaluation endpoint carries an
// explicit fail-open contract for its callers — see Client.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/loreguard-ai/loreguard/internal/events"
	"github.com/loreguard-ai/loreguard/internal/guardrail"
	"github.com/loreguard-ai/loreguard/internal/redact"
	"github.com/loreguard-ai/loreguard/internal/scanner"
)

// EventSink persists ingested events. The canonical implementation is
// database.EventDAO.
type EventSink interface {
	InsertEvent(ctx context.Context, evt *events.Event) error
}

// EvaluateRequest is the body of POST /v1/content/evaluate.
type EvaluateRequest struct {
	Content   string         `json:"content"`
	Context   RequestContext `json:"context"`
	TimeoutMs int            `json:"timeout_ms,omitempty"`
}

// RequestContext identifies the caller for scanning and rate limiting.
type RequestContext struct {
	TenantID  string `json:"tenant_id"`
	AgentID   string `json:"agent_id,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// EvaluateResponse is the body of a content evaluation result.
type EvaluateResponse struct {
	Decision        guardrail.Decision `json:"decision"`
	Matches         []scanner.Match    `json:"matches"`
	BlockingRuleID  string             `json:"blocking_rule_id,omitempty"`
	RedactedContent string             `json:"redacted_content,omitempty"`
	EvaluationMs    int64              `json:"evaluation_ms"`
	RulesEvaluated  int                `json:"rules_evaluated"`
}

// RedactRequest is the body of POST /v1/redact.
type RedactRequest struct {
	Text             string   `json:"text"`
	TenantID         string   `json:"tenant_id"`
	AgentID          string   `json:"agent_id,omitempty"`
	Category         string   `json:"category,omitempty"`
	DenyListPatterns []string `json:"deny_list_patterns,omitempty"`
	KnownTenantTerms []string `json:"known_tenant_terms,omitempty"`
}

// BatchRedactRequest is the body of POST /v1/redact/batch. Items are
// independent; results are positionally aligned.
type BatchRedactRequest struct {
	Items []RedactRequest `json:"items"`
}

// BatchRedactResponse carries one result per input item.
type BatchRedactResponse struct {
	Results []redact.Result `json:"results"`
}

// Server serves the HTTP API.
type Server struct {
	engine           *guardrail.Engine
	pipeline         *redact.Pipeline
	limiter          *tenantLimiter
	sink             EventSink
	bus              events.Bus
	batchConcurrency int
	logger           *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRateLimit enables per-tenant rate limiting on the evaluate route.
func WithRateLimit(requestsPerSecond float64, burst int) ServerOption {
	return func(s *Server) {
		s.limiter = newTenantLimiter(requestsPerSecond, burst)
	}
}

// WithEventIngestion enables POST /v1/events: ingested events are persisted
// to the sink and published to the bus for the guardrail engine.
func WithEventIngestion(sink EventSink, bus events.Bus) ServerOption {
	return func(s *Server) {
		s.sink = sink
		s.bus = bus
	}
}

// WithBatchConcurrency bounds parallel pipeline runs on the batch redact
// route. Zero keeps the pipeline default.
func WithBatchConcurrency(n int) ServerOption {
	return func(s *Server) {
		s.batchConcurrency = n
	}
}

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the HTTP server over the engine and pipeline.
func NewServer(engine *guardrail.Engine, pipeline *redact.Pipeline, opts ...ServerOption) *Server {
	s := &Server{
		engine:   engine,
		pipeline: pipeline,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes assembles the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}
		r.Post("/content/evaluate", s.handleEvaluate)
		r.Post("/redact", s.handleRedact)
		r.Post("/redact/batch", s.handleRedactBatch)
		if s.sink != nil {
			r.Post("/events", s.handleIngestEvent)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvaluate runs the tenant's content rules against the supplied
// content. The per-request timeout bounds evaluation; the client treats
// any failure as allow.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Context.TenantID == "" {
		writeError(w, http.StatusBadRequest, "context.tenant_id is required")
		return
	}

	ctx := r.Context()
	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	decision, err := s.engine.EvaluateContent(ctx, req.Context.TenantID, req.Content, scanner.Context{
		TenantID:  req.Context.TenantID,
		AgentID:   req.Context.AgentID,
		ToolName:  req.Context.ToolName,
		Direction: req.Context.Direction,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "content evaluation failed",
			"tenant_id", req.Context.TenantID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}

	resp := EvaluateResponse{
		Decision:        decision.Decision,
		Matches:         decision.Matches,
		RedactedContent: decision.RedactedContent,
		EvaluationMs:    time.Since(start).Milliseconds(),
		RulesEvaluated:  decision.RulesEvaluated,
	}
	if !decision.BlockingRuleID.IsZero() {
		resp.BlockingRuleID = decision.BlockingRuleID.String()
	}
	if resp.Matches == nil {
		resp.Matches = []scanner.Match{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRedact runs the full redaction pipeline over one piece of text.
func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	var req RedactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	result := s.pipeline.Process(r.Context(), req.Text, redact.Context{
		TenantID:         req.TenantID,
		AgentID:          req.AgentID,
		Category:         req.Category,
		DenyListPatterns: req.DenyListPatterns,
		KnownTenantTerms: req.KnownTenantTerms,
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRedactBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRedactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	items := make([]redact.BatchItem, len(req.Items))
	for i, item := range req.Items {
		if item.TenantID == "" {
			writeError(w, http.StatusBadRequest, "tenant_id is required on every item")
			return
		}
		items[i] = redact.BatchItem{
			Text: item.Text,
			Context: redact.Context{
				TenantID:         item.TenantID,
				AgentID:          item.AgentID,
				Category:         item.Category,
				DenyListPatterns: item.DenyListPatterns,
				KnownTenantTerms: item.KnownTenantTerms,
			},
		}
	}

	results := s.pipeline.ProcessBatch(r.Context(), items, s.batchConcurrency)
	writeJSON(w, http.StatusOK, BatchRedactResponse{Results: results})
}

// handleIngestEvent persists an agent event and hands it to the engine via
// the bus. Persistence failures are the caller's problem; a full bus is not
// (publish is best-effort, windowed conditions read from the store).
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var evt events.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if evt.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	if evt.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	ctx := r.Context()
	if err := s.sink.InsertEvent(ctx, &evt); err != nil {
		s.logger.ErrorContext(ctx, "event persist failed",
			"tenant_id", evt.TenantID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "event persist failed")
		return
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, evt); err != nil {
			s.logger.WarnContext(ctx, "event publish failed", "event_id", evt.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": evt.ID.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
