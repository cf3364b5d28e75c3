/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package httpapi exposes the operator-facing REST surface for AIRRA:
// incident inspection, approval/rejection of proposed actions, manual
// escalation and post-hoc feedback (control plane spec §7). It runs on its
// own listener from pkg/metrics.Server, so scrape traffic never competes
// with operator traffic for a goroutine pool.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/go-logr/logr"

	sharederrors "github.com/kkrriders/airra/pkg/shared/errors"
	memorystore "github.com/kkrriders/airra/pkg/store/memory"
	"github.com/kkrriders/airra/pkg/types"
)

// Orchestrator is the subset of pkg/orchestrator.Orchestrator the API
// drives. Kept as an interface so handlers can be tested against a fake
// without pulling in the whole pipeline.
type Orchestrator interface {
	GetIncident(id string) (*types.Incident, error)
	ApproveAction(ctx context.Context, incidentID, actionID, approvedBy string, mode types.ExecutionMode) error
	RejectAction(incidentID, actionID, reason, rejectedBy string) error
	Escalate(incidentID, reason string) error
	Feedback(fb types.OperatorFeedback) error
}

var validate = validator.New()

// Server is the operator API's HTTP server.
type Server struct {
	server *http.Server
	log    logr.Logger
}

// NewServer builds a chi router wired to orch, bound to addr but not yet
// listening. CORS policy follows the CORS_ALLOWED_ORIGINS / CORS_ALLOWED_METHODS
// / CORS_ALLOWED_HEADERS / CORS_ALLOW_CREDENTIALS / CORS_MAX_AGE environment
// variables, matching the convention the rest of the pipeline uses for
// environment-driven overlay configuration.
func NewServer(addr string, orch Orchestrator, log logr.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(corsFromEnvironment())

	h := &handlers{orch: orch, log: log}

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)

	r.Route("/incidents/{incidentID}", func(r chi.Router) {
		r.Get("/", h.getIncident)
		r.Post("/escalate", h.escalateIncident)
		r.Post("/feedback", h.submitFeedback)
		r.Post("/actions/{actionID}/approve", h.approveAction)
		r.Post("/actions/{actionID}/reject", h.rejectAction)
	})

	return &Server{
		server: &http.Server{Addr: addr, Handler: r},
		log:    log,
	}
}

// ListenAndServe blocks serving the operator API until the listener fails
// or is shut down.
func (s *Server) ListenAndServe() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests, honoring ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func requestLogger(log logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.V(1).Info("http request",
				"method", r.Method, "path", r.URL.Path,
				"status", ww.Status(), "duration", time.Since(start),
				"request_id", chimiddleware.GetReqID(r.Context()))
		})
	}
}

// corsFromEnvironment builds a go-chi/cors middleware from environment
// variables, rather than hardcoding an allow-list, so the operator UI's
// origin can be configured per deployment without a rebuild.
func corsFromEnvironment() func(http.Handler) http.Handler {
	origins := splitOrDefault(os.Getenv("CORS_ALLOWED_ORIGINS"), []string{"*"})
	methods := splitOrDefault(os.Getenv("CORS_ALLOWED_METHODS"), []string{"GET", "POST", "OPTIONS"})
	headers := splitOrDefault(os.Getenv("CORS_ALLOWED_HEADERS"), []string{"Content-Type", "Authorization"})
	allowCredentials := os.Getenv("CORS_ALLOW_CREDENTIALS") == "true"
	maxAge := 300
	if v, err := strconv.Atoi(os.Getenv("CORS_MAX_AGE")); err == nil {
		maxAge = v
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   methods,
		AllowedHeaders:   headers,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})
}

func splitOrDefault(raw string, def []string) []string {
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

type handlers struct {
	orch Orchestrator
	log  logr.Logger
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

func (h *handlers) getIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "incidentID")
	incident, err := h.orch.GetIncident(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, incident)
}

// approveActionRequest is the body of POST /incidents/{id}/actions/{id}/approve.
type approveActionRequest struct {
	ApprovedBy string `json:"approved_by" validate:"required"`
	DryRun     bool   `json:"dry_run"`
}

func (h *handlers) approveAction(w http.ResponseWriter, r *http.Request) {
	incidentID := chi.URLParam(r, "incidentID")
	actionID := chi.URLParam(r, "actionID")

	var req approveActionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	mode := types.ExecutionLive
	if req.DryRun {
		mode = types.ExecutionDryRun
	}
	if err := h.orch.ApproveAction(r.Context(), incidentID, actionID, req.ApprovedBy, mode); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// rejectActionRequest is the body of POST /incidents/{id}/actions/{id}/reject.
type rejectActionRequest struct {
	Reason     string `json:"reason" validate:"required"`
	RejectedBy string `json:"rejected_by" validate:"required"`
}

func (h *handlers) rejectAction(w http.ResponseWriter, r *http.Request) {
	incidentID := chi.URLParam(r, "incidentID")
	actionID := chi.URLParam(r, "actionID")

	var req rejectActionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.orch.RejectAction(incidentID, actionID, req.Reason, req.RejectedBy); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// escalateRequest is the body of POST /incidents/{id}/escalate.
type escalateRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *handlers) escalateIncident(w http.ResponseWriter, r *http.Request) {
	incidentID := chi.URLParam(r, "incidentID")

	var req escalateRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.orch.Escalate(incidentID, req.Reason); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// feedbackRequest is the body of POST /incidents/{id}/feedback.
type feedbackRequest struct {
	HypothesisRank    *int              `json:"hypothesis_rank,omitempty"`
	ActionID          string            `json:"action_id,omitempty"`
	FeedbackType      types.FeedbackType `json:"feedback_type" validate:"required"`
	CorrectCategory   *types.Category   `json:"correct_category,omitempty"`
	CorrectActionType *types.ActionType `json:"correct_action_type,omitempty"`
	Text              string            `json:"text,omitempty"`
}

func (h *handlers) submitFeedback(w http.ResponseWriter, r *http.Request) {
	incidentID := chi.URLParam(r, "incidentID")

	var req feedbackRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	fb := types.OperatorFeedback{
		IncidentID:        incidentID,
		HypothesisRank:    req.HypothesisRank,
		ActionID:          req.ActionID,
		FeedbackType:      req.FeedbackType,
		CorrectCategory:   req.CorrectCategory,
		CorrectActionType: req.CorrectActionType,
		Text:              req.Text,
		Timestamp:         time.Now(),
	}
	if err := h.orch.Feedback(fb); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, sharederrors.NewPipelineError(sharederrors.KindDataIntegrity, "malformed request body", err))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		h.writeError(w, sharederrors.NewPipelineError(sharederrors.KindDataIntegrity, err.Error(), err))
		return false
	}
	return true
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error(err, "failed to encode response body")
	}
}

// writeError renders err as the {error_kind, message, incident_id?,
// action_id?} shape required by spec §7, choosing an HTTP status from the
// error's Kind.
func (h *handlers) writeError(w http.ResponseWriter, err error) {
	var notFound *memorystore.ErrNotFound
	if errors.As(err, &notFound) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(sharederrors.APIBody{
			ErrorKind:  sharederrors.KindDataIntegrity,
			Message:    err.Error(),
			IncidentID: notFound.IncidentID,
		})
		return
	}

	pe, ok := sharederrors.AsPipelineError(err)
	if !ok {
		pe = sharederrors.NewPipelineError(sharederrors.KindExternalUnavailable, err.Error(), err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(pe.Kind))
	_ = json.NewEncoder(w).Encode(pe.ToAPIBody())
}

func statusForKind(kind sharederrors.Kind) int {
	switch kind {
	case sharederrors.KindDataIntegrity:
		return http.StatusBadRequest
	case sharederrors.KindRateLimited:
		return http.StatusTooManyRequests
	case sharederrors.KindApprovalTimeout, sharederrors.KindStageTimeout:
		return http.StatusGatewayTimeout
	case sharederrors.KindStaleState, sharederrors.KindDuplicate:
		return http.StatusConflict
	case sharederrors.KindConfiguration:
		return http.StatusInternalServerError
	case sharederrors.KindExternalUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
