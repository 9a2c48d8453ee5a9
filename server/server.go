// Package server exposes the mesh over HTTP: a message dispatch endpoint,
// conversation history reads and an operator health probe.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/intentmesh/intentmesh"
	"github.com/intentmesh/intentmesh/core"
	"github.com/intentmesh/intentmesh/dispatch"
	"github.com/intentmesh/intentmesh/logging"
)

// Handler wires HTTP routes to a mesh instance.
type Handler struct {
	mesh   *intentmesh.Mesh
	logger logging.Logger
}

// Options configure the HTTP handler.
type Options struct {
	Logger logging.Logger
}

// New creates the HTTP handler.
func New(mesh *intentmesh.Mesh, optFns ...func(o *Options)) *Handler {
	opts := Options{Logger: logging.NewDefaultSlogLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Handler{mesh: mesh, logger: opts.Logger}
}

// Router builds the chi router for the handler.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Route("/v1", func(api chi.Router) {
		api.Post("/messages", h.handleSendMessage)
		api.Get("/conversations/{conversationID}/messages", h.handleListMessages)
	})

	return r
}

type sendMessageRequest struct {
	UserID         string         `json:"user_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Text           string         `json:"text"`
	Context        map[string]any `json:"context,omitempty"`
	Token          string         `json:"token,omitempty"`
}

type sendMessageResponse struct {
	RequestID      string        `json:"request_id"`
	ConversationID string        `json:"conversation_id"`
	Envelope       core.Envelope `json:"envelope"`
	Intent         string        `json:"intent,omitempty"`
	Confidence     float64       `json:"confidence"`
	LowConfidence  bool          `json:"low_confidence"`
	AgentID        string        `json:"agent_id,omitempty"`
	Replayed       bool          `json:"replayed,omitempty"`
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, core.NewError(core.CodeInvalidArgument, "invalid request body"))
		return
	}

	res, err := h.mesh.Send(r.Context(), dispatch.Request{
		UserID:         payload.UserID,
		ConversationID: payload.ConversationID,
		Text:           payload.Text,
		Context:        payload.Context,
		Token:          payload.Token,
	})
	if err != nil {
		h.logger.Warn("dispatch failed", "request_id", res.RequestID, "error", err)
		respondDispatchError(w, res, err)
		return
	}

	respondJSON(w, http.StatusOK, sendMessageResponse{
		RequestID:      res.RequestID,
		ConversationID: res.ConversationID,
		Envelope:       res.Envelope,
		Intent:         res.Intent,
		Confidence:     res.Confidence,
		LowConfidence:  res.LowConfidence,
		AgentID:        res.AgentID,
		Replayed:       res.Replayed,
	})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, core.NewError(core.CodeInvalidArgument, "limit must be an integer"))
			return
		}
		limit = parsed
	}

	msgs, err := h.mesh.History(r.Context(), conversationID, limit)
	if err != nil {
		respondError(w, statusOf(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !h.mesh.Healthy() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondDispatchError keeps the canonical envelope in the body so clients
// always receive the same failure shape regardless of transport.
func respondDispatchError(w http.ResponseWriter, res dispatch.Result, err error) {
	respondJSON(w, statusOf(err), sendMessageResponse{
		RequestID:      res.RequestID,
		ConversationID: res.ConversationID,
		Envelope:       res.Envelope,
		Intent:         res.Intent,
		Confidence:     res.Confidence,
		LowConfidence:  res.LowConfidence,
		AgentID:        res.AgentID,
	})
}

func statusOf(err error) int {
	switch core.CodeOf(err) {
	case core.CodeInvalidArgument:
		return http.StatusBadRequest
	case core.CodeNoSuchConversation:
		return http.StatusNotFound
	case core.CodeCancelled:
		// Client went away; 499 in the nginx tradition.
		return 499
	case core.CodeUnknownIntent, core.CodeUnknownAgent, core.CodeRoutingFailure:
		return http.StatusBadGateway
	case core.CodeTransport:
		return http.StatusGatewayTimeout
	case core.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"envelope": core.ErrorEnvelopeFrom(err)})
}
