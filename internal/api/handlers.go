package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SofiaChang/shopping-agent/internal/events"
	"github.com/SofiaChang/shopping-agent/internal/history"
	"github.com/SofiaChang/shopping-agent/internal/models"
	"github.com/SofiaChang/shopping-agent/internal/parser"
	"github.com/SofiaChang/shopping-agent/internal/scraper"
	"github.com/SofiaChang/shopping-agent/internal/sessions"
)

// Handlers exposes the agent over HTTP. History and events are optional
// collaborators; nil disables them.
type Handlers struct {
	manager *sessions.Manager
	history *history.Store
	events  *events.Publisher
	logger  *slog.Logger
}

func NewHandlers(manager *sessions.Manager, hist *history.Store, pub *events.Publisher, logger *slog.Logger) *Handlers {
	return &Handlers{
		manager: manager,
		history: hist,
		events:  pub,
		logger:  logger.With("component", "api"),
	}
}

// Routes mounts the handlers under the given router.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Post("/query", h.Query)
			r.Get("/history", h.History)
			r.Delete("/", h.CloseSession)
		})
	})
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := h.manager.Create()
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.respondJSON(w, http.StatusCreated, CreateSessionResponse{SessionID: id})
}

type QueryRequest struct {
	Input string `json:"input"`
}

type QueryResponse struct {
	Matching    []models.Product   `json:"matching"`
	Other       []models.Product   `json:"other"`
	Constraints models.Constraints `json:"constraints"`
}

func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, constraints, err := h.manager.Handle(r.Context(), sessionID, req.Input)
	if err != nil {
		h.respondTurnError(w, sessionID, err)
		return
	}

	if h.history != nil {
		if _, err := h.history.Record(r.Context(), history.Turn{
			SessionID:     sessionID,
			Input:         req.Input,
			Constraints:   constraints,
			MatchingCount: len(result.Matching),
			OtherCount:    len(result.Other),
		}); err != nil {
			h.logger.Error("failed to record turn", "session_id", sessionID, "error", err)
		}
	}
	if h.events != nil {
		if err := h.events.PublishTurnCompleted(r.Context(), &events.TurnCompletedPayload{
			SessionID:     sessionID,
			Input:         req.Input,
			Constraints:   constraints,
			MatchingCount: len(result.Matching),
			OtherCount:    len(result.Other),
		}); err != nil {
			h.logger.Error("failed to publish turn event", "session_id", sessionID, "error", err)
		}
	}

	h.respondJSON(w, http.StatusOK, QueryResponse{
		Matching:    result.Matching,
		Other:       result.Other,
		Constraints: constraints,
	})
}

func (h *Handlers) respondTurnError(w http.ResponseWriter, sessionID string, err error) {
	var ambiguous *parser.AmbiguousQueryError
	var scrape *scraper.ScrapeError

	switch {
	case errors.Is(err, sessions.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "session not found")
	case errors.As(err, &ambiguous):
		h.respondError(w, http.StatusUnprocessableEntity, ambiguous.Reason)
	case errors.As(err, &scrape):
		h.logger.Error("scrape failed", "session_id", sessionID, "error", err)
		h.respondError(w, http.StatusBadGateway, "search failed, please try again later")
	default:
		h.logger.Error("turn failed", "session_id", sessionID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.respondError(w, http.StatusNotFound, "history is not enabled")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	turns, err := h.history.List(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to list history", "session_id", sessionID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if turns == nil {
		turns = []history.Turn{}
	}
	h.respondJSON(w, http.StatusOK, turns)
}

func (h *Handlers) CloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.manager.Close(sessionID); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("failed to close session", "session_id", sessionID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to close session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
