// Package api provides HTTP handlers for QuitPrep endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/QuitPrep/internal/actions"
	"github.com/BTreeMap/QuitPrep/internal/models"
)

// webhookHandler runs one action invocation from the dialogue engine.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.webhookHandler: processing webhook request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.webhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.webhookHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.NextAction == "" {
		slog.Warn("Server.webhookHandler: missing next_action")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: next_action"))
		return
	}
	if req.Tracker.SenderID == "" {
		slog.Warn("Server.webhookHandler: missing sender_id", "action", req.NextAction)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: tracker.sender_id"))
		return
	}

	tc := models.TurnContextFromSlots(req.Tracker.SenderID, req.Tracker.LastUtterance, req.Tracker.Slots)
	result, err := s.handler.Dispatch(r.Context(), req.NextAction, tc)
	if err != nil {
		if errors.Is(err, actions.ErrUnknownAction) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		// Degraded execution: the result still carries the fail-closed
		// slots or fallback utterance the engine should act on.
		slog.Error("Server.webhookHandler: action degraded", "error", err, "action", req.NextAction, "sender", req.Tracker.SenderID)
	}

	if result.Events == nil {
		result.Events = []models.Event{}
	}
	if result.Responses == nil {
		result.Responses = []models.BotResponse{}
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// healthHandler reports service liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}
