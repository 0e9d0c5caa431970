/*
 * This file is part of Samantha (https://github.com/samanthaos/samantha).
 * Copyright (C) 2025 Samantha OS
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/samanthaos/samantha-hub/internal/events"
	"github.com/samanthaos/samantha-hub/internal/logging"
	"github.com/samanthaos/samantha-hub/internal/orchestrator"
)

// ChatService is the conversation surface the chat endpoints talk to.
// *orchestrator.Orchestrator implements it.
type ChatService interface {
	HandleText(ctx context.Context, input string) (string, error)
	Session() *orchestrator.Session
}

// ChatHandler serves the text-input path: typed messages in, assistant
// replies out, no audio involved.
type ChatHandler struct {
	service ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// ChatRequest is a typed user message
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the assistant's reply to a typed message
type ChatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
}

// HistoryResponse lists the turns of the active session
type HistoryResponse struct {
	SessionID string              `json:"session_id"`
	Turns     []orchestrator.Turn `json:"turns"`
}

// HandleChat handles POST /chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	reply, err := h.service.HandleText(r.Context(), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, events.ErrTranscriptionFailed):
			http.Error(w, "message is required", http.StatusBadRequest)
		case errors.Is(err, events.ErrBridgeUnavailable):
			http.Error(w, "Model bridge unavailable", http.StatusServiceUnavailable)
		default:
			logging.LogError(err, "Chat request failed")
			http.Error(w, "Failed to produce a reply", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ChatResponse{
		Reply:     reply,
		SessionID: h.service.Session().ID,
	})
}

// HandleHistory handles GET /history
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session := h.service.Session()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HistoryResponse{
		SessionID: session.ID,
		Turns:     session.Turns(),
	})
}
