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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/samanthaos/samantha-hub/internal/events"
	"github.com/samanthaos/samantha-hub/internal/logging"
)

// EventSource provides a stream of conversation state changes.
// *orchestrator.Orchestrator implements it.
type EventSource interface {
	Subscribe() <-chan events.StateChange
	Unsubscribe(<-chan events.StateChange)
}

// EventsStreamHandler serves conversation state changes over SSE so any UI
// can follow the conversation without polling.
type EventsStreamHandler struct {
	source EventSource
}

// NewEventsStreamHandler creates a new SSE stream handler
func NewEventsStreamHandler(source EventSource) *EventsStreamHandler {
	return &EventsStreamHandler{source: source}
}

// HandleStream handles GET /api/events/stream
func (h *EventsStreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	changes := h.source.Subscribe()
	defer h.source.Unsubscribe(changes)
	for {
		select {
		case <-r.Context().Done():
			return
		case change := <-changes:
			data, err := json.Marshal(change)
			if err != nil {
				logging.LogError(err, "Failed to marshal state change for SSE")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Kind, data)
			flusher.Flush()
		}
	}
}
