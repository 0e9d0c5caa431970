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
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/samanthaos/samantha-hub/internal/events"
	"github.com/samanthaos/samantha-hub/internal/logging"
	"github.com/samanthaos/samantha-hub/internal/security"
	"github.com/samanthaos/samantha-hub/internal/storage"
)

// TurnEventsHandler handles HTTP requests for conversation turn events
type TurnEventsHandler struct {
	store *storage.TurnEventsStore
}

// NewTurnEventsHandler creates a new turn events handler
func NewTurnEventsHandler(store *storage.TurnEventsStore) *TurnEventsHandler {
	return &TurnEventsHandler{store: store}
}

// ListTurnEventsResponse represents the response for listing turn events
type ListTurnEventsResponse struct {
	Events     []*events.TurnEvent `json:"events"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalPages int                 `json:"total_pages"`
}

// CreateTurnEventRequest represents the request for creating a turn event
type CreateTurnEventRequest struct {
	SessionID     string  `json:"session_id"`
	Transcription string  `json:"transcription"`
	Confidence    float64 `json:"confidence"`
	Model         string  `json:"model"`
	ResponseText  string  `json:"response_text"`
	AudioDuration float64 `json:"audio_duration,omitempty"`
	SampleRate    int     `json:"sample_rate,omitempty"`
	BargeIn       bool    `json:"barge_in,omitempty"`
}

// HandleTurnEvents handles GET /api/turns and POST /api/turns
func (h *TurnEventsHandler) HandleTurnEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTurnEvents(w, r)
	case http.MethodPost:
		h.createTurnEvent(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleTurnEventByID handles GET /api/turns/{id}
func (h *TurnEventsHandler) HandleTurnEventByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Extract UUID from URL path
	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/turns/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		http.Error(w, "Event ID is required", http.StatusBadRequest)
		return
	}

	uuid := pathParts[0]
	if err := security.ValidateEventUUID(uuid); err != nil {
		http.Error(w, "Invalid event ID", http.StatusBadRequest)
		return
	}

	h.getTurnEventByID(w, r, uuid)
}

// listTurnEvents handles GET /api/turns
func (h *TurnEventsHandler) listTurnEvents(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters
	query := r.URL.Query()

	// Pagination
	page := parseIntParam(query.Get("page"), 1)
	pageSize := parseIntParam(query.Get("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100 // Limit maximum page size
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}

	// Filtering
	options := storage.ListOptions{
		SessionID: query.Get("session_id"),
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
		SortBy:    query.Get("sort_by"),
		SortOrder: strings.ToUpper(query.Get("sort_order")),
	}

	// Parse success filter
	if successStr := query.Get("success"); successStr != "" {
		if success, err := strconv.ParseBool(successStr); err == nil {
			options.Success = &success
		}
	}

	// Parse barge-in filter
	if bargeStr := query.Get("barge_in"); bargeStr != "" {
		if bargeIn, err := strconv.ParseBool(bargeStr); err == nil {
			options.BargeIn = &bargeIn
		}
	}

	// Parse time filters
	if startTimeStr := query.Get("start_time"); startTimeStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			options.StartTime = &startTime
		}
	}
	if endTimeStr := query.Get("end_time"); endTimeStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			options.EndTime = &endTime
		}
	}

	// Get total count for pagination
	total, err := h.store.Count(options)
	if err != nil {
		logging.LogError(err, "Failed to count turn events")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Get events
	eventsList, err := h.store.List(options)
	if err != nil {
		logging.LogError(err, "Failed to list turn events")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Build response
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	response := ListTurnEventsResponse{
		Events:     eventsList,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}

	if logging.Sugar != nil {
		logging.Sugar.Infow("Turn events API request",
			"endpoint", "list",
			"page", page,
			"page_size", pageSize,
			"total_results", total,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// createTurnEvent handles POST /api/turns
func (h *TurnEventsHandler) createTurnEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateTurnEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// Validate required fields
	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	event := events.NewTurnEvent(req.SessionID)
	event.SetTranscription(req.Transcription, req.Confidence)
	event.SetResponse(req.ResponseText, req.Model)

	// Set optional audio metadata
	if req.AudioDuration > 0 || req.SampleRate > 0 {
		// Placeholder audio for hash calculation; callers report metadata only
		placeholder := make([]float32, 1)
		event.SetAudioMetadata(placeholder, req.SampleRate, req.BargeIn)
		if req.AudioDuration > 0 {
			event.AudioDuration = req.AudioDuration
		}
	}

	// Store in database
	if err := h.store.Insert(event); err != nil {
		logging.LogError(err, "Failed to create turn event",
			zap.String("session_id", security.SanitizeLogInput(req.SessionID)),
		)
		http.Error(w, "Failed to create turn event", http.StatusInternalServerError)
		return
	}

	if logging.Sugar != nil {
		logging.Sugar.Infow("Turn event created via API",
			"event_uuid", event.UUID,
			"session_id", security.SanitizeLogInput(req.SessionID),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(event)
}

// getTurnEventByID handles GET /api/turns/{id}
func (h *TurnEventsHandler) getTurnEventByID(w http.ResponseWriter, r *http.Request, uuid string) {
	event, err := h.store.GetByUUID(uuid)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "Turn event not found", http.StatusNotFound)
			return
		}
		logging.LogError(err, "Failed to get turn event",
			zap.String("uuid", uuid),
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(event)
}

// parseIntParam parses integer parameter with default value
func parseIntParam(param string, defaultValue int) int {
	if param == "" {
		return defaultValue
	}

	if value, err := strconv.Atoi(param); err == nil {
		return value
	}

	return defaultValue
}
