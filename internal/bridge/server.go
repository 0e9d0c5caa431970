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

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/samanthaos/samantha-hub/internal/logging"
)

// availableModels are the identifiers the runner accepts. The list doubles as
// the readiness-probe payload.
var availableModels = []string{
	"kilo/z-ai/glm-5:free",
	"kilo/arcee-ai/trinity-large-preview:free",
	"kilo/corethink:free",
	"kilo/minimax/minimax-m2.5:free",
	"kilo/stepfun/step-3.5-flash:free",
	"kilo/x-ai/grok-code-fast-1:optimized:free",
	"kilo/openrouter/free",
}

const defaultModel = "kilo/openrouter/free"

// Server is the loopback HTTP service translating the chat-completion
// contract into runner invocations. Requests are executed sequentially
// against the single runner; concurrent requests queue on the mutex and
// share no state beyond it.
type Server struct {
	runner     Runner
	httpServer *http.Server

	// runMu serializes model invocations.
	runMu sync.Mutex
}

// NewServer wires the bridge service around a runner.
func NewServer(addr string, runner Runner) *Server {
	s := &Server{runner: runner}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
		// Completions wait on the runner; only reads get a short bound here.
		ReadTimeout: 30 * time.Second,
	}

	return s
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	logging.LogBridgeOperation("listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("bridge server failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ErrorTypeInvalidRequest, "method not allowed")
		return
	}

	models := make([]ModelInfo, len(availableModels))
	for i, id := range availableModels {
		models[i] = ModelInfo{ID: id, Object: "model", OwnedBy: "kilo"}
	}

	writeJSON(w, http.StatusOK, ModelsResponse{Object: "list", Data: models})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ErrorTypeInvalidRequest, "method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorTypeInvalidRequest, "invalid JSON body")
		return
	}

	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, ErrorTypeInvalidRequest, "messages must not be empty")
		return
	}

	model := req.Model
	if model == "" {
		model = defaultModel
	}

	prompt, err := buildPrompt(req.Messages)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorTypeInvalidRequest, err.Error())
		return
	}

	logging.LogBridgeOperation("chat_completion",
		zap.String("model", model),
		zap.Int("messages", len(req.Messages)),
	)

	// One invocation at a time against the single runner.
	s.runMu.Lock()
	text, err := s.runner.Run(r.Context(), model, prompt)
	s.runMu.Unlock()

	if err != nil {
		logging.LogError(err, "model invocation failed", zap.String("model", model))
		if errors.Is(err, ErrRunnerTimeout) {
			writeError(w, http.StatusGatewayTimeout, ErrorTypeTimeout, "Request timeout")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrorTypeModel, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, newCompletion(model, text))
}

// buildPrompt flattens the message history into one prompt: prior turns
// become a context block, the last user message is the current one.
func buildPrompt(messages []Message) (string, error) {
	var userMessage string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			userMessage = messages[i].Content
			break
		}
	}
	if userMessage == "" {
		return "", fmt.Errorf("messages must contain at least one user message")
	}

	var context strings.Builder
	for _, msg := range messages[:len(messages)-1] {
		context.WriteString(msg.Role)
		context.WriteString(": ")
		context.WriteString(msg.Content)
		context.WriteString("\n")
	}

	if context.Len() == 0 {
		return userMessage, nil
	}
	return fmt.Sprintf("Context:\n%s\n\nCurrent message: %s", context.String(), userMessage), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.LogError(err, "failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Message: message, Type: errType}})
}
