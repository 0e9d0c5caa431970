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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/samanthaos/samantha-hub/internal/api"
	"github.com/samanthaos/samantha-hub/internal/audio"
	"github.com/samanthaos/samantha-hub/internal/bridge"
	"github.com/samanthaos/samantha-hub/internal/config"
	"github.com/samanthaos/samantha-hub/internal/events"
	"github.com/samanthaos/samantha-hub/internal/logging"
	"github.com/samanthaos/samantha-hub/internal/messaging"
	"github.com/samanthaos/samantha-hub/internal/orchestrator"
	"github.com/samanthaos/samantha-hub/internal/persona"
	"github.com/samanthaos/samantha-hub/internal/storage"
	"github.com/samanthaos/samantha-hub/internal/stt"
	"github.com/samanthaos/samantha-hub/internal/tts"
)

// Server is the Samantha hub: it owns the conversation orchestrator, the
// bridge supervisor, storage, messaging and the HTTP surface.
type Server struct {
	cfg    *config.Config
	mux    *http.ServeMux
	server *http.Server

	db          *storage.Database
	store       *storage.TurnEventsStore
	nats        *messaging.NATSService
	transcriber stt.Transcriber
	synthesizer tts.Synthesizer
	player      tts.Player
	capture     orchestrator.CaptureSource
	supervisor  *bridge.Supervisor
	orch        *orchestrator.Orchestrator

	// Server context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New wires all hub components from configuration.
func New(cfg *config.Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Storage.Path})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open turn event log: %w", err)
	}
	store := storage.NewTurnEventsStore(db)

	s := &Server{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		db:     db,
		store:  store,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := s.buildComponents(); err != nil {
		db.Close()
		cancel()
		return nil, err
	}

	s.server = &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      s.mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.routes()
	return s, nil
}

// buildComponents constructs the conversation pipeline. Optional pieces
// (NATS, audio capture) degrade with a warning instead of failing startup.
func (s *Server) buildComponents() error {
	cfg := s.cfg

	var publisher orchestrator.StatePublisher
	if cfg.NATS.Enabled {
		nats := messaging.NewNATSService(cfg.NATS)
		if err := nats.Connect(); err != nil {
			logging.LogWarn("⚠️  NATS unavailable, running without message bus",
				zap.Error(err))
		} else {
			s.nats = nats
			publisher = nats
		}
	}

	transcriber, err := stt.NewFromConfig(cfg.STT)
	if err != nil {
		return fmt.Errorf("failed to build STT provider: %w", err)
	}
	s.transcriber = transcriber

	s.synthesizer = buildSynthesizer(cfg.TTS)
	s.player = tts.NewCommandPlayer(cfg.TTS.PlayerCommand)

	if device, err := audio.NewInputDevice(); err != nil {
		logging.LogWarn("⚠️  No audio input device, voice loop disabled",
			zap.Error(err))
	} else {
		s.capture = audio.NewCapture(device, cfg.Capture)
	}

	s.supervisor = bridge.NewSupervisor(cfg.Bridge)
	client := bridge.NewClient(cfg.Bridge)

	s.orch = orchestrator.New(cfg, s.capture, s.transcriber, s.synthesizer,
		s.player, persona.NewProcessor(cfg.Persona), client, publisher,
		&turnSink{store: s.store, nats: s.nats})

	logging.Sugar.Infow("🔧 Components configured",
		"stt_provider", cfg.STT.Provider,
		"tts_url", cfg.TTS.URL,
		"bridge_url", cfg.Bridge.URL,
		"voice_loop", s.capture != nil,
		"nats", s.nats != nil)
	return nil
}

// turnSink fans a completed turn out to the sqlite log and, when the message
// bus is up, to the conversation turns subject. A publish failure is logged,
// not returned; the durable record already exists.
type turnSink struct {
	store *storage.TurnEventsStore
	nats  *messaging.NATSService
}

func (ts *turnSink) RecordTurnEvent(ctx context.Context, event *events.TurnEvent) error {
	if err := ts.store.RecordTurnEvent(ctx, event); err != nil {
		return err
	}
	if ts.nats != nil {
		if err := ts.nats.PublishTurnEvent(event); err != nil {
			logging.LogWarn("⚠️  Failed to publish turn event",
				zap.String("uuid", event.GetUUID()), zap.Error(err))
		}
	}
	return nil
}

// buildSynthesizer pairs the neural voice service with the espeak fallback
// when one is configured.
func buildSynthesizer(cfg config.TTSConfig) tts.Synthesizer {
	remote, remoteErr := tts.NewRemoteClient(cfg)
	if remoteErr != nil {
		logging.LogWarn("⚠️  Voice service unavailable", zap.Error(remoteErr))
	}

	var espeak tts.Synthesizer
	if cfg.FallbackEnabled {
		if es, err := tts.NewEspeakSynthesizer(cfg.EspeakVoice); err != nil {
			logging.LogWarn("⚠️  espeak-ng fallback unavailable", zap.Error(err))
		} else {
			espeak = es
		}
	}

	switch {
	case remoteErr == nil && espeak != nil:
		return tts.NewFallback(remote, espeak)
	case remoteErr == nil:
		return remote
	case espeak != nil:
		return espeak
	default:
		// Synthesis will fail per turn; the orchestrator degrades those
		// turns to text-only output.
		return tts.Unavailable{}
	}
}

// Start launches the bridge, the voice loop and the HTTP server. Blocks
// until the HTTP server stops.
func (s *Server) Start() error {
	if err := s.supervisor.Start(s.ctx); err != nil {
		logging.LogError(err, "Model bridge not ready, replies will fail until it is")
	}

	if s.capture != nil {
		go func() {
			if err := s.orch.Run(s.ctx); err != nil && s.ctx.Err() == nil {
				logging.LogError(err, "Voice loop stopped")
			}
		}()
	}

	logging.Sugar.Infow("🚀 Samantha Hub starting",
		"http_addr", s.server.Addr,
		"auto_listen", s.cfg.Server.AutoListen)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the hub and all owned components.
func (s *Server) Stop() error {
	logging.Sugar.Infow("🛑 Shutting down Samantha Hub")

	// Cancel context to stop the voice loop and background services
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.supervisor.Stop()

	if s.transcriber != nil {
		s.transcriber.Close()
	}
	if s.synthesizer != nil {
		s.synthesizer.Close()
	}
	if s.nats != nil {
		s.nats.Close()
	}
	if err := s.db.Close(); err != nil {
		logging.LogError(err, "Failed to close turn event log")
	}

	logging.Sugar.Infow("✅ Samantha Hub shut down successfully")
	return nil
}

// Orchestrator exposes the conversation engine, mainly for tests.
func (s *Server) Orchestrator() *orchestrator.Orchestrator {
	return s.orch
}

// routes sets up the HTTP surface.
func (s *Server) routes() {
	turnEvents := api.NewTurnEventsHandler(s.store)
	chat := api.NewChatHandler(s.orch)
	stream := api.NewEventsStreamHandler(s.orch)

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/chat", chat.HandleChat)
	s.mux.HandleFunc("/history", chat.HandleHistory)
	s.mux.HandleFunc("/api/turns", turnEvents.HandleTurnEvents)
	s.mux.HandleFunc("/api/turns/", turnEvents.HandleTurnEventByID)
	s.mux.HandleFunc("/api/events/stream", stream.HandleStream)

	logging.Sugar.Infow("🌐 HTTP routes configured",
		"chat_endpoint", "/chat",
		"turns_endpoint", "/api/turns",
		"stream_endpoint", "/api/events/stream")
}

// handleHealth provides system health information
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	handle := s.supervisor.Handle()

	health := map[string]interface{}{
		"status":       "ok",
		"timestamp":    time.Now(),
		"state":        s.orch.State().String(),
		"session_id":   s.orch.Session().ID,
		"bridge_ready": handle.Ready,
		"voice_loop":   s.capture != nil,
		"nats":         s.nats != nil && s.nats.IsConnected(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		logging.LogError(err, "Failed to write health response")
	}
}
