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
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/samanthaos/samantha-hub/internal/config"
	"github.com/samanthaos/samantha-hub/internal/events"
	"github.com/samanthaos/samantha-hub/internal/logging"
)

// ProcessHandle is the read-only liveness state of the bridge child process.
// Only the Supervisor mutates it; everyone else gets copies.
type ProcessHandle struct {
	PID       int
	Ready     bool
	StartTime time.Time
	LogPath   string
}

// Supervisor owns the bridge process lifecycle on the hub side: spawn if
// nothing is listening, poll readiness, and tear down without leaving
// orphans.
type Supervisor struct {
	cfg    config.BridgeConfig
	probes *http.Client

	mu      sync.Mutex
	cmd     *exec.Cmd
	handle  ProcessHandle
	logFile *os.File
}

// NewSupervisor builds a supervisor for the configured bridge.
func NewSupervisor(cfg config.BridgeConfig) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		probes: &http.Client{Timeout: time.Second},
	}
}

// Start makes the bridge reachable. A bridge that is already listening is
// adopted as-is; otherwise the child is spawned and polled until ready. If
// readiness never arrives the child is killed before returning, so a failed
// startup cannot leak a process.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.probe(ctx) == nil {
		logging.LogBridgeOperation("adopted", zap.String("url", s.cfg.URL))
		s.handle = ProcessHandle{Ready: true, StartTime: time.Now()}
		return nil
	}

	if !s.cfg.Spawn {
		return fmt.Errorf("%w: nothing listening at %s and spawning is disabled",
			events.ErrBridgeUnavailable, s.cfg.URL)
	}

	if err := s.spawnLocked(); err != nil {
		return fmt.Errorf("%w: %v", events.ErrBridgeUnavailable, err)
	}

	logging.LogBridgeOperation("spawned",
		zap.Int("pid", s.handle.PID),
		zap.String("command", s.cfg.Command),
	)

	for attempt := 1; attempt <= s.cfg.ReadinessAttempts; attempt++ {
		if err := s.probe(ctx); err == nil {
			s.handle.Ready = true
			logging.LogBridgeOperation("ready", zap.Int("attempts", attempt))
			return nil
		}

		select {
		case <-ctx.Done():
			s.terminateLocked()
			return fmt.Errorf("%w: %v", events.ErrBridgeUnavailable, ctx.Err())
		case <-time.After(s.cfg.ReadinessInterval):
		}
	}

	// Not ready in time: reap the child before surfacing the failure.
	s.terminateLocked()
	return fmt.Errorf("%w: not ready after %d attempts",
		events.ErrBridgeUnavailable, s.cfg.ReadinessAttempts)
}

// Stop terminates the child process: SIGTERM, a grace period, then SIGKILL.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminateLocked()
}

// Handle returns a copy of the current process state.
func (s *Supervisor) Handle() ProcessHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// probe hits the models endpoint, the bridge's readiness signal.
func (s *Supervisor) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL+"/v1/models", nil)
	if err != nil {
		return err
	}

	resp, err := s.probes.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("readiness probe returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *Supervisor) spawnLocked() error {
	cmd := exec.Command(s.cfg.Command)

	if s.cfg.LogPath != "" {
		logFile, err := os.OpenFile(s.cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open bridge log sink: %w", err)
		}
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		s.logFile = logFile
	}

	if err := cmd.Start(); err != nil {
		if s.logFile != nil {
			s.logFile.Close()
			s.logFile = nil
		}
		return fmt.Errorf("failed to spawn %s: %w", s.cfg.Command, err)
	}

	s.cmd = cmd
	s.handle = ProcessHandle{
		PID:       cmd.Process.Pid,
		StartTime: time.Now(),
		LogPath:   s.cfg.LogPath,
	}
	return nil
}

func (s *Supervisor) terminateLocked() {
	if s.cmd == nil || s.cmd.Process == nil {
		s.handle.Ready = false
		return
	}

	pid := s.cmd.Process.Pid
	_ = s.cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan error, 1)
	go func(cmd *exec.Cmd) {
		done <- cmd.Wait()
	}(s.cmd)

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
		_ = s.cmd.Process.Kill()
		<-done
	}

	logging.LogBridgeOperation("terminated", zap.Int("pid", pid))

	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}
	s.cmd = nil
	s.handle = ProcessHandle{LogPath: s.handle.LogPath}
}
