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

package tts

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/samanthaos/samantha-hub/internal/events"
	"github.com/samanthaos/samantha-hub/internal/logging"
)

// Player hands synthesized audio to a playback sink. Play blocks until the
// payload has been rendered, the context is cancelled, or Interrupt is
// called.
type Player interface {
	// Play renders one payload and blocks until done. Play takes ownership
	// of result: its Cleanup runs exactly once, inside Play.
	Play(ctx context.Context, result *Result) error

	// Interrupt stops the in-flight playback, if any. Used for barge-in.
	Interrupt()
}

// CommandPlayer pipes audio into an external player subprocess (aplay, paplay,
// ffplay...). One playback at a time; a second Play waits for the first.
type CommandPlayer struct {
	command string
	args    []string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewCommandPlayer builds a player around the given binary. The audio payload
// is written to the player's stdin.
func NewCommandPlayer(command string, args ...string) *CommandPlayer {
	if command == "" {
		command = "aplay"
	}
	return &CommandPlayer{command: command, args: args}
}

// Play renders one audio payload and blocks until done. An Interrupt during
// playback stops the subprocess and returns nil; the caller initiated the
// stop and needs no error for it.
func (p *CommandPlayer) Play(ctx context.Context, result *Result) error {
	if result == nil || result.Audio == nil {
		return fmt.Errorf("%w: no audio payload", events.ErrPlaybackFailed)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
	}()

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Stdin = result.Audio
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	logging.LogTTSOperation("playback_start", zap.String("player", p.command))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			// Interrupted or cancelled, not a playback fault.
			logging.LogTTSOperation("playback_interrupted")
			return nil
		}
		return fmt.Errorf("%w: %s: %v", events.ErrPlaybackFailed, p.command, err)
	}

	logging.LogTTSOperation("playback_complete")
	return nil
}

// Interrupt stops the current playback immediately.
func (p *CommandPlayer) Interrupt() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
