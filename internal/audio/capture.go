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

package audio

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/samanthaos/samantha-hub/internal/config"
	"github.com/samanthaos/samantha-hub/internal/events"
	"github.com/samanthaos/samantha-hub/internal/logging"
)

// Device abstracts the audio input hardware so the capture pipeline can be
// tested without a sound card.
type Device interface {
	// Start opens the input stream for mono float32 frames of frameSize
	// samples at the given rate.
	Start(sampleRate, frameSize int) error

	// ReadFrame blocks until buf is filled with the next frame.
	ReadFrame(buf []float32) error

	// Stop closes the stream and releases the device.
	Stop() error
}

// Capture runs the silence-aware capture pipeline: a reader goroutine pulls
// frames off the device into a bounded queue, and a detector goroutine
// consumes the queue to delimit utterance boundaries. Finalized utterances
// are delivered on Utterances(); state transitions on StateChanges().
type Capture struct {
	device   Device
	cfg      config.CaptureConfig
	detector *BoundaryDetector

	frames     chan Frame
	utterances chan Utterance
	states     chan State

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewCapture wires a capture pipeline around the given input device.
func NewCapture(device Device, cfg config.CaptureConfig) *Capture {
	return &Capture{
		device: device,
		cfg:    cfg,
		detector: NewBoundaryDetector(DetectorConfig{
			FrameDuration:   cfg.FrameDuration,
			EnergyThreshold: cfg.EnergyThreshold,
			MinSpeechFrames: cfg.MinSpeechFrames,
			TrailingSilence: cfg.TrailingSilence,
			MaxUtterance:    cfg.MaxUtterance,
		}),
		frames:     make(chan Frame, cfg.QueueSize),
		utterances: make(chan Utterance, 4),
		states:     make(chan State, 16),
	}
}

// Utterances delivers finalized utterances. The channel is closed when the
// pipeline stops.
func (c *Capture) Utterances() <-chan Utterance {
	return c.utterances
}

// StateChanges delivers detector state transitions for UI and barge-in
// detection. Slow consumers miss transitions rather than stall capture.
func (c *Capture) StateChanges() <-chan State {
	return c.states
}

// FrameSize returns the per-frame sample count for the configured rate.
func (c *Capture) FrameSize() int {
	return int(float64(c.cfg.SampleRate) * c.cfg.FrameDuration.Seconds())
}

// Start opens the device and launches the pipeline goroutines. A device that
// cannot be opened is reported as a capture-unavailable failure; the caller
// falls back to the text-input path.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("capture already running")
	}

	frameSize := c.FrameSize()
	if err := c.device.Start(c.cfg.SampleRate, frameSize); err != nil {
		return fmt.Errorf("%w: %v", events.ErrCaptureUnavailable, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	logging.LogCaptureStage("started",
		zap.Int("sample_rate", c.cfg.SampleRate),
		zap.Int("frame_size", frameSize),
		zap.Duration("trailing_silence", c.cfg.TrailingSilence),
	)

	go c.readLoop(ctx, frameSize)
	go c.detectLoop(ctx)

	return nil
}

// Stop tears down the pipeline and releases the device. Safe to call twice.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false
	c.cancel()
	<-c.done

	err := c.device.Stop()
	logging.LogCaptureStage("stopped")
	return err
}

// readLoop pulls frames off the device into the bounded queue. When the
// detector falls behind, frames are dropped rather than blocking the device
// read.
func (c *Capture) readLoop(ctx context.Context, frameSize int) {
	defer close(c.frames)

	buf := make([]float32, frameSize)
	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.device.ReadFrame(buf); err != nil {
			if ctx.Err() == nil {
				logging.LogError(err, "failed to read audio frame")
			}
			return
		}

		samples := make([]float32, frameSize)
		copy(samples, buf)

		select {
		case c.frames <- NewFrame(samples):
		default:
			logging.LogWarn("capture queue full, dropping frame")
		}
	}
}

// detectLoop consumes queued frames, drives the boundary detector, and emits
// finalized utterances.
func (c *Capture) detectLoop(ctx context.Context) {
	defer close(c.done)
	defer close(c.utterances)

	prev := c.detector.State()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-c.frames:
			if !ok {
				return
			}

			samples, finalized := c.detector.Feed(frame)

			if state := c.detector.State(); state != prev || finalized {
				if finalized {
					c.emitState(StateFinalized)
				}
				c.emitState(state)
				prev = state
			}

			if !finalized {
				continue
			}

			utterance := Utterance{Samples: samples, SampleRate: c.cfg.SampleRate}
			logging.LogCaptureStage("utterance finalized",
				zap.Duration("duration", utterance.Duration()),
				zap.Int("samples", len(samples)),
			)

			select {
			case c.utterances <- utterance:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Capture) emitState(state State) {
	select {
	case c.states <- state:
	default:
	}
}
