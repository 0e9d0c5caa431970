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

package stt

import (
	"fmt"

	"github.com/samanthaos/samantha-hub/internal/events"
)

// Passthrough is the degenerate adapter used when recognition happens at the
// client boundary (e.g. a browser-hosted recognizer). Already-transcribed
// text enters through the chat endpoint and never reaches this adapter, so
// raw audio is unclassifiable here: every utterance is reported as empty
// input and the orchestrator recovers locally without a model call.
type Passthrough struct{}

// NewPassthrough creates a pass-through transcriber.
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

// Transcribe always reports empty input; see the type comment.
func (p *Passthrough) Transcribe(audioData []float32, sampleRate int) (*Result, error) {
	return nil, fmt.Errorf("%w: recognition is delegated to the client boundary", events.ErrTranscriptionFailed)
}

// Close cleans up resources
func (p *Passthrough) Close() error {
	return nil
}
