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
	"fmt"
	"io"

	"github.com/samanthaos/samantha-hub/internal/events"
)

// Options holds options for text-to-speech synthesis
type Options struct {
	Voice          string  // Voice to use (e.g., "af_bella")
	Speed          float32 // Speech speed (1.0 = normal)
	ResponseFormat string  // Audio format (mp3, wav, opus, flac)
}

// Result holds the result of text-to-speech synthesis
type Result struct {
	Audio       io.Reader // Audio stream
	ContentType string    // MIME type of the audio
	Length      int64     // Audio length in bytes (-1 if unknown)
	Cleanup     func()    // Optional cleanup function for resources
}

// Synthesizer defines the interface for text-to-speech synthesis services
type Synthesizer interface {
	// Synthesize converts text to speech audio
	Synthesize(text string, options *Options) (*Result, error)

	// GetAvailableVoices returns the list of available voices
	GetAvailableVoices() ([]string, error)

	// Close cleans up resources
	Close() error
}

// Unavailable is the synthesizer of last resort: every call fails. It keeps
// the hub running text-only when no voice backend could be built.
type Unavailable struct{}

func (Unavailable) Synthesize(text string, options *Options) (*Result, error) {
	return nil, fmt.Errorf("%w: no synthesizer available", events.ErrSynthesisFailed)
}

func (Unavailable) GetAvailableVoices() ([]string, error) {
	return nil, fmt.Errorf("%w: no synthesizer available", events.ErrSynthesisFailed)
}

func (Unavailable) Close() error { return nil }
