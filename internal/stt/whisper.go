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

//go:build whisper

package stt

import (
	"fmt"
	"os"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/samanthaos/samantha-hub/internal/events"
	"github.com/samanthaos/samantha-hub/internal/logging"
)

// WhisperTranscriber handles offline speech-to-text using Whisper
type WhisperTranscriber struct {
	model     whisper.Model
	modelPath string
	language  string
}

// NewWhisperTranscriber creates a new Whisper transcriber
func NewWhisperTranscriber(modelPath, language string) (*WhisperTranscriber, error) {
	// Check if model file exists
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("whisper model not found at %s", modelPath)
	}

	// Load the model
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}

	logging.Sugar.Infow("✅ Whisper model loaded", "model_path", modelPath)
	return &WhisperTranscriber{
		model:     model,
		modelPath: modelPath,
		language:  language,
	}, nil
}

// Transcribe converts audio samples to text
func (wt *WhisperTranscriber) Transcribe(audioData []float32, sampleRate int) (*Result, error) {
	if wt.model == nil {
		return nil, fmt.Errorf("whisper model not initialized")
	}

	// Create a new context for this transcription
	ctx, err := wt.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper context: %w", err)
	}

	if wt.language != "" {
		if err := ctx.SetLanguage(wt.language); err != nil {
			return nil, fmt.Errorf("failed to set language %q: %w", wt.language, err)
		}
	}

	// Process the audio data
	if err := ctx.Process(audioData, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", events.ErrTranscriptionFailed, err)
	}

	// Extract the transcription
	var transcript strings.Builder
	for {
		segment, err := ctx.NextSegment()
		if err != nil {
			break
		}
		transcript.WriteString(segment.Text)
	}

	text := strings.TrimSpace(transcript.String())
	if text == "" {
		return nil, fmt.Errorf("%w: whisper produced no text", events.ErrTranscriptionFailed)
	}

	logging.Sugar.Infow("🧠 Whisper transcription", "text", text)
	return &Result{Text: text, Confidence: estimateConfidence(text)}, nil
}

// Close cleans up the Whisper model
func (wt *WhisperTranscriber) Close() error {
	if wt.model != nil {
		wt.model.Close()
		logging.Sugar.Infow("🧠 Whisper model closed")
	}
	return nil
}
