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

// Result contains the result of speech-to-text processing
type Result struct {
	Text       string
	Confidence float64
}

// Transcriber defines the interface for speech-to-text transcription services
type Transcriber interface {
	// Transcribe converts audio samples to text with a confidence estimate
	Transcribe(audioData []float32, sampleRate int) (*Result, error)

	// Close cleans up resources
	Close() error
}

// estimateConfidence is a coarse heuristic for providers that do not report
// per-utterance confidence. Longer transcripts are more trustworthy than
// one-word fragments.
func estimateConfidence(text string) float64 {
	switch {
	case text == "":
		return 0
	case len(text) < 8:
		return 0.6
	default:
		return 0.9
	}
}
