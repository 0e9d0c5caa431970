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

package events

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"
	"unsafe"
)

// TurnEvent represents one complete conversation turn with full traceability:
// the captured utterance, its transcription, the model reply, and how the
// turn ended.
type TurnEvent struct {
	// Core identification
	UUID      string    `json:"uuid" db:"uuid"`
	SessionID string    `json:"session_id" db:"session_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	// Audio metadata
	AudioHash     string  `json:"audio_hash" db:"audio_hash"`
	AudioDuration float64 `json:"audio_duration" db:"audio_duration"`
	SampleRate    int     `json:"sample_rate" db:"sample_rate"`
	BargeIn       bool    `json:"barge_in" db:"barge_in"`

	// Processing results
	Transcription string  `json:"transcription" db:"transcription"`
	Confidence    float64 `json:"confidence" db:"confidence"`
	Model         string  `json:"model" db:"model"`

	// Response data
	ResponseText   string `json:"response_text" db:"response_text"`
	ProcessingTime int64  `json:"processing_time_ms" db:"processing_time_ms"`
	Success        bool   `json:"success" db:"success"`
	ErrorMessage   string `json:"error_message,omitempty" db:"error_message"`
}

// NewTurnEvent creates a new TurnEvent with generated UUID and current timestamp
func NewTurnEvent(sessionID string) *TurnEvent {
	return &TurnEvent{
		UUID:      generateUUID(),
		SessionID: sessionID,
		Timestamp: time.Now(),
		Success:   true,
	}
}

// GetUUID satisfies the logging helpers' identity check.
func (te *TurnEvent) GetUUID() string {
	return te.UUID
}

// generateUUID generates a simple UUID without external dependencies
func generateUUID() string {
	b := make([]byte, 16)
	_, err := io.ReadFull(rand.Reader, b)
	if err != nil {
		// Fallback to timestamp-based ID if random fails
		return fmt.Sprintf("samantha-%d", time.Now().UnixNano())
	}

	// Set version (4) and variant bits
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80

	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}

// SetAudioMetadata sets audio-related metadata for the event
func (te *TurnEvent) SetAudioMetadata(audioData []float32, sampleRate int, bargeIn bool) {
	te.AudioHash = te.calculateAudioHash(audioData)
	if sampleRate > 0 {
		te.AudioDuration = float64(len(audioData)) / float64(sampleRate)
	}
	te.SampleRate = sampleRate
	te.BargeIn = bargeIn
}

// SetTranscription sets the transcription result
func (te *TurnEvent) SetTranscription(transcription string, confidence float64) {
	te.Transcription = transcription
	te.Confidence = confidence
}

// SetResponse sets the response text and marks processing as complete
func (te *TurnEvent) SetResponse(responseText, model string) {
	te.ResponseText = responseText
	te.Model = model
	te.ProcessingTime = time.Since(te.Timestamp).Milliseconds()
}

// SetError marks the event as failed with an error message
func (te *TurnEvent) SetError(err error) {
	te.Success = false
	te.ErrorMessage = err.Error()
	te.ProcessingTime = time.Since(te.Timestamp).Milliseconds()
}

// calculateAudioHash generates a SHA-256 hash of the audio data for duplicate detection
func (te *TurnEvent) calculateAudioHash(audioData []float32) string {
	hasher := sha256.New()

	// Convert float32 slice to bytes for hashing
	for _, sample := range audioData {
		bytes := (*[4]byte)(unsafe.Pointer(&sample))[:]
		hasher.Write(bytes)
	}

	return hex.EncodeToString(hasher.Sum(nil))
}

// IsValid performs basic validation on the turn event
func (te *TurnEvent) IsValid() error {
	if te.UUID == "" {
		return fmt.Errorf("UUID is required")
	}

	if te.SessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	if te.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	if te.Confidence < 0 || te.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1")
	}

	return nil
}

// String returns a human-readable representation of the turn event
func (te *TurnEvent) String() string {
	return fmt.Sprintf("TurnEvent{UUID: %s, SessionID: %s, Transcription: %q, Confidence: %.2f, Success: %t}",
		te.UUID, te.SessionID, te.Transcription, te.Confidence, te.Success)
}
