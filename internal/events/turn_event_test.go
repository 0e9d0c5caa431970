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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTurnEvent(t *testing.T) {
	event := NewTurnEvent("session-1")

	assert.NotEmpty(t, event.UUID)
	assert.Equal(t, "session-1", event.SessionID)
	assert.False(t, event.Timestamp.IsZero())
	assert.True(t, event.Success)
	require.NoError(t, event.IsValid())

	// UUIDs must be unique across events
	other := NewTurnEvent("session-1")
	assert.NotEqual(t, event.UUID, other.UUID)
}

func TestSetAudioMetadata(t *testing.T) {
	event := NewTurnEvent("session-1")
	samples := make([]float32, 16000) // one second at 16kHz

	event.SetAudioMetadata(samples, 16000, false)

	assert.NotEmpty(t, event.AudioHash)
	assert.InDelta(t, 1.0, event.AudioDuration, 0.001)
	assert.Equal(t, 16000, event.SampleRate)
	assert.False(t, event.BargeIn)

	// Same audio hashes to the same value
	duplicate := NewTurnEvent("session-1")
	duplicate.SetAudioMetadata(samples, 16000, false)
	assert.Equal(t, event.AudioHash, duplicate.AudioHash)

	// Different audio does not
	samples[100] = 0.5
	changed := NewTurnEvent("session-1")
	changed.SetAudioMetadata(samples, 16000, true)
	assert.NotEqual(t, event.AudioHash, changed.AudioHash)
	assert.True(t, changed.BargeIn)
}

func TestSetResponseAndError(t *testing.T) {
	event := NewTurnEvent("session-1")
	event.SetTranscription("what time is it", 0.92)
	event.SetResponse("It's 5:30 PM.", "kilo/openrouter/free")

	assert.Equal(t, "what time is it", event.Transcription)
	assert.InDelta(t, 0.92, event.Confidence, 0.0001)
	assert.Equal(t, "It's 5:30 PM.", event.ResponseText)
	assert.Equal(t, "kilo/openrouter/free", event.Model)
	assert.True(t, event.Success)
	assert.GreaterOrEqual(t, event.ProcessingTime, int64(0))

	event.SetError(errors.New("model execution failed"))
	assert.False(t, event.Success)
	assert.Equal(t, "model execution failed", event.ErrorMessage)
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TurnEvent)
		wantErr string
	}{
		{
			name:   "valid event",
			mutate: func(te *TurnEvent) {},
		},
		{
			name:    "missing UUID",
			mutate:  func(te *TurnEvent) { te.UUID = "" },
			wantErr: "UUID is required",
		},
		{
			name:    "missing session",
			mutate:  func(te *TurnEvent) { te.SessionID = "" },
			wantErr: "sessionID is required",
		},
		{
			name:    "confidence out of range",
			mutate:  func(te *TurnEvent) { te.Confidence = 1.5 },
			wantErr: "confidence must be between 0 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewTurnEvent("session-1")
			tt.mutate(event)

			err := event.IsValid()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestErrorSentinels(t *testing.T) {
	wrapped := errors.Join(errors.New("whisper: no speech detected"), ErrTranscriptionFailed)
	assert.True(t, errors.Is(wrapped, ErrTranscriptionFailed))
	assert.False(t, errors.Is(wrapped, ErrBridgeUnavailable))
}
