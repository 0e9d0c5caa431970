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

import "errors"

// Failure taxonomy for the conversation pipeline. Each stage wraps one of
// these sentinels so the orchestrator can pick the right recovery path with
// errors.Is.
var (
	// ErrCaptureUnavailable means the audio device could not be opened or
	// permission was denied. Fatal to the current turn, not the process.
	ErrCaptureUnavailable = errors.New("audio capture unavailable")

	// ErrTranscriptionFailed means the speech backend produced no usable
	// text. Treated as "no input"; the model bridge is never contacted.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrBridgeUnavailable means the bridge process never became ready or
	// cannot be reached over loopback.
	ErrBridgeUnavailable = errors.New("model bridge unavailable")

	// ErrModelExecutionFailed means the bridge reached the model runner but
	// the invocation failed after its bounded retries.
	ErrModelExecutionFailed = errors.New("model execution failed")

	// ErrSynthesisFailed means both the remote voice service and the local
	// fallback could not produce audio. The turn degrades to text-only.
	ErrSynthesisFailed = errors.New("speech synthesis failed")

	// ErrPlaybackFailed means synthesized audio could not be handed to the
	// playback sink.
	ErrPlaybackFailed = errors.New("audio playback failed")
)
