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

import "time"

// StateKind identifies a conversation lifecycle transition.
type StateKind string

const (
	StateListeningStarted   StateKind = "listening-started"
	StateUtteranceFinalized StateKind = "utterance-finalized"
	StateModelResponseReady StateKind = "model-response-ready"
	StateSpeakingStarted    StateKind = "speaking-started"
	StateSpeakingFinished   StateKind = "speaking-finished"
	StateError              StateKind = "error"
)

// StateChange is published on the message bus whenever the orchestrator
// crosses a lifecycle boundary. Detail carries kind-specific context: the
// finalized transcript, the cleaned reply, or an error string.
type StateChange struct {
	Kind      StateKind `json:"kind"`
	SessionID string    `json:"session_id"`
	TurnUUID  string    `json:"turn_uuid,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStateChange stamps a state transition with the current time.
func NewStateChange(kind StateKind, sessionID, turnUUID, detail string) StateChange {
	return StateChange{
		Kind:      kind,
		SessionID: sessionID,
		TurnUUID:  turnUUID,
		Detail:    detail,
		Timestamp: time.Now(),
	}
}
