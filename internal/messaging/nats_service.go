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

package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/samanthaos/samantha-hub/internal/config"
	"github.com/samanthaos/samantha-hub/internal/events"
	"github.com/samanthaos/samantha-hub/internal/logging"
)

// NATS subjects for conversation events. External UIs subscribe to these
// to follow the conversation without linking against the hub.
const (
	SubjectConversationState = "samantha.conversation.state"
	SubjectConversationTurns = "samantha.conversation.turns"
)

// NATSService publishes conversation state changes and completed turns to
// NATS. The hub runs fine without it; every method tolerates a nil or
// disconnected service.
type NATSService struct {
	conn *nats.Conn
	cfg  config.NATSConfig
}

// NewNATSService creates an unconnected NATS service.
func NewNATSService(cfg config.NATSConfig) *NATSService {
	return &NATSService{cfg: cfg}
}

// Connect establishes the connection to the NATS server.
func (ns *NATSService) Connect() error {
	logging.LogNATSEvent("", "connecting", zap.String("url", ns.cfg.URL))

	opts := []nats.Option{
		nats.Name("samantha-hub"),
		nats.ReconnectWait(ns.cfg.ReconnectWait),
		nats.MaxReconnects(ns.cfg.MaxReconnect),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.LogWarn("⚠️  NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent("", "reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent("", "closed")
		}),
	}

	conn, err := nats.Connect(ns.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	ns.conn = conn
	logging.LogNATSEvent("", "connected", zap.String("url", conn.ConnectedUrl()))
	return nil
}

// PublishStateChange publishes an orchestrator state transition.
func (ns *NATSService) PublishStateChange(change events.StateChange) error {
	if ns.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}

	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal state change: %w", err)
	}

	if err := ns.conn.Publish(SubjectConversationState, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", SubjectConversationState, err)
	}

	logging.LogNATSEvent(SubjectConversationState, "published",
		zap.String("kind", string(change.Kind)),
		zap.String("session_id", change.SessionID))
	return nil
}

// PublishTurnEvent publishes a completed conversation turn.
func (ns *NATSService) PublishTurnEvent(event *events.TurnEvent) error {
	if ns.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal turn event: %w", err)
	}

	if err := ns.conn.Publish(SubjectConversationTurns, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", SubjectConversationTurns, err)
	}

	logging.LogNATSEvent(SubjectConversationTurns, "published",
		zap.String("uuid", event.GetUUID()),
		zap.Bool("success", event.Success))
	return nil
}

// SubscribeToStateChanges subscribes to orchestrator state transitions.
func (ns *NATSService) SubscribeToStateChanges(handler func(events.StateChange)) (*nats.Subscription, error) {
	if ns.conn == nil {
		return nil, fmt.Errorf("NATS connection not established")
	}

	return ns.conn.Subscribe(SubjectConversationState, func(msg *nats.Msg) {
		var change events.StateChange
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			logging.LogError(err, "❌ Error unmarshaling state change")
			return
		}
		handler(change)
	})
}

// SubscribeToTurnEvents subscribes to completed conversation turns.
func (ns *NATSService) SubscribeToTurnEvents(handler func(*events.TurnEvent)) (*nats.Subscription, error) {
	if ns.conn == nil {
		return nil, fmt.Errorf("NATS connection not established")
	}

	return ns.conn.Subscribe(SubjectConversationTurns, func(msg *nats.Msg) {
		var event events.TurnEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logging.LogError(err, "❌ Error unmarshaling turn event")
			return
		}
		handler(&event)
	})
}

// Close closes the NATS connection.
func (ns *NATSService) Close() {
	if ns.conn != nil {
		ns.conn.Close()
	}
}

// IsConnected returns true if connected to NATS.
func (ns *NATSService) IsConnected() bool {
	return ns.conn != nil && ns.conn.IsConnected()
}

// GetStats returns connection statistics.
func (ns *NATSService) GetStats() nats.Statistics {
	if ns.conn != nil {
		return ns.conn.Stats()
	}
	return nats.Statistics{}
}
