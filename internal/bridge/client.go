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

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/samanthaos/samantha-hub/internal/config"
	"github.com/samanthaos/samantha-hub/internal/events"
)

// Client is the hub-side view of the bridge: one chat call per turn over
// loopback HTTP.
type Client struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float32
	httpClient  *http.Client
}

// NewClient builds a bridge client from configuration.
func NewClient(cfg config.BridgeConfig) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.URL, "/"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Ready probes the models endpoint.
func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", events.ErrBridgeUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: models endpoint returned %d", events.ErrBridgeUnavailable, resp.StatusCode)
	}
	return nil
}

// Chat sends the message history and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(ChatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", events.ErrBridgeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("%w: %s (%s)", events.ErrModelExecutionFailed,
				errResp.Error.Message, errResp.Error.Type)
		}
		return "", fmt.Errorf("%w: bridge returned status %d", events.ErrModelExecutionFailed, resp.StatusCode)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: invalid response body: %v", events.ErrModelExecutionFailed, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", events.ErrModelExecutionFailed)
	}

	return chatResp.Choices[0].Message.Content, nil
}
