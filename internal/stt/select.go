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

	"go.uber.org/zap"

	"github.com/samanthaos/samantha-hub/internal/config"
	"github.com/samanthaos/samantha-hub/internal/logging"
)

// NewFromConfig selects a transcription provider. The preferred provider is
// tried first; when it cannot start, the hub falls back down the
// whisper → rest → passthrough order rather than refusing to boot.
func NewFromConfig(cfg config.STTConfig) (Transcriber, error) {
	switch cfg.Provider {
	case "whisper":
		transcriber, err := NewWhisperTranscriber(cfg.WhisperModelPath, cfg.Language)
		if err == nil {
			return transcriber, nil
		}
		logging.LogWarn("whisper unavailable, falling back to REST STT", zap.Error(err))
		fallthrough

	case "rest":
		client, err := NewRESTClient(cfg.URL, cfg.Language, cfg.Timeout)
		if err == nil {
			return client, nil
		}
		logging.LogWarn("REST STT unavailable, falling back to pass-through", zap.Error(err))
		fallthrough

	case "passthrough":
		return NewPassthrough(), nil

	default:
		return nil, fmt.Errorf("unknown STT provider: %q", cfg.Provider)
	}
}
