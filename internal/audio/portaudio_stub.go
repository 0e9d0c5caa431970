//go:build !portaudio

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

package audio

import (
	"fmt"

	"github.com/samanthaos/samantha-hub/internal/events"
)

// NewInputDevice stub when microphone capture is disabled. The hub still runs
// on the text-input path.
func NewInputDevice() (Device, error) {
	return nil, fmt.Errorf("%w: microphone capture disabled (build with -tags portaudio to enable)",
		events.ErrCaptureUnavailable)
}
