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

package tts

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/samanthaos/samantha-hub/internal/events"
	"github.com/samanthaos/samantha-hub/internal/logging"
)

// Fallback chains a primary synthesizer with a lower-fidelity local one.
// When the primary fails or times out the fallback takes over; when both
// fail the turn degrades to text-only output.
type Fallback struct {
	primary  Synthesizer
	fallback Synthesizer
}

// NewFallback wraps primary with a fallback path. Either may be nil.
func NewFallback(primary, fallback Synthesizer) *Fallback {
	return &Fallback{primary: primary, fallback: fallback}
}

// Synthesize tries the primary first, then the fallback.
func (f *Fallback) Synthesize(text string, options *Options) (*Result, error) {
	var primaryErr error

	if f.primary != nil {
		result, err := f.primary.Synthesize(text, options)
		if err == nil {
			return result, nil
		}
		primaryErr = err
		logging.LogWarn("primary synthesis failed, trying fallback", zap.Error(err))
	}

	if f.fallback != nil {
		result, err := f.fallback.Synthesize(text, options)
		if err == nil {
			return result, nil
		}
		if primaryErr != nil {
			return nil, fmt.Errorf("%w: primary: %v; fallback: %v", events.ErrSynthesisFailed, primaryErr, err)
		}
		return nil, fmt.Errorf("%w: %v", events.ErrSynthesisFailed, err)
	}

	if primaryErr != nil {
		return nil, fmt.Errorf("%w: %v", events.ErrSynthesisFailed, primaryErr)
	}
	return nil, fmt.Errorf("%w: no synthesizer configured", events.ErrSynthesisFailed)
}

// GetAvailableVoices returns the primary's voices, falling back when the
// primary cannot answer.
func (f *Fallback) GetAvailableVoices() ([]string, error) {
	if f.primary != nil {
		if voices, err := f.primary.GetAvailableVoices(); err == nil {
			return voices, nil
		}
	}
	if f.fallback != nil {
		return f.fallback.GetAvailableVoices()
	}
	return nil, fmt.Errorf("no synthesizer configured")
}

// Close closes both paths.
func (f *Fallback) Close() error {
	var err error
	if f.primary != nil {
		err = f.primary.Close()
	}
	if f.fallback != nil {
		if closeErr := f.fallback.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
