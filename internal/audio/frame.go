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
	"math"
	"time"
)

// Frame is one fixed-duration block of mono PCM samples with its measured
// energy. Frames are ephemeral: produced by the capture loop, consumed by the
// boundary detector, never retained past transcription.
type Frame struct {
	Samples []float32
	Energy  float64
}

// NewFrame computes the frame energy once at construction so the detector
// never re-scans sample data.
func NewFrame(samples []float32) Frame {
	return Frame{Samples: samples, Energy: RMS(samples)}
}

// Utterance is one bounded span of captured speech, from armed-start to
// finalized-end. Trailing silence is excluded.
type Utterance struct {
	Samples    []float32
	SampleRate int
	BargeIn    bool
}

// Duration returns the utterance length in time.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(u.Samples)) / float64(u.SampleRate) * float64(time.Second))
}

// RMS computes the root-mean-square energy of a sample block.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var s float64
	for _, x := range samples {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(samples)))
}
