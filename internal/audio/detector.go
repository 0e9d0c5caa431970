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

import "time"

// State is the capture boundary detector's position in the utterance
// lifecycle.
type State int

const (
	// StateIdle means the detector is open and waiting for energy to exceed
	// the threshold.
	StateIdle State = iota

	// StateArmed means energy crossed the threshold but the debounce run is
	// not yet satisfied.
	StateArmed

	// StateSpeaking means a confirmed utterance is in progress.
	StateSpeaking

	// StateTrailingSilence means energy dropped below the threshold and the
	// trailing-silence timer is running.
	StateTrailingSilence

	// StateFinalized is reported transiently when an utterance boundary is
	// declared; the detector immediately re-arms to StateIdle.
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateSpeaking:
		return "speaking"
	case StateTrailingSilence:
		return "trailing-silence"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// DetectorConfig tunes the boundary detector. Durations are measured in frame
// counts derived from FrameDuration, so the detector is deterministic under
// test and independent of wall-clock scheduling.
type DetectorConfig struct {
	FrameDuration   time.Duration
	EnergyThreshold float64
	MinSpeechFrames int
	TrailingSilence time.Duration
	MaxUtterance    time.Duration
}

// BoundaryDetector delimits utterance boundaries from a stream of energy
// frames. It performs no transcription; its only output is the accumulated
// speech samples when a boundary is declared.
//
// The delivered utterance spans armed-start to the start of the trailing
// silence window. A dip below threshold shorter than the trailing-silence
// duration is treated as a mid-utterance pause: the dip frames stay in the
// utterance and the timer resets.
type BoundaryDetector struct {
	cfg DetectorConfig

	state         State
	speech        []float32 // confirmed utterance samples
	tail          []float32 // frames observed during trailing silence
	speechRun     int       // consecutive above-threshold frames while armed
	silenceFrames int       // frames spent in trailing silence
	speechFrames  int       // frames spent speaking, for the max-utterance cap
}

// NewBoundaryDetector validates nothing; callers pass a config produced by
// the config package, which already enforces positive values.
func NewBoundaryDetector(cfg DetectorConfig) *BoundaryDetector {
	return &BoundaryDetector{cfg: cfg}
}

// State returns the detector's current position.
func (d *BoundaryDetector) State() State {
	return d.state
}

// Reset discards any partial utterance and returns to idle.
func (d *BoundaryDetector) Reset() {
	d.state = StateIdle
	d.speech = nil
	d.tail = nil
	d.speechRun = 0
	d.silenceFrames = 0
	d.speechFrames = 0
}

// Feed advances the state machine by one frame. When an utterance boundary is
// declared it returns the accumulated samples and true; the detector re-arms
// itself for the next utterance. Otherwise it returns nil and false.
func (d *BoundaryDetector) Feed(frame Frame) ([]float32, bool) {
	loud := frame.Energy >= d.cfg.EnergyThreshold

	switch d.state {
	case StateIdle:
		if loud {
			d.state = StateArmed
			d.speechRun = 1
			d.speech = append(d.speech, frame.Samples...)
			// A debounce of one frame is satisfied immediately.
			if d.speechRun >= d.cfg.MinSpeechFrames {
				d.state = StateSpeaking
				d.speechFrames = d.speechRun
			}
		}

	case StateArmed:
		if !loud {
			// Transient blip, not speech.
			d.Reset()
			return nil, false
		}
		d.speechRun++
		d.speech = append(d.speech, frame.Samples...)
		if d.speechRun >= d.cfg.MinSpeechFrames {
			d.state = StateSpeaking
			d.speechFrames = d.speechRun
		}

	case StateSpeaking:
		if loud {
			d.speech = append(d.speech, frame.Samples...)
			d.speechFrames++
			if d.maxUtteranceReached() {
				return d.finalize()
			}
			return nil, false
		}
		d.state = StateTrailingSilence
		d.silenceFrames = 1
		d.tail = append(d.tail[:0], frame.Samples...)

	case StateTrailingSilence:
		if loud {
			// Speech resumed before the timer elapsed: the pause belongs to
			// the utterance and the timer resets.
			d.speech = append(d.speech, d.tail...)
			d.speech = append(d.speech, frame.Samples...)
			d.speechFrames += d.silenceFrames + 1
			d.tail = nil
			d.silenceFrames = 0
			d.state = StateSpeaking
			if d.maxUtteranceReached() {
				return d.finalize()
			}
			return nil, false
		}
		d.silenceFrames++
		d.tail = append(d.tail, frame.Samples...)
		if time.Duration(d.silenceFrames)*d.cfg.FrameDuration >= d.cfg.TrailingSilence {
			return d.finalize()
		}
	}

	return nil, false
}

func (d *BoundaryDetector) maxUtteranceReached() bool {
	if d.cfg.MaxUtterance <= 0 {
		return false
	}
	return time.Duration(d.speechFrames)*d.cfg.FrameDuration >= d.cfg.MaxUtterance
}

// finalize declares the utterance boundary at the start of trailing silence:
// the tail buffer is discarded, never delivered.
func (d *BoundaryDetector) finalize() ([]float32, bool) {
	utterance := d.speech
	d.state = StateFinalized
	d.Reset()
	return utterance, true
}
