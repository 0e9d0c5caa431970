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
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/samanthaos/samantha-hub/internal/logging"
)

// EspeakSynthesizer is the lower-fidelity local fallback. It shells out to
// espeak-ng, so it works offline with no model downloads.
type EspeakSynthesizer struct {
	binary  string
	voice   string
	timeout time.Duration
}

// NewEspeakSynthesizer creates the local fallback synthesizer. The binary is
// looked up eagerly so a missing espeak-ng install fails at startup, not
// mid-conversation.
func NewEspeakSynthesizer(voice string) (*EspeakSynthesizer, error) {
	binary, err := exec.LookPath("espeak-ng")
	if err != nil {
		return nil, fmt.Errorf("espeak-ng not found in PATH: %w", err)
	}
	if voice == "" {
		voice = "en-us+f3"
	}
	return &EspeakSynthesizer{
		binary:  binary,
		voice:   voice,
		timeout: 30 * time.Second,
	}, nil
}

// Synthesize renders text to WAV via an espeak-ng subprocess.
func (e *EspeakSynthesizer) Synthesize(text string, options *Options) (*Result, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	voice := e.voice
	if options != nil && options.Voice != "" {
		voice = options.Voice
	}

	tmp, err := os.CreateTemp("", "samantha-espeak-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binary,
		"-v", voice,
		"-s", "160",
		"-p", "65",
		"-a", "150",
		"-w", tmpPath,
		text,
	)

	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("espeak-ng failed: %w - %s", err, string(output))
	}

	wav, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read espeak-ng output: %w", err)
	}

	logging.LogTTSOperation("espeak_fallback_complete")

	return &Result{
		Audio:       bytes.NewReader(wav),
		ContentType: "audio/wav",
		Length:      int64(len(wav)),
	}, nil
}

// GetAvailableVoices returns only the configured voice; enumerating espeak-ng
// variants is not worth a subprocess call.
func (e *EspeakSynthesizer) GetAvailableVoices() ([]string, error) {
	return []string{e.voice}, nil
}

// Close cleans up resources
func (e *EspeakSynthesizer) Close() error {
	return nil
}
