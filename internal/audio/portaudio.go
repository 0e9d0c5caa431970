//go:build portaudio

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

	"github.com/gordonklaus/portaudio"
)

// PortAudioDevice reads mono float32 frames from the default input device.
type PortAudioDevice struct {
	stream *portaudio.Stream
	buf    []float32
}

// NewInputDevice initializes PortAudio and returns the default input device.
func NewInputDevice() (Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &PortAudioDevice{}, nil
}

// Start opens the default input stream for mono capture.
func (d *PortAudioDevice) Start(sampleRate, frameSize int) error {
	d.buf = make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), frameSize, d.buf)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	d.stream = stream
	return nil
}

// ReadFrame blocks until the next frame is available.
func (d *PortAudioDevice) ReadFrame(buf []float32) error {
	if err := d.stream.Read(); err != nil {
		return fmt.Errorf("failed to read input stream: %w", err)
	}
	copy(buf, d.buf)
	return nil
}

// Stop closes the stream and terminates PortAudio.
func (d *PortAudioDevice) Stop() error {
	var err error
	if d.stream != nil {
		if stopErr := d.stream.Stop(); stopErr != nil {
			err = stopErr
		}
		d.stream.Close()
		d.stream = nil
	}
	portaudio.Terminate()
	return err
}
