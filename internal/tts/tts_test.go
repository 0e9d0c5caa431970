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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samanthaos/samantha-hub/internal/config"
	"github.com/samanthaos/samantha-hub/internal/events"
)

func newVoiceServer(t *testing.T, audio []byte, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio/voices":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string][]string{
				"voices": {"af_bella", "af_sky"},
			})
		case "/audio/speech":
			var req speechRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.NotEmpty(t, req.Input)

			if status != http.StatusOK {
				w.WriteHeader(status)
				return
			}
			w.Header().Set("Content-Type", "audio/wav")
			_, _ = w.Write(audio)
		default:
			http.NotFound(w, r)
		}
	}))
}

func testTTSConfig(url string) config.TTSConfig {
	return config.TTSConfig{
		URL:            url,
		Voice:          "af_bella",
		Speed:          1.0,
		ResponseFormat: "wav",
		MaxConcurrent:  4,
		Timeout:        5 * time.Second,
	}
}

func TestRemoteClientSynthesize(t *testing.T) {
	audio := []byte("RIFF....WAVEfake")
	server := newVoiceServer(t, audio, http.StatusOK)
	defer server.Close()

	client, err := NewRemoteClient(testTTSConfig(server.URL))
	require.NoError(t, err)
	defer client.Close()

	result, err := client.Synthesize("Hello there", nil)
	require.NoError(t, err)
	defer result.Cleanup()

	got, err := io.ReadAll(result.Audio)
	require.NoError(t, err)
	assert.Equal(t, audio, got)
	assert.Equal(t, "audio/wav", result.ContentType)
}

func TestRemoteClientEmptyText(t *testing.T) {
	server := newVoiceServer(t, nil, http.StatusOK)
	defer server.Close()

	client, err := NewRemoteClient(testTTSConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Synthesize("", nil)
	assert.Error(t, err)
}

func TestRemoteClientServiceError(t *testing.T) {
	server := newVoiceServer(t, nil, http.StatusInternalServerError)
	defer server.Close()

	client, err := NewRemoteClient(testTTSConfig(server.URL))
	require.NoError(t, err)

	_, err = client.Synthesize("hello", nil)
	assert.Error(t, err)
}

func TestRemoteClientVoices(t *testing.T) {
	server := newVoiceServer(t, nil, http.StatusOK)
	defer server.Close()

	client, err := NewRemoteClient(testTTSConfig(server.URL))
	require.NoError(t, err)

	voices, err := client.GetAvailableVoices()
	require.NoError(t, err)
	assert.Equal(t, []string{"af_bella", "af_sky"}, voices)
}

func TestRemoteClientUnreachable(t *testing.T) {
	cfg := testTTSConfig("http://127.0.0.1:1")
	cfg.Timeout = time.Second

	_, err := NewRemoteClient(cfg)
	assert.Error(t, err)
}

// fakeSynth returns a canned result or a canned error.
type fakeSynth struct {
	result *Result
	err    error
	calls  int
}

func (f *fakeSynth) Synthesize(text string, options *Options) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSynth) GetAvailableVoices() ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []string{"fake"}, nil
}

func (f *fakeSynth) Close() error { return nil }

func TestFallbackUsesPrimaryFirst(t *testing.T) {
	primary := &fakeSynth{result: &Result{Audio: bytes.NewReader([]byte("primary"))}}
	backup := &fakeSynth{result: &Result{Audio: bytes.NewReader([]byte("backup"))}}

	f := NewFallback(primary, backup)

	result, err := f.Synthesize("hi", nil)
	require.NoError(t, err)

	got, _ := io.ReadAll(result.Audio)
	assert.Equal(t, "primary", string(got))
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, backup.calls)
}

func TestFallbackDegradesToBackup(t *testing.T) {
	primary := &fakeSynth{err: fmt.Errorf("connection refused")}
	backup := &fakeSynth{result: &Result{Audio: bytes.NewReader([]byte("backup"))}}

	f := NewFallback(primary, backup)

	result, err := f.Synthesize("hi", nil)
	require.NoError(t, err)

	got, _ := io.ReadAll(result.Audio)
	assert.Equal(t, "backup", string(got))
}

func TestFallbackBothFail(t *testing.T) {
	primary := &fakeSynth{err: fmt.Errorf("connection refused")}
	backup := &fakeSynth{err: fmt.Errorf("espeak-ng missing")}

	f := NewFallback(primary, backup)

	_, err := f.Synthesize("hi", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, events.ErrSynthesisFailed))
}

func TestCommandPlayerPlays(t *testing.T) {
	player := NewCommandPlayer("cat")

	err := player.Play(context.Background(), &Result{
		Audio: bytes.NewReader([]byte("audio payload")),
	})
	assert.NoError(t, err)
}

func TestCommandPlayerOwnsCleanup(t *testing.T) {
	player := NewCommandPlayer("cat")

	var cleanups int
	result := &Result{
		Audio:   bytes.NewReader([]byte("audio payload")),
		Cleanup: func() { cleanups++ },
	}

	require.NoError(t, player.Play(context.Background(), result))
	assert.Equal(t, 1, cleanups, "Play runs Cleanup exactly once")
}

func TestCommandPlayerMissingPayload(t *testing.T) {
	player := NewCommandPlayer("cat")

	err := player.Play(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, events.ErrPlaybackFailed))
}

func TestCommandPlayerBadBinary(t *testing.T) {
	player := NewCommandPlayer("definitely-not-a-player")

	err := player.Play(context.Background(), &Result{
		Audio: bytes.NewReader([]byte("x")),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, events.ErrPlaybackFailed))
}

func TestCommandPlayerInterrupt(t *testing.T) {
	// sleep never reads stdin, so playback only ends via the interrupt.
	player := NewCommandPlayer("sleep", "10")

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		done <- player.Play(context.Background(), &Result{
			Audio: bytes.NewReader([]byte("x")),
		})
	}()

	time.Sleep(100 * time.Millisecond)
	player.Interrupt()

	select {
	case err := <-done:
		assert.NoError(t, err, "interrupt is not a playback failure")
		assert.Less(t, time.Since(start), 5*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not stop after interrupt")
	}
}
