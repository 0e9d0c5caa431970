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

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samanthaos/samantha-hub/internal/audio"
	"github.com/samanthaos/samantha-hub/internal/bridge"
	"github.com/samanthaos/samantha-hub/internal/config"
	"github.com/samanthaos/samantha-hub/internal/events"
	"github.com/samanthaos/samantha-hub/internal/persona"
	"github.com/samanthaos/samantha-hub/internal/stt"
	"github.com/samanthaos/samantha-hub/internal/tts"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{AutoListen: true},
		TTS: config.TTSConfig{
			Voice:          "af_bella",
			Speed:          1.0,
			ResponseFormat: "wav",
		},
		Persona: config.PersonaConfig{
			Name:        "Samantha",
			MaxReplyLen: 600,
			WarmthSeed:  7,
		},
		Bridge: config.BridgeConfig{Model: "kilo/openrouter/free"},
	}
}

type fakeCapture struct {
	utterances chan audio.Utterance
	states     chan audio.State
	startErr   error
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{
		utterances: make(chan audio.Utterance, 4),
		states:     make(chan audio.State, 16),
	}
}

func (f *fakeCapture) Start(ctx context.Context) error    { return f.startErr }
func (f *fakeCapture) Stop() error                        { return nil }
func (f *fakeCapture) Utterances() <-chan audio.Utterance { return f.utterances }
func (f *fakeCapture) StateChanges() <-chan audio.State   { return f.states }

func testUtterance() audio.Utterance {
	return audio.Utterance{
		Samples:    make([]float32, 1600),
		SampleRate: 16000,
	}
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(audioData []float32, sampleRate int) (*stt.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stt.Result{Text: f.text, Confidence: 0.9}, nil
}

func (f *fakeTranscriber) Close() error { return nil }

type scriptedChatter struct {
	mu           sync.Mutex
	calls        int
	blockFirst   bool
	firstStarted chan struct{}
	reply        string
	err          error
}

func newScriptedChatter(reply string) *scriptedChatter {
	return &scriptedChatter{reply: reply, firstStarted: make(chan struct{})}
}

func (c *scriptedChatter) Chat(ctx context.Context, messages []bridge.Message) (string, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.mu.Unlock()

	if c.blockFirst && n == 1 {
		close(c.firstStarted)
		<-ctx.Done()
		return "", ctx.Err()
	}
	return c.reply, c.err
}

func (c *scriptedChatter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeSynthesizer struct {
	err error

	cleanups atomic.Int32
}

func (f *fakeSynthesizer) Synthesize(text string, options *tts.Options) (*tts.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tts.Result{
		Audio:       strings.NewReader("audio-bytes"),
		ContentType: "audio/wav",
		Length:      11,
		Cleanup:     func() { f.cleanups.Add(1) },
	}, nil
}

func (f *fakeSynthesizer) GetAvailableVoices() ([]string, error) { return []string{"af_bella"}, nil }
func (f *fakeSynthesizer) Close() error                          { return nil }

type fakePlayer struct {
	block bool

	mu          sync.Mutex
	plays       int
	interrupted bool
	interruptCh chan struct{}
}

func newFakePlayer(block bool) *fakePlayer {
	return &fakePlayer{block: block, interruptCh: make(chan struct{})}
}

func (p *fakePlayer) Play(ctx context.Context, result *tts.Result) error {
	p.mu.Lock()
	p.plays++
	p.mu.Unlock()

	// Play owns the payload, like the real player.
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	if p.block {
		select {
		case <-p.interruptCh:
		case <-ctx.Done():
		}
	}
	return nil
}

func (p *fakePlayer) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.interrupted {
		p.interrupted = true
		close(p.interruptCh)
	}
}

func (p *fakePlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

func (p *fakePlayer) wasInterrupted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interrupted
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []*events.TurnEvent
}

func (r *fakeRecorder) RecordTurnEvent(ctx context.Context, event *events.TurnEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeRecorder) recorded() []*events.TurnEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*events.TurnEvent, len(r.events))
	copy(out, r.events)
	return out
}

func awaitKind(t *testing.T, ch <-chan events.StateChange, kind events.StateKind) events.StateChange {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case change := <-ch:
			if change.Kind == kind {
				return change
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state change %q", kind)
		}
	}
}

func TestEndToEndTimeQuestion(t *testing.T) {
	capture := newFakeCapture()
	chatter := newScriptedChatter("It's 5:30 PM. Is there something you'd like to do?")
	player := newFakePlayer(false)
	recorder := &fakeRecorder{}
	synth := &fakeSynthesizer{}
	cfg := testConfig()

	o := New(cfg, capture, &fakeTranscriber{text: "What time is it?"},
		synth, player, persona.NewProcessor(cfg.Persona),
		chatter, nil, recorder)
	changes := o.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	awaitKind(t, changes, events.StateListeningStarted)
	capture.utterances <- testUtterance()

	awaitKind(t, changes, events.StateUtteranceFinalized)
	ready := awaitKind(t, changes, events.StateModelResponseReady)
	assert.Equal(t, "It's 5:30 PM. Is there something you'd like to do?", ready.Detail,
		"reply already within budget and free of markup stays unchanged")

	awaitKind(t, changes, events.StateSpeakingStarted)
	awaitKind(t, changes, events.StateSpeakingFinished)

	rearm := awaitKind(t, changes, events.StateListeningStarted)
	assert.Equal(t, "auto-listen", rearm.Detail)

	assert.Equal(t, 1, player.playCount())
	assert.Equal(t, 1, chatter.callCount())
	assert.Equal(t, int32(1), synth.cleanups.Load(),
		"audio payload is released exactly once, by the player")

	turns := o.Session().Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "What time is it?", turns[0].Text)
	assert.Equal(t, "assistant", turns[1].Role)
	assert.Equal(t, "It's 5:30 PM. Is there something you'd like to do?", turns[1].Text)

	require.Eventually(t, func() bool { return len(recorder.recorded()) == 1 },
		time.Second, 10*time.Millisecond)
	event := recorder.recorded()[0]
	assert.True(t, event.Success)
	assert.Equal(t, "What time is it?", event.Transcription)
	assert.False(t, event.BargeIn)
}

func TestBargeInInterruptsPlayback(t *testing.T) {
	capture := newFakeCapture()
	chatter := newScriptedChatter("Let me tell you a very long story.")
	player := newFakePlayer(true)
	recorder := &fakeRecorder{}
	cfg := testConfig()

	o := New(cfg, capture, &fakeTranscriber{text: "tell me a story"},
		&fakeSynthesizer{}, player, persona.NewProcessor(cfg.Persona),
		chatter, nil, recorder)
	changes := o.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	awaitKind(t, changes, events.StateListeningStarted)
	capture.utterances <- testUtterance()
	awaitKind(t, changes, events.StateSpeakingStarted)

	// User starts talking over the assistant.
	capture.states <- audio.StateSpeaking

	awaitKind(t, changes, events.StateSpeakingFinished)
	assert.True(t, player.wasInterrupted(), "playback must stop when speech is detected")

	require.Eventually(t, func() bool { return o.State() == Transcribing },
		time.Second, time.Millisecond,
		"barge-in transitions straight to Transcribing")

	// The interrupting utterance is handled as a normal turn.
	capture.utterances <- testUtterance()
	awaitKind(t, changes, events.StateSpeakingFinished)

	require.Eventually(t, func() bool { return len(recorder.recorded()) == 2 },
		time.Second, 10*time.Millisecond)
	assert.False(t, recorder.recorded()[0].BargeIn)
	assert.True(t, recorder.recorded()[1].BargeIn)
}

func TestPendingReplaceAbandonsInFlightTurn(t *testing.T) {
	capture := newFakeCapture()
	chatter := newScriptedChatter("Good question. Where were we before that?")
	chatter.blockFirst = true
	player := newFakePlayer(false)
	recorder := &fakeRecorder{}
	cfg := testConfig()

	o := New(cfg, capture, &fakeTranscriber{text: "first question"},
		&fakeSynthesizer{}, player, persona.NewProcessor(cfg.Persona),
		chatter, nil, recorder)
	changes := o.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	awaitKind(t, changes, events.StateListeningStarted)
	capture.utterances <- testUtterance()

	// Wait until the first bridge call is in flight, then keep talking.
	select {
	case <-chatter.firstStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("first bridge call never started")
	}
	capture.states <- audio.StateSpeaking
	capture.utterances <- testUtterance()

	ready := awaitKind(t, changes, events.StateModelResponseReady)
	assert.Equal(t, "Good question. Where were we before that?", ready.Detail,
		"abandoned turn must not produce a response")

	require.Eventually(t, func() bool { return len(recorder.recorded()) == 2 },
		time.Second, 10*time.Millisecond)
	first := recorder.recorded()[0]
	assert.False(t, first.Success)
	assert.NotEmpty(t, first.ErrorMessage)
	assert.True(t, recorder.recorded()[1].Success)
	assert.Equal(t, 1, player.playCount(), "only the replacing turn is spoken")
}

func TestTranscriptionFailureSkipsBridge(t *testing.T) {
	capture := newFakeCapture()
	chatter := newScriptedChatter("should never be called")
	recorder := &fakeRecorder{}
	cfg := testConfig()

	o := New(cfg, capture,
		&fakeTranscriber{err: fmt.Errorf("%w: no speech", events.ErrTranscriptionFailed)},
		&fakeSynthesizer{}, newFakePlayer(false), persona.NewProcessor(cfg.Persona),
		chatter, nil, recorder)
	changes := o.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	awaitKind(t, changes, events.StateListeningStarted)
	capture.utterances <- testUtterance()

	// The loop recovers and re-arms without a model call.
	rearm := awaitKind(t, changes, events.StateListeningStarted)
	assert.Equal(t, "auto-listen", rearm.Detail)
	assert.Equal(t, 0, chatter.callCount())
	assert.Equal(t, 0, o.Session().Len())

	require.Eventually(t, func() bool { return len(recorder.recorded()) == 1 },
		time.Second, 10*time.Millisecond)
	assert.False(t, recorder.recorded()[0].Success)
}

func TestModelFailureSpeaksFallback(t *testing.T) {
	capture := newFakeCapture()
	chatter := newScriptedChatter("")
	chatter.err = fmt.Errorf("%w: bridge exploded", events.ErrModelExecutionFailed)
	player := newFakePlayer(false)
	cfg := testConfig()

	o := New(cfg, capture, &fakeTranscriber{text: "hello there friend"},
		&fakeSynthesizer{}, player, persona.NewProcessor(cfg.Persona),
		chatter, nil, nil)
	changes := o.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	awaitKind(t, changes, events.StateListeningStarted)
	capture.utterances <- testUtterance()

	awaitKind(t, changes, events.StateError)
	ready := awaitKind(t, changes, events.StateModelResponseReady)
	assert.Equal(t, modelFallbackReply, ready.Detail)

	awaitKind(t, changes, events.StateSpeakingFinished)
	assert.Equal(t, 1, player.playCount(), "the fallback is spoken, not silent")
}

func TestSynthesisFailureDegradesToText(t *testing.T) {
	capture := newFakeCapture()
	chatter := newScriptedChatter("I think nobody will hear this reply out loud.")
	player := newFakePlayer(false)
	cfg := testConfig()

	o := New(cfg, capture, &fakeTranscriber{text: "say something"},
		&fakeSynthesizer{err: fmt.Errorf("%w: voice service down", events.ErrSynthesisFailed)},
		player, persona.NewProcessor(cfg.Persona), chatter, nil, nil)
	changes := o.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	awaitKind(t, changes, events.StateListeningStarted)
	capture.utterances <- testUtterance()

	ready := awaitKind(t, changes, events.StateModelResponseReady)
	assert.Equal(t, "I think nobody will hear this reply out loud.", ready.Detail)
	awaitKind(t, changes, events.StateError)

	// The turn still completes and capture re-arms.
	rearm := awaitKind(t, changes, events.StateListeningStarted)
	assert.Equal(t, "auto-listen", rearm.Detail)
	assert.Equal(t, 0, player.playCount())

	turns := o.Session().Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "I think nobody will hear this reply out loud.", turns[1].Text)
}

func TestHandleTextLocalIntent(t *testing.T) {
	chatter := newScriptedChatter("model answer")
	cfg := testConfig()
	cfg.Persona.LocalIntents = true

	o := New(cfg, nil, nil, &fakeSynthesizer{}, newFakePlayer(false),
		persona.NewProcessor(cfg.Persona), chatter, nil, nil)
	o.now = func() time.Time {
		return time.Date(2025, time.March, 3, 17, 30, 0, 0, time.UTC)
	}

	reply, err := o.HandleText(context.Background(), "what time is it")
	require.NoError(t, err)
	assert.Equal(t, "It's 5:30 PM. Is there something you'd like to do?", reply)
	assert.Equal(t, 0, chatter.callCount(), "local intents never reach the bridge")

	turns := o.Session().Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, reply, turns[1].Text)
}

func TestHandleTextBridgePath(t *testing.T) {
	chatter := newScriptedChatter("Hello. How has your day been?")
	cfg := testConfig()

	o := New(cfg, nil, nil, &fakeSynthesizer{}, newFakePlayer(false),
		persona.NewProcessor(cfg.Persona), chatter, nil, nil)

	reply, err := o.HandleText(context.Background(), "tell me about your day")
	require.NoError(t, err)
	assert.Equal(t, "Hello. How has your day been?", reply)
	assert.Equal(t, 1, chatter.callCount())

	t.Run("empty input is rejected", func(t *testing.T) {
		_, err := o.HandleText(context.Background(), "   ")
		assert.ErrorIs(t, err, events.ErrTranscriptionFailed)
	})

	t.Run("bridge error propagates", func(t *testing.T) {
		chatter.err = fmt.Errorf("%w: gone", events.ErrBridgeUnavailable)
		_, err := o.HandleText(context.Background(), "anyone home")
		assert.ErrorIs(t, err, events.ErrBridgeUnavailable)
	})
}

// echoChatter replies with the last user message so interleaved turns
// would be visible in the transcript.
type echoChatter struct{}

func (echoChatter) Chat(ctx context.Context, messages []bridge.Message) (string, error) {
	last := messages[len(messages)-1].Content
	return "You said " + last + ", didn't you?", nil
}

func TestHandleTextSerializesConcurrentTurns(t *testing.T) {
	cfg := testConfig()
	o := New(cfg, nil, nil, &fakeSynthesizer{}, newFakePlayer(false),
		persona.NewProcessor(cfg.Persona), echoChatter{}, nil, nil)

	const callers = 4
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			input := fmt.Sprintf("message %d", n)
			reply, err := o.HandleText(context.Background(), input)
			assert.NoError(t, err)
			assert.Equal(t, "You said "+input+", didn't you?", reply)
		}(i)
	}
	wg.Wait()

	// Turns never interleave: every user turn is directly followed by its
	// own assistant turn.
	turns := o.Session().Turns()
	require.Len(t, turns, 2*callers)
	for i := 0; i < len(turns); i += 2 {
		require.Equal(t, "user", turns[i].Role)
		require.Equal(t, "assistant", turns[i+1].Role)
		assert.Equal(t, "You said "+turns[i].Text+", didn't you?", turns[i+1].Text)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	cfg := testConfig()
	o := New(cfg, nil, nil, &fakeSynthesizer{}, newFakePlayer(false),
		persona.NewProcessor(cfg.Persona), newScriptedChatter("ok?"), nil, nil)

	kept := o.Subscribe()
	dropped := o.Subscribe()
	o.Unsubscribe(dropped)

	o.emit(events.StateListeningStarted, "", "")

	select {
	case change := <-kept:
		assert.Equal(t, events.StateListeningStarted, change.Kind)
	default:
		t.Fatal("remaining subscriber must still receive events")
	}
	select {
	case <-dropped:
		t.Fatal("unsubscribed channel must not receive events")
	default:
	}

	o.mu.Lock()
	remaining := len(o.subscribers)
	o.mu.Unlock()
	assert.Equal(t, 1, remaining, "connect/disconnect cycles must not accumulate subscribers")
}

func TestRunWithoutCapture(t *testing.T) {
	cfg := testConfig()
	o := New(cfg, nil, nil, &fakeSynthesizer{}, newFakePlayer(false),
		persona.NewProcessor(cfg.Persona), newScriptedChatter("ok"), nil, nil)

	err := o.Run(context.Background())
	assert.ErrorIs(t, err, events.ErrCaptureUnavailable)
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		Idle:           "idle",
		Listening:      "listening",
		Transcribing:   "transcribing",
		AwaitingModel:  "awaiting-model",
		PostProcessing: "post-processing",
		Synthesizing:   "synthesizing",
		Speaking:       "speaking",
		State(99):      "unknown",
	}
	for state, want := range states {
		assert.Equal(t, want, state.String())
	}
}
