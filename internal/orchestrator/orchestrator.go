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
	"time"

	"go.uber.org/zap"

	"github.com/samanthaos/samantha-hub/internal/audio"
	"github.com/samanthaos/samantha-hub/internal/bridge"
	"github.com/samanthaos/samantha-hub/internal/config"
	"github.com/samanthaos/samantha-hub/internal/events"
	"github.com/samanthaos/samantha-hub/internal/logging"
	"github.com/samanthaos/samantha-hub/internal/persona"
	"github.com/samanthaos/samantha-hub/internal/stt"
	"github.com/samanthaos/samantha-hub/internal/tts"
)

// State is the orchestrator's position in the conversation lifecycle.
type State int

const (
	Idle State = iota
	Listening
	Transcribing
	AwaitingModel
	PostProcessing
	Synthesizing
	Speaking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Transcribing:
		return "transcribing"
	case AwaitingModel:
		return "awaiting-model"
	case PostProcessing:
		return "post-processing"
	case Synthesizing:
		return "synthesizing"
	case Speaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Spoken when the bridge or model fails after retries are exhausted.
const modelFallbackReply = "I'm sorry, I'm having trouble connecting right now. Could you give me a moment and try again?"

// CaptureSource is the audio front end the orchestrator listens to.
// *audio.Capture implements it; tests substitute a scripted fake.
type CaptureSource interface {
	Start(ctx context.Context) error
	Stop() error
	Utterances() <-chan audio.Utterance
	StateChanges() <-chan audio.State
}

// Chatter sends conversation history to the model bridge and returns the
// assistant's reply. *bridge.Client implements it.
type Chatter interface {
	Chat(ctx context.Context, messages []bridge.Message) (string, error)
}

// StatePublisher forwards state changes to an external bus. Optional.
type StatePublisher interface {
	PublishStateChange(change events.StateChange) error
}

// TurnRecorder persists completed turn events. Optional.
type TurnRecorder interface {
	RecordTurnEvent(ctx context.Context, event *events.TurnEvent) error
}

// Orchestrator is the top-level conversation state machine. It sequences
// capture, transcription, the model bridge, post-processing, synthesis and
// playback for one conversation at a time.
type Orchestrator struct {
	cfg       *config.Config
	capture   CaptureSource
	stt       stt.Transcriber
	synth     tts.Synthesizer
	player    tts.Player
	processor *persona.Processor
	chat      Chatter
	publisher StatePublisher
	recorder  TurnRecorder

	session *Session
	model   string

	// turnMu serializes whole turns: a new Turn may only start once the
	// prior assistant response has completed or been abandoned, whether
	// the turns arrive from the voice loop or the chat endpoint.
	turnMu sync.Mutex

	mu          sync.Mutex
	state       State
	inFlight    context.CancelFunc
	bargeIn     bool
	subscribers []chan events.StateChange

	// now is swappable so local intent replies are testable.
	now func() time.Time
}

// New wires an orchestrator from its collaborators. capture may be nil,
// in which case only the text path is served. publisher and recorder may
// be nil; state changes still reach in-process subscribers.
func New(cfg *config.Config, capture CaptureSource, transcriber stt.Transcriber,
	synth tts.Synthesizer, player tts.Player, processor *persona.Processor,
	chat Chatter, publisher StatePublisher, recorder TurnRecorder) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		capture:   capture,
		stt:       transcriber,
		synth:     synth,
		player:    player,
		processor: processor,
		chat:      chat,
		publisher: publisher,
		recorder:  recorder,
		session:   NewSession(),
		model:     cfg.Bridge.Model,
		state:     Idle,
		now:       time.Now,
	}
}

// Session exposes the active conversation.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// State reports the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Subscribe registers an in-process observer of state changes. The channel
// is buffered; slow subscribers miss events rather than stalling turns.
func (o *Orchestrator) Subscribe() <-chan events.StateChange {
	ch := make(chan events.StateChange, 16)
	o.mu.Lock()
	o.subscribers = append(o.subscribers, ch)
	o.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel handed out by Subscribe. Callers with a
// bounded lifetime (an SSE connection, a test) must pair the two, or the
// subscriber list grows for the life of the process. The channel is not
// closed; it simply stops receiving.
func (o *Orchestrator) Unsubscribe(ch <-chan events.StateChange) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, sub := range o.subscribers {
		if (<-chan events.StateChange)(sub) == ch {
			o.subscribers = append(o.subscribers[:i], o.subscribers[i+1:]...)
			return
		}
	}
}

func (o *Orchestrator) emit(kind events.StateKind, turnUUID, detail string) {
	change := events.NewStateChange(kind, o.session.ID, turnUUID, detail)

	o.mu.Lock()
	subs := make([]chan events.StateChange, len(o.subscribers))
	copy(subs, o.subscribers)
	o.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- change:
		default:
		}
	}

	if o.publisher != nil {
		if err := o.publisher.PublishStateChange(change); err != nil {
			logging.LogWarn("Failed to publish state change",
				zap.String("kind", string(kind)), zap.Error(err))
		}
	}
}

// Run starts the voice loop: arm capture, then process utterances until the
// context is canceled. Returns ErrCaptureUnavailable (wrapped) when the
// audio front end cannot start; the text path keeps working in that case.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.capture == nil {
		return fmt.Errorf("%w: no capture source configured", events.ErrCaptureUnavailable)
	}

	if err := o.capture.Start(ctx); err != nil {
		logging.LogError(err, "Audio capture unavailable, voice loop disabled")
		return err
	}
	defer o.capture.Stop()

	o.setState(Listening)
	o.emit(events.StateListeningStarted, "", "")
	logging.LogCaptureStage("listening", zap.String("session_id", o.session.ID))

	go o.watchCaptureStates(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case utt, ok := <-o.capture.Utterances():
			if !ok {
				return nil
			}
			o.runTurn(ctx, utt)

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			o.mu.Lock()
			interrupted := o.bargeIn
			o.mu.Unlock()
			if interrupted {
				// Stay in Transcribing; the barge-in utterance is imminent.
				continue
			}

			if o.cfg.Server.AutoListen {
				o.setState(Listening)
				o.emit(events.StateListeningStarted, "", "auto-listen")
			} else {
				o.setState(Idle)
			}
		}
	}
}

// watchCaptureStates reacts to speech onsets that arrive outside the main
// turn loop: barge-in while the assistant is speaking, and replacement of
// an in-flight model call when the user keeps talking.
func (o *Orchestrator) watchCaptureStates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-o.capture.StateChanges():
			if !ok {
				return
			}
			if st != audio.StateSpeaking {
				continue
			}

			o.mu.Lock()
			switch o.state {
			case Speaking:
				// Barge-in: stop playback now, the new utterance is coming.
				o.bargeIn = true
				o.state = Transcribing
				o.mu.Unlock()
				o.player.Interrupt()
				logging.LogCaptureStage("barge_in",
					zap.String("session_id", o.session.ID))
			case AwaitingModel:
				// Pending-replace: abandon the in-flight model call.
				cancel := o.inFlight
				o.mu.Unlock()
				if cancel != nil {
					cancel()
					logging.LogCaptureStage("pending_replace",
						zap.String("session_id", o.session.ID))
				}
			default:
				o.mu.Unlock()
			}
		}
	}
}

// runTurn drives one utterance through the full pipeline. Failures are
// turn-scoped: the orchestrator always comes back ready for the next one.
func (o *Orchestrator) runTurn(ctx context.Context, utt audio.Utterance) {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	o.mu.Lock()
	bargeIn := o.bargeIn
	o.bargeIn = false
	o.state = Transcribing
	o.mu.Unlock()

	event := events.NewTurnEvent(o.session.ID)
	event.SetAudioMetadata(utt.Samples, utt.SampleRate, bargeIn)

	o.emit(events.StateUtteranceFinalized, event.GetUUID(),
		utt.Duration().Round(time.Millisecond).String())

	result, err := o.stt.Transcribe(utt.Samples, utt.SampleRate)
	if err != nil {
		// No usable input. Recover locally, never call the model.
		logging.LogWarn("Transcription produced no input", zap.Error(err))
		event.SetError(err)
		o.record(ctx, event)
		return
	}
	event.SetTranscription(result.Text, result.Confidence)
	logging.LogCaptureStage("transcribed",
		zap.String("text", result.Text),
		zap.Float64("confidence", result.Confidence))

	o.session.Append("user", result.Text)

	turnCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.inFlight = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.inFlight = nil
		o.mu.Unlock()
		cancel()
	}()

	reply, err := o.respond(turnCtx, result.Text)
	if err != nil {
		if turnCtx.Err() != nil && ctx.Err() == nil {
			// Replaced by a newer utterance; drop this turn silently.
			event.SetError(turnCtx.Err())
			o.record(ctx, event)
			return
		}
		logging.LogError(err, "Model response failed, speaking fallback")
		o.emit(events.StateError, event.GetUUID(), err.Error())
		event.SetError(err)
		reply = modelFallbackReply
	}

	o.setState(PostProcessing)
	reply = o.processor.Process(reply)
	event.SetResponse(reply, o.model)
	o.session.Append("assistant", reply)
	o.emit(events.StateModelResponseReady, event.GetUUID(), reply)

	o.speak(ctx, event.GetUUID(), reply)
	o.record(ctx, event)
}

// respond answers locally when the persona recognizes the intent, and asks
// the bridge otherwise.
func (o *Orchestrator) respond(ctx context.Context, input string) (string, error) {
	o.setState(AwaitingModel)

	if o.cfg.Persona.LocalIntents {
		if reply, ok := o.processor.Rules().LocalReply(input, o.now()); ok {
			logging.LogCaptureStage("local_intent", zap.String("input", input))
			return reply, nil
		}
	}

	return o.chat.Chat(ctx, o.history())
}

// history flattens the session into bridge messages, newest last.
func (o *Orchestrator) history() []bridge.Message {
	turns := o.session.Turns()
	messages := make([]bridge.Message, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, bridge.Message{
			Role:    turn.Role,
			Content: turn.Text,
		})
	}
	return messages
}

// speak synthesizes and plays the reply. Synthesis or playback failure
// degrades the turn to text-only output; the reply itself already stands.
func (o *Orchestrator) speak(ctx context.Context, turnUUID, reply string) {
	if strings.TrimSpace(reply) == "" {
		return
	}

	o.setState(Synthesizing)
	result, err := o.synth.Synthesize(reply, &tts.Options{
		Voice:          o.cfg.TTS.Voice,
		Speed:          o.cfg.TTS.Speed,
		ResponseFormat: o.cfg.TTS.ResponseFormat,
	})
	if err != nil {
		logging.LogError(err, "Synthesis failed, reply is text-only",
			zap.String("reply", reply))
		o.emit(events.StateError, turnUUID, err.Error())
		return
	}
	o.setState(Speaking)
	o.emit(events.StateSpeakingStarted, turnUUID, "")

	// Play owns the payload from here and runs its Cleanup exactly once.
	if err := o.player.Play(ctx, result); err != nil {
		logging.LogError(err, "Playback failed, reply is text-only",
			zap.String("reply", reply))
		o.emit(events.StateError, turnUUID, err.Error())
	}

	o.emit(events.StateSpeakingFinished, turnUUID, "")
}

// record hands the finished turn to the event log.
func (o *Orchestrator) record(ctx context.Context, event *events.TurnEvent) {
	logging.LogTurnEvent(event, "Turn completed",
		zap.Bool("success", event.Success))
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordTurnEvent(ctx, event); err != nil {
		logging.LogWarn("Failed to record turn event",
			zap.String("uuid", event.GetUUID()), zap.Error(err))
	}
}

// HandleText runs the text-input path: no capture, no transcription, no
// speech. Used by the chat endpoint.
func (o *Orchestrator) HandleText(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty input", events.ErrTranscriptionFailed)
	}

	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	event := events.NewTurnEvent(o.session.ID)
	event.SetTranscription(input, 1.0)
	o.session.Append("user", input)

	reply, err := o.respond(ctx, input)
	if err != nil {
		o.setState(Idle)
		o.emit(events.StateError, event.GetUUID(), err.Error())
		event.SetError(err)
		o.record(ctx, event)
		return "", err
	}

	o.setState(PostProcessing)
	reply = o.processor.Process(reply)
	event.SetResponse(reply, o.model)
	o.session.Append("assistant", reply)
	o.emit(events.StateModelResponseReady, event.GetUUID(), reply)
	o.record(ctx, event)

	o.setState(Idle)
	return reply, nil
}
