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

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samanthaos/samantha-hub/internal/config"
	"github.com/samanthaos/samantha-hub/internal/events"
)

// fakeRunner scripts per-call results for retry and server tests.
type fakeRunner struct {
	calls   int32
	results []struct {
		text string
		err  error
	}
}

func (f *fakeRunner) script(text string, err error) *fakeRunner {
	f.results = append(f.results, struct {
		text string
		err  error
	}{text, err})
	return f
}

func (f *fakeRunner) Run(ctx context.Context, model, prompt string) (string, error) {
	n := int(atomic.AddInt32(&f.calls, 1)) - 1
	if n >= len(f.results) {
		n = len(f.results) - 1
	}
	return f.results[n].text, f.results[n].err
}

func TestParseRunnerOutput(t *testing.T) {
	stdout := `{"type":"step_start","part":{}}
{"type":"text","part":{"text":"It's 5:30 PM. "}}
not json at all
{"type":"text","part":{"text":"Is there something you'd like to do?"}}
{"type":"step_finish","part":{}}`

	assert.Equal(t,
		"It's 5:30 PM. Is there something you'd like to do?",
		parseRunnerOutput(stdout))

	assert.Equal(t, "", parseRunnerOutput(""))
	assert.Equal(t, "", parseRunnerOutput("banner line\nanother banner"))
}

func TestRetryRunnerRecoversFromTransientFailure(t *testing.T) {
	runner := (&fakeRunner{}).
		script("", fmt.Errorf("%w: exit status 1", events.ErrModelExecutionFailed)).
		script("", fmt.Errorf("%w: connection refused", events.ErrModelExecutionFailed)).
		script("recovered", nil)

	retry := NewRetryRunner(runner, 2, time.Millisecond)

	text, err := retry.Run(context.Background(), defaultModel, "hi")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(3), runner.calls)
}

func TestRetryRunnerBoundedRetries(t *testing.T) {
	runner := (&fakeRunner{}).
		script("", fmt.Errorf("%w: exit status 1", events.ErrModelExecutionFailed))

	retry := NewRetryRunner(runner, 2, time.Millisecond)

	_, err := retry.Run(context.Background(), defaultModel, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, events.ErrModelExecutionFailed))
	// First attempt plus two retries, never more.
	assert.Equal(t, int32(3), runner.calls)
}

func TestRetryRunnerDoesNotRetryTimeouts(t *testing.T) {
	runner := (&fakeRunner{}).
		script("", fmt.Errorf("%w: %w after 1s", events.ErrModelExecutionFailed, ErrRunnerTimeout))

	retry := NewRetryRunner(runner, 3, time.Millisecond)

	_, err := retry.Run(context.Background(), defaultModel, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunnerTimeout))
	assert.Equal(t, int32(1), runner.calls)
}

func TestBuildPrompt(t *testing.T) {
	t.Run("single user message passes through", func(t *testing.T) {
		prompt, err := buildPrompt([]Message{{Role: "user", Content: "What time is it?"}})
		require.NoError(t, err)
		assert.Equal(t, "What time is it?", prompt)
	})

	t.Run("history becomes a context block", func(t *testing.T) {
		prompt, err := buildPrompt([]Message{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "Hello. How has your day been?"},
			{Role: "user", Content: "What time is it?"},
		})
		require.NoError(t, err)
		assert.Contains(t, prompt, "Context:\nuser: hello\nassistant: Hello. How has your day been?\n")
		assert.Contains(t, prompt, "Current message: What time is it?")
	})

	t.Run("no user message is rejected", func(t *testing.T) {
		_, err := buildPrompt([]Message{{Role: "system", Content: "be warm"}})
		assert.Error(t, err)
	})
}

func newTestServer(runner Runner) *httptest.Server {
	s := NewServer("127.0.0.1:0", runner)
	return httptest.NewServer(s.Handler())
}

func postChat(t *testing.T, url string, req ChatRequest) *http.Response {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(url+"/v1/chat/completions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestServerModelsEndpoint(t *testing.T) {
	server := newTestServer(&fakeRunner{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/models")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var models ModelsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&models))
	assert.Equal(t, "list", models.Object)
	require.NotEmpty(t, models.Data)
	assert.Equal(t, "model", models.Data[0].Object)
	assert.Contains(t, modelIDs(models), defaultModel)
}

func modelIDs(m ModelsResponse) []string {
	ids := make([]string, len(m.Data))
	for i, info := range m.Data {
		ids[i] = info.ID
	}
	return ids
}

func TestServerChatCompletion(t *testing.T) {
	runner := (&fakeRunner{}).script("It's 5:30 PM. Is there something you'd like to do?", nil)
	server := newTestServer(runner)
	defer server.Close()

	resp := postChat(t, server.URL, ChatRequest{
		Model:    defaultModel,
		Messages: []Message{{Role: "user", Content: "What time is it?"}},
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var chat ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chat))
	assert.Equal(t, "chat.completion", chat.Object)
	require.Len(t, chat.Choices, 1)
	assert.Equal(t, "assistant", chat.Choices[0].Message.Role)
	assert.Equal(t, "It's 5:30 PM. Is there something you'd like to do?", chat.Choices[0].Message.Content)
	assert.Equal(t, "stop", chat.Choices[0].FinishReason)
}

func TestServerDefaultsModel(t *testing.T) {
	runner := (&fakeRunner{}).script("ok", nil)
	server := newTestServer(runner)
	defer server.Close()

	resp := postChat(t, server.URL, ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	defer resp.Body.Close()

	var chat ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chat))
	assert.Equal(t, defaultModel, chat.Model)
}

func TestServerValidation(t *testing.T) {
	server := newTestServer(&fakeRunner{})
	defer server.Close()

	t.Run("empty messages", func(t *testing.T) {
		resp := postChat(t, server.URL, ChatRequest{Model: defaultModel})
		defer resp.Body.Close()

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var errResp ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
		assert.Equal(t, ErrorTypeInvalidRequest, errResp.Error.Type)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/v1/chat/completions", "application/json",
			bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/v1/chat/completions")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestServerRunnerFailures(t *testing.T) {
	t.Run("timeout maps to 504", func(t *testing.T) {
		runner := (&fakeRunner{}).
			script("", fmt.Errorf("%w: %w after 180s", events.ErrModelExecutionFailed, ErrRunnerTimeout))
		server := newTestServer(runner)
		defer server.Close()

		resp := postChat(t, server.URL, ChatRequest{
			Messages: []Message{{Role: "user", Content: "hi"}},
		})
		defer resp.Body.Close()

		require.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)

		var errResp ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
		assert.Equal(t, ErrorTypeTimeout, errResp.Error.Type)
		assert.Equal(t, "Request timeout", errResp.Error.Message)
	})

	t.Run("execution failure maps to 500", func(t *testing.T) {
		runner := (&fakeRunner{}).
			script("", fmt.Errorf("%w: exit status 1", events.ErrModelExecutionFailed))
		server := newTestServer(runner)
		defer server.Close()

		resp := postChat(t, server.URL, ChatRequest{
			Messages: []Message{{Role: "user", Content: "hi"}},
		})
		defer resp.Body.Close()

		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		var errResp ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
		assert.Equal(t, ErrorTypeModel, errResp.Error.Type)
	})
}

func TestClientChat(t *testing.T) {
	runner := (&fakeRunner{}).script("hello from the model", nil)
	server := newTestServer(runner)
	defer server.Close()

	client := NewClient(config.BridgeConfig{
		URL:            server.URL,
		Model:          defaultModel,
		MaxTokens:      256,
		RequestTimeout: 5 * time.Second,
	})

	require.NoError(t, client.Ready(context.Background()))

	reply, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello from the model", reply)
}

func TestClientErrorMapping(t *testing.T) {
	t.Run("unreachable bridge", func(t *testing.T) {
		client := NewClient(config.BridgeConfig{
			URL:            "http://127.0.0.1:1",
			RequestTimeout: time.Second,
		})

		err := client.Ready(context.Background())
		assert.True(t, errors.Is(err, events.ErrBridgeUnavailable))

		_, err = client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
		assert.True(t, errors.Is(err, events.ErrBridgeUnavailable))
	})

	t.Run("model failure surfaces error payload", func(t *testing.T) {
		runner := (&fakeRunner{}).
			script("", fmt.Errorf("%w: exit status 1", events.ErrModelExecutionFailed))
		server := newTestServer(runner)
		defer server.Close()

		client := NewClient(config.BridgeConfig{
			URL:            server.URL,
			RequestTimeout: 5 * time.Second,
		})

		_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, events.ErrModelExecutionFailed))
		assert.Contains(t, err.Error(), ErrorTypeModel)
	})
}

func testBridgeConfig(url string) config.BridgeConfig {
	return config.BridgeConfig{
		URL:               url,
		Spawn:             true,
		Command:           "yes", // long-lived stand-in for the bridge binary
		ReadinessAttempts: 5,
		ReadinessInterval: 10 * time.Millisecond,
		ShutdownGrace:     200 * time.Millisecond,
	}
}

func TestSupervisorAdoptsRunningBridge(t *testing.T) {
	server := newTestServer(&fakeRunner{})
	defer server.Close()

	cfg := testBridgeConfig(server.URL)
	cfg.Spawn = false

	supervisor := NewSupervisor(cfg)
	require.NoError(t, supervisor.Start(context.Background()))

	handle := supervisor.Handle()
	assert.True(t, handle.Ready)
	assert.Zero(t, handle.PID, "adopted bridge has no child process")
}

func TestSupervisorBecomesReadyOnKthPoll(t *testing.T) {
	var polls int32
	probe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Healthy from the third poll onward.
		if atomic.AddInt32(&polls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer probe.Close()

	supervisor := NewSupervisor(testBridgeConfig(probe.URL))
	require.NoError(t, supervisor.Start(context.Background()))
	defer supervisor.Stop()

	handle := supervisor.Handle()
	assert.True(t, handle.Ready)
	assert.NotZero(t, handle.PID)
}

func TestSupervisorFailsWithoutOrphans(t *testing.T) {
	probe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer probe.Close()

	cfg := testBridgeConfig(probe.URL)
	cfg.ReadinessAttempts = 2

	supervisor := NewSupervisor(cfg)

	err := supervisor.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, events.ErrBridgeUnavailable))

	// The spawned child was reaped before Start returned.
	handle := supervisor.Handle()
	assert.False(t, handle.Ready)
	assert.Zero(t, handle.PID)
}

func TestSupervisorSpawnDisabled(t *testing.T) {
	cfg := testBridgeConfig("http://127.0.0.1:1")
	cfg.Spawn = false

	err := NewSupervisor(cfg).Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, events.ErrBridgeUnavailable))
}
