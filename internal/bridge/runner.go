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
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/samanthaos/samantha-hub/internal/events"
	"github.com/samanthaos/samantha-hub/internal/logging"
)

// Runner executes one model invocation and returns the generated text. It is
// an injectable collaborator so retry and serialization logic can be tested
// without a real subprocess.
type Runner interface {
	Run(ctx context.Context, model, prompt string) (string, error)
}

// ErrRunnerTimeout marks an invocation that hit its deadline. Timeouts are
// not retried and map to 504 at the HTTP boundary.
var ErrRunnerTimeout = errors.New("runner timed out")

// CLIRunner invokes the kilo CLI once per request and parses its JSON event
// stream from stdout.
type CLIRunner struct {
	path    string
	workDir string
	timeout time.Duration
}

// NewCLIRunner resolves the runner binary. A ~/.kilo/bin install is preferred
// over whatever happens to be in PATH.
func NewCLIRunner(path string, timeout time.Duration) *CLIRunner {
	if path == "" || path == "kilo" {
		if home, err := os.UserHomeDir(); err == nil {
			installed := filepath.Join(home, ".kilo", "bin", "kilo")
			if _, statErr := os.Stat(installed); statErr == nil {
				path = installed
			}
		}
		if path == "" {
			path = "kilo"
		}
	}
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	workDir, err := os.UserHomeDir()
	if err != nil {
		workDir = "."
	}

	return &CLIRunner{path: path, workDir: workDir, timeout: timeout}
}

// Run executes a single CLI invocation.
func (r *CLIRunner) Run(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.path,
		"run", "-m", model, prompt, "--format", "json", "--auto")
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w: %w after %s", events.ErrModelExecutionFailed, ErrRunnerTimeout, r.timeout)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v: %s", events.ErrModelExecutionFailed, err,
			strings.TrimSpace(stderr.String()))
	}

	text := parseRunnerOutput(stdout.String())
	logging.LogBridgeOperation("runner_complete",
		zap.String("model", model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("response_length", len(text)),
	)

	return text, nil
}

// parseRunnerOutput extracts generated text from the CLI's JSON-lines event
// stream. Lines that are not valid JSON (progress noise, banners) are
// skipped.
func parseRunnerOutput(stdout string) string {
	var b strings.Builder

	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		var event struct {
			Type string `json:"type"`
			Part struct {
				Text string `json:"text"`
			} `json:"part"`
		}
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		if event.Type == "text" {
			b.WriteString(event.Part.Text)
		}
	}

	return strings.TrimSpace(b.String())
}

// RetryRunner wraps a Runner with a bounded linear-backoff retry policy for
// transient failures. A failed attempt's output is discarded whole; the
// caller only ever sees the output of the attempt that succeeded.
type RetryRunner struct {
	inner      Runner
	maxRetries int
	backoff    time.Duration
}

// NewRetryRunner wraps inner. maxRetries counts retries after the first
// attempt; backoff grows linearly with the attempt number.
func NewRetryRunner(inner Runner, maxRetries int, backoff time.Duration) *RetryRunner {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryRunner{inner: inner, maxRetries: maxRetries, backoff: backoff}
}

// Run retries transient failures; timeouts are not retried, a runner that hit
// its deadline once will hit it again.
func (r *RetryRunner) Run(ctx context.Context, model, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * r.backoff
			logging.LogBridgeOperation("runner_retry",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", events.ErrModelExecutionFailed, ctx.Err())
			case <-time.After(wait):
			}
		}

		text, err := r.inner.Run(ctx, model, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if errors.Is(err, ErrRunnerTimeout) {
			break
		}
	}

	if !errors.Is(lastErr, events.ErrModelExecutionFailed) {
		return "", fmt.Errorf("%w: %v", events.ErrModelExecutionFailed, lastErr)
	}
	return "", lastErr
}
