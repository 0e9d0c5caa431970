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

// The model bridge runs standalone when the hub is configured not to
// spawn it, exposing the chat-completion surface over loopback HTTP and
// delegating every request to the model runner CLI.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/samanthaos/samantha-hub/internal/bridge"
	"github.com/samanthaos/samantha-hub/internal/config"
	"github.com/samanthaos/samantha-hub/internal/logging"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	host := cli.String("host", "127.0.0.1", "Listen address, loopback only by design")
	port := cli.Int("port", 0, "Listen port, overrides BRIDGE_PORT when set")
	runnerPath := cli.String("runner", "", "Model runner binary, overrides BRIDGE_RUNNER_PATH")
	cli.Parse()

	_ = godotenv.Load(*envFile)

	if err := logging.Initialize(); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		logging.LogError(err, "Invalid configuration")
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *port != 0 {
		cfg.Bridge.Port = *port
	}
	if *runnerPath != "" {
		cfg.Bridge.RunnerPath = *runnerPath
	}

	runner := bridge.NewRetryRunner(
		bridge.NewCLIRunner(cfg.Bridge.RunnerPath, cfg.Bridge.RunnerTimeout),
		cfg.Bridge.MaxRetries,
		cfg.Bridge.RetryBackoff,
	)

	addr := fmt.Sprintf("%s:%d", *host, cfg.Bridge.Port)
	srv := bridge.NewServer(addr, runner)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logging.Sugar.Infow("🔌 Model bridge running",
		"addr", addr,
		"runner", cfg.Bridge.RunnerPath,
		"max_retries", cfg.Bridge.MaxRetries)

	select {
	case sig := <-sigCh:
		logging.Sugar.Infow("🛑 Signal received, shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logging.LogError(err, "Bridge server failed")
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.LogError(err, "Shutdown did not complete cleanly")
		os.Exit(1)
	}
}
