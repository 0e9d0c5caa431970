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

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/samanthaos/samantha-hub/internal/config"
	"github.com/samanthaos/samantha-hub/internal/logging"
	"github.com/samanthaos/samantha-hub/internal/server"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	cli.Parse()

	// Missing env file is fine, the environment itself still applies.
	_ = godotenv.Load(*envFile)

	// Initialize structured logging
	if err := logging.Initialize(); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		logging.LogError(err, "Invalid configuration")
		log.Fatalf("Invalid configuration: %v", err)
	}

	srv, err := server.New(cfg)
	if err != nil {
		logging.LogError(err, "Failed to wire hub components")
		log.Fatalf("Failed to wire hub components: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Sugar.Infow("🛑 Signal received, shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logging.LogError(err, "Hub server failed")
		}
	}

	if err := srv.Stop(); err != nil {
		logging.LogError(err, "Shutdown did not complete cleanly")
		os.Exit(1)
	}
}
