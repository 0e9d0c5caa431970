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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Samantha hub
type Config struct {
	Server  ServerConfig
	Capture CaptureConfig
	STT     STTConfig
	TTS     TTSConfig
	Persona PersonaConfig
	Bridge  BridgeConfig
	Logging LoggingConfig
	NATS    NATSConfig
	Storage StorageConfig
}

// ServerConfig holds hub HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	AutoListen   bool // re-arm capture after each spoken response
}

// CaptureConfig holds silence-aware audio capture configuration
type CaptureConfig struct {
	SampleRate      int           // samples per second, mono
	FrameDuration   time.Duration // duration of one PCM frame
	EnergyThreshold float64       // RMS level that counts as speech
	MinSpeechFrames int           // consecutive frames above threshold before Speaking
	TrailingSilence time.Duration // silence that finalizes an utterance
	MaxUtterance    time.Duration // hard cap on a single utterance
	QueueSize       int           // bounded frame queue between device and detector
}

// STTConfig holds speech-to-text configuration
type STTConfig struct {
	// Provider is one of "whisper", "rest", "passthrough". The hub falls
	// back down that order when the preferred provider cannot start.
	Provider         string
	WhisperModelPath string
	URL              string // REST API URL for OpenAI-compatible STT service
	Language         string
	Timeout          time.Duration
}

// TTSConfig holds text-to-speech configuration
type TTSConfig struct {
	URL             string        // REST API URL for the neural voice service
	Voice           string        // Default voice to use (e.g., "af_bella")
	Speed           float32       // Speech speed (1.0 = normal)
	ResponseFormat  string        // Audio format (mp3, wav, opus, flac)
	MaxConcurrent   int           // Maximum concurrent synthesis requests
	Timeout         time.Duration // Request timeout
	FallbackEnabled bool          // Enable espeak-ng fallback when remote fails
	EspeakVoice     string        // espeak-ng voice variant for the fallback path
	PlayerCommand   string        // external audio player binary
}

// PersonaConfig holds response post-processing configuration
type PersonaConfig struct {
	Name         string
	Style        string
	MaxReplyLen  int  // character budget for spoken replies
	WarmthSeed   int64
	LocalIntents bool // answer greeting/time/date locally without the model
}

// BridgeConfig holds local model bridge configuration
type BridgeConfig struct {
	URL               string        // loopback base URL of the bridge service
	Model             string        // model identifier passed through to the runner
	MaxTokens         int
	Temperature       float32
	RequestTimeout    time.Duration // per chat-completion call
	Spawn             bool          // hub spawns and supervises the bridge process
	Command           string        // bridge binary to spawn
	LogPath           string        // child process log sink
	ReadinessAttempts int           // polls of GET /v1/models before giving up
	ReadinessInterval time.Duration
	ShutdownGrace     time.Duration // SIGTERM grace before SIGKILL
	RunnerPath        string        // model runner CLI (bridge side)
	RunnerTimeout     time.Duration // per CLI invocation (bridge side)
	MaxRetries        int           // transient runner failures (bridge side)
	RetryBackoff      time.Duration // linear backoff step (bridge side)
	Port              int           // bridge listen port (bridge side)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	Enabled       bool
	URL           string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// StorageConfig holds turn event log configuration
type StorageConfig struct {
	Path string
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("SAMANTHA_HOST", "127.0.0.1"),
			Port:         getEnvInt("SAMANTHA_PORT", 5000),
			ReadTimeout:  getEnvDuration("SAMANTHA_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SAMANTHA_WRITE_TIMEOUT", 30*time.Second),
			AutoListen:   getEnvBool("SAMANTHA_AUTO_LISTEN", true),
		},
		Capture: CaptureConfig{
			SampleRate:      getEnvInt("CAPTURE_SAMPLE_RATE", 16000),
			FrameDuration:   getEnvDuration("CAPTURE_FRAME_DURATION", 20*time.Millisecond),
			EnergyThreshold: getEnvFloat64("CAPTURE_ENERGY_THRESHOLD", 0.015),
			MinSpeechFrames: getEnvInt("CAPTURE_MIN_SPEECH_FRAMES", 3),
			TrailingSilence: getEnvDuration("CAPTURE_TRAILING_SILENCE", 1200*time.Millisecond),
			MaxUtterance:    getEnvDuration("CAPTURE_MAX_UTTERANCE", 30*time.Second),
			QueueSize:       getEnvInt("CAPTURE_QUEUE_SIZE", 64),
		},
		STT: STTConfig{
			Provider:         getEnvString("STT_PROVIDER", "whisper"),
			WhisperModelPath: getEnvString("WHISPER_MODEL_PATH", "./models/ggml-tiny.bin"),
			URL:              getEnvString("STT_URL", "http://localhost:8000"),
			Language:         getEnvString("STT_LANGUAGE", "en"),
			Timeout:          getEnvDuration("STT_TIMEOUT", 30*time.Second),
		},
		TTS: TTSConfig{
			URL:             getEnvString("TTS_URL", "http://localhost:8880/v1"),
			Voice:           getEnvString("TTS_VOICE", "af_bella"),
			Speed:           getEnvFloat32("TTS_SPEED", 1.0),
			ResponseFormat:  getEnvString("TTS_FORMAT", "wav"),
			MaxConcurrent:   getEnvInt("TTS_MAX_CONCURRENT", 4),
			Timeout:         getEnvDuration("TTS_TIMEOUT", 10*time.Second),
			FallbackEnabled: getEnvBool("TTS_FALLBACK_ENABLED", true),
			EspeakVoice:     getEnvString("TTS_ESPEAK_VOICE", "en-us+f3"),
			PlayerCommand:   getEnvString("TTS_PLAYER_COMMAND", "aplay"),
		},
		Persona: PersonaConfig{
			Name:         getEnvString("PERSONA_NAME", "Samantha"),
			Style:        getEnvString("PERSONA_STYLE", "warm"),
			MaxReplyLen:  getEnvInt("PERSONA_MAX_REPLY_LEN", 600),
			WarmthSeed:   int64(getEnvInt("PERSONA_WARMTH_SEED", 0)),
			LocalIntents: getEnvBool("PERSONA_LOCAL_INTENTS", true),
		},
		Bridge: BridgeConfig{
			URL:               getEnvString("BRIDGE_URL", "http://127.0.0.1:8765"),
			Model:             getEnvString("BRIDGE_MODEL", "kilo/openrouter/free"),
			MaxTokens:         getEnvInt("BRIDGE_MAX_TOKENS", 256),
			Temperature:       getEnvFloat32("BRIDGE_TEMPERATURE", 0.7),
			RequestTimeout:    getEnvDuration("BRIDGE_REQUEST_TIMEOUT", 180*time.Second),
			Spawn:             getEnvBool("BRIDGE_SPAWN", true),
			Command:           getEnvString("BRIDGE_COMMAND", "samantha-bridge"),
			LogPath:           getEnvString("BRIDGE_LOG_PATH", "./data/bridge.log"),
			ReadinessAttempts: getEnvInt("BRIDGE_READINESS_ATTEMPTS", 15),
			ReadinessInterval: getEnvDuration("BRIDGE_READINESS_INTERVAL", time.Second),
			ShutdownGrace:     getEnvDuration("BRIDGE_SHUTDOWN_GRACE", 2*time.Second),
			RunnerPath:        getEnvString("BRIDGE_RUNNER_PATH", "kilo"),
			RunnerTimeout:     getEnvDuration("BRIDGE_RUNNER_TIMEOUT", 180*time.Second),
			MaxRetries:        getEnvInt("BRIDGE_MAX_RETRIES", 2),
			RetryBackoff:      getEnvDuration("BRIDGE_RETRY_BACKOFF", time.Second),
			Port:              getEnvInt("BRIDGE_PORT", 8765),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		NATS: NATSConfig{
			Enabled:       getEnvBool("NATS_ENABLED", false),
			URL:           getEnvString("NATS_URL", "nats://localhost:4222"),
			MaxReconnect:  getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait: getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
		Storage: StorageConfig{
			Path: getEnvString("DB_PATH", "./data/samantha-hub.db"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Bridge.Port <= 0 || c.Bridge.Port > 65535 {
		return fmt.Errorf("invalid bridge port: %d", c.Bridge.Port)
	}

	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("capture sample rate must be positive: %d", c.Capture.SampleRate)
	}

	if c.Capture.FrameDuration <= 0 {
		return fmt.Errorf("capture frame duration must be positive: %s", c.Capture.FrameDuration)
	}

	if c.Capture.TrailingSilence <= 0 {
		return fmt.Errorf("trailing silence must be positive: %s", c.Capture.TrailingSilence)
	}

	if c.Capture.EnergyThreshold <= 0 {
		return fmt.Errorf("energy threshold must be positive: %f", c.Capture.EnergyThreshold)
	}

	if c.Capture.MinSpeechFrames <= 0 {
		return fmt.Errorf("minimum speech frames must be positive: %d", c.Capture.MinSpeechFrames)
	}

	switch c.STT.Provider {
	case "whisper", "rest", "passthrough":
	default:
		return fmt.Errorf("unknown STT provider: %q", c.STT.Provider)
	}

	if c.TTS.URL == "" {
		return fmt.Errorf("TTS URL must be provided")
	}

	if c.TTS.MaxConcurrent <= 0 {
		return fmt.Errorf("TTS max concurrent must be positive: %d", c.TTS.MaxConcurrent)
	}

	if c.TTS.Speed <= 0 {
		return fmt.Errorf("TTS speed must be positive: %f", c.TTS.Speed)
	}

	if c.Bridge.URL == "" {
		return fmt.Errorf("bridge URL must be provided")
	}

	if c.Bridge.ReadinessAttempts <= 0 {
		return fmt.Errorf("bridge readiness attempts must be positive: %d", c.Bridge.ReadinessAttempts)
	}

	if c.Persona.MaxReplyLen <= 0 {
		return fmt.Errorf("persona max reply length must be positive: %d", c.Persona.MaxReplyLen)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatValue)
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
