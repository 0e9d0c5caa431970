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

package security

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidEventUUID is returned when a turn event UUID format is invalid
	ErrInvalidEventUUID = errors.New("invalid event UUID")

	// eventUUIDPattern validates UUIDs taken from request paths. Covers both
	// canonical v4 UUIDs and the time-based fallback identifiers.
	eventUUIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
)

// SanitizeLogInput removes newline characters to prevent log injection attacks
// This function should be used for all user-controlled data before logging
func SanitizeLogInput(input string) string {
	sanitized := strings.ReplaceAll(input, "\n", "")
	sanitized = strings.ReplaceAll(sanitized, "\r", "")
	return sanitized
}

// ValidateEventUUID ensures that a turn event UUID taken from a request path
// contains only safe characters. Only allows alphanumeric ASCII characters
// and dashes.
func ValidateEventUUID(uuid string) error {
	if uuid == "" {
		return ErrInvalidEventUUID
	}

	// Reject path separators and parent directory references outright
	if strings.Contains(uuid, "/") || strings.Contains(uuid, "\\") || strings.Contains(uuid, "..") {
		return ErrInvalidEventUUID
	}

	if !eventUUIDPattern.MatchString(uuid) {
		return ErrInvalidEventUUID
	}

	return nil
}
