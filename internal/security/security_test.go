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
	"strings"
	"testing"
)

func TestSanitizeLogInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Clean input",
			input:    "normal log message",
			expected: "normal log message",
		},
		{
			name:     "Single newline",
			input:    "line1\nline2",
			expected: "line1line2",
		},
		{
			name:     "CRLF sequence",
			input:    "line1\r\nline2",
			expected: "line1line2",
		},
		{
			name:     "Log injection attempt",
			input:    "transcription\nERROR: fake error message",
			expected: "transcriptionERROR: fake error message",
		},
		{
			name:     "Injection with ANSI codes",
			input:    "normal\n\x1b[31mFAKE ERROR\x1b[0m\nmore text",
			expected: "normal\x1b[31mFAKE ERROR\x1b[0mmore text",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "Only newlines",
			input:    "\n\r\n\r",
			expected: "",
		},
		{
			name:     "Unicode characters preserved",
			input:    "Hello 世界\nSecond line",
			expected: "Hello 世界Second line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeLogInput(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeLogInput(%q) = %q, want %q", tt.input, result, tt.expected)
			}

			// Verify no newlines remain
			if strings.Contains(result, "\n") || strings.Contains(result, "\r") {
				t.Errorf("SanitizeLogInput(%q) still contains line breaks: %q", tt.input, result)
			}
		})
	}
}

func TestValidateEventUUID(t *testing.T) {
	valid := []string{
		"550e8400-e29b-41d4-a716-446655440000",
		"samantha-1735689600000000000",
		"abc123",
	}
	for _, uuid := range valid {
		if err := ValidateEventUUID(uuid); err != nil {
			t.Errorf("ValidateEventUUID(%q) = %v, want nil", uuid, err)
		}
	}

	invalid := []string{
		"",
		"../../../etc/passwd",
		"uuid/with/slashes",
		"uuid\\with\\backslashes",
		"uuid with spaces",
		"uuid;DROP TABLE turn_events",
		"uuid\nnewline",
	}
	for _, uuid := range invalid {
		if err := ValidateEventUUID(uuid); err == nil {
			t.Errorf("ValidateEventUUID(%q) = nil, want error", uuid)
		}
	}
}

// Benchmark tests to ensure security functions don't impact performance
func BenchmarkSanitizeLogInput(b *testing.B) {
	testInput := "Normal log message with some\nmalicious\r\ncontent that needs sanitization"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SanitizeLogInput(testInput)
	}
}
