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

package persona

import (
	"regexp"
	"strings"
)

// Model output arrives with terminal escape codes, CLI echo lines, and
// markdown that is meaningless in speech. Clean strips all of it.
// Clean is a pure function and idempotent: Clean(Clean(x)) == Clean(x).
var (
	ansiPattern     = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	promptEcho      = regexp.MustCompile(`(?m)^\s*>.*\r?\n?`)
	headerPattern   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	bulletPattern   = regexp.MustCompile(`(?m)^\s*[-*•]\s+`)
	linkPattern     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	emphasisPattern = regexp.MustCompile("[*`]+")
	underscoreEmph  = regexp.MustCompile(`_{1,2}([^_\s][^_]*)_{1,2}`)
	blankRuns       = regexp.MustCompile(`\n{3,}`)
	spaceRuns       = regexp.MustCompile(`[ \t]{2,}`)
)

// Clean strips ANSI escapes, CLI echo lines, and markdown structure from raw
// model text, leaving plain speakable prose. One pass can expose structure a
// later rule would have caught (doubled emphasis markers, echo lines behind
// leading whitespace), so the strip runs to a fixed point.
func Clean(raw string) string {
	text := raw
	for {
		next := cleanPass(text)
		if next == text {
			return next
		}
		text = next
	}
}

func cleanPass(raw string) string {
	text := ansiPattern.ReplaceAllString(raw, "")
	text = promptEcho.ReplaceAllString(text, "")
	text = headerPattern.ReplaceAllString(text, "")
	text = bulletPattern.ReplaceAllString(text, "")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = emphasisPattern.ReplaceAllString(text, "")
	text = underscoreEmph.ReplaceAllString(text, "$1")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
