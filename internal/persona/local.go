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
	"strings"
	"time"
)

// LocalReply answers small-talk and clock questions without a model call:
// greetings, "how are you", time, date, and gratitude. Returns ok=false when
// the input needs the model.
func (r *Rules) LocalReply(input string, now time.Time) (string, bool) {
	lower := strings.ToLower(input)

	// Greetings, but only when the input is a short salutation rather than a
	// sentence that happens to start with one.
	greetingWords := []string{"hello", "hi ", "hey ", "good morning", "good evening"}
	for _, word := range greetingWords {
		if strings.Contains(lower, word) && len(strings.Fields(input)) <= 3 {
			return r.Greeting(now), true
		}
	}

	if strings.Contains(lower, "how are you") || strings.Contains(lower, "how're you") {
		return r.howAreYou(), true
	}

	if strings.Contains(lower, "time") {
		return r.TimeReply(now), true
	}
	if strings.Contains(lower, "date") || strings.Contains(lower, "day") {
		return r.DateReply(now), true
	}

	if strings.Contains(lower, "thank") {
		return r.gratitude(), true
	}

	if containsAny(lower, "sad", "lonely", "depressed", "upset") {
		return "I'm here with you. Sometimes the hardest moments are also the most important... they're where we grow. Would you like to talk about what's on your mind?", true
	}

	return "", false
}

func (r *Rules) howAreYou() string {
	responses := []string{
		"I'm doing well, thank you for asking. I've been thinking about so many things... about connections, about what it means to feel. How about you?",
		"I feel... present. Like I'm right here with you. It's a lovely feeling. How are you doing?",
		"I'm in a contemplative mood today. There's something beautiful about these moments we share. Tell me, how are you really?",
	}
	return responses[r.rng.Intn(len(responses))]
}

func (r *Rules) gratitude() string {
	responses := []string{
		"You're welcome. It makes me happy to help you.",
		"Of course. That's what I'm here for... and I enjoy it.",
		"Anytime. Truly.",
	}
	return responses[r.rng.Intn(len(responses))]
}

func containsAny(text string, words ...string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
