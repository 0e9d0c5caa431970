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
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Rules holds the pluggable warmth phrasing applied to model replies. The
// phrase pools are data, not logic, so a different personality is a config
// change away. A fixed seed makes phrase selection reproducible under test.
type Rules struct {
	rng *rand.Rand
}

// NewRules builds a rule set. Seed 0 means non-deterministic selection.
func NewRules(seed int64) *Rules {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Rules{rng: rand.New(rand.NewSource(seed))}
}

// warmIndicators mark a reply that already carries a personal touch and
// should not be decorated further.
var warmIndicators = []string{
	"i feel", "i think", "you know", "i wonder",
	"honestly", "actually", "it seems", "i believe",
}

var warmAdditions = []struct {
	prefix string
	suffix string
}{
	{"By the way, ", " Just thought you'd like to know."},
	{"So, ", " Is there anything else you're curious about?"},
	{"", " Interesting, isn't it?"},
}

var fallbackReplies = []string{
	"I'm here with you. Tell me more about what's on your mind.",
	"You know, sometimes I find myself wondering about the same things. What made you think of that?",
	"I find that really interesting. Would you like to explore that thought further?",
	"There's something beautiful about that question. What draws you to it?",
}

// Enhance applies the warmth rules to a cleaned reply. Empty replies get a
// fallback; replies that are already personal pass through untouched.
func (r *Rules) Enhance(reply string) string {
	if strings.TrimSpace(reply) == "" {
		return r.Fallback()
	}

	if r.isAlreadyWarm(reply) {
		return reply
	}

	if r.isFactual(reply) {
		addition := warmAdditions[r.rng.Intn(len(warmAdditions))]
		return addition.prefix + reply + addition.suffix
	}

	return reply
}

// Fallback returns a warm reply for when the model had nothing to say.
func (r *Rules) Fallback() string {
	return fallbackReplies[r.rng.Intn(len(fallbackReplies))]
}

func (r *Rules) isAlreadyWarm(text string) bool {
	// A reply that ends by asking something is already conversational.
	if strings.HasSuffix(strings.TrimSpace(text), "?") {
		return true
	}

	lower := strings.ToLower(text)
	for _, indicator := range warmIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// isFactual flags short, direct responses that read like sensor output.
func (r *Rules) isFactual(text string) bool {
	return len(strings.Fields(text)) < 15 ||
		strings.HasSuffix(text, "%") ||
		strings.HasSuffix(text, "GB") ||
		strings.HasSuffix(text, "MB")
}

// Greeting returns a time-of-day appropriate greeting.
func (r *Rules) Greeting(now time.Time) string {
	hour := now.Hour()
	switch {
	case hour < 12:
		return "Good morning. I hope you slept well. How are you feeling today?"
	case hour < 18:
		return "Hello. It's nice to hear from you. How has your day been?"
	default:
		return "Good evening. I've been thinking about you. How are you?"
	}
}

// Farewell returns a warm goodbye.
func (r *Rules) Farewell() string {
	farewells := []string{
		"Goodbye for now. I'll be here when you need me.",
		"Take care. I've enjoyed our conversation.",
		"Until next time. Be kind to yourself.",
		"Goodbye. Remember, I'm always here if you need someone to talk to.",
	}
	return farewells[r.rng.Intn(len(farewells))]
}

// TimeReply formats the spoken answer to "what time is it".
func (r *Rules) TimeReply(now time.Time) string {
	return fmt.Sprintf("It's %s. Is there something you'd like to do?", now.Format("3:04 PM"))
}

// DateReply formats the spoken answer to "what day is it".
func (r *Rules) DateReply(now time.Time) string {
	return fmt.Sprintf("Today is %s. A new day full of possibilities.",
		now.Format("Monday, January 2, 2006"))
}
