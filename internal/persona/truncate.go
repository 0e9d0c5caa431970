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

import "strings"

// TruncateAtSentence cuts text down to the character budget without ever
// splitting a sentence: the result ends at the last complete sentence that
// fits. When not even the first sentence fits, that sentence is returned
// whole; a clipped thought sounds worse than a long one.
func TruncateAtSentence(text string, budget int) string {
	text = strings.TrimSpace(text)
	if budget <= 0 || len(text) <= budget {
		return text
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return text
	}

	var b strings.Builder
	for _, sentence := range sentences {
		next := b.Len()
		if next > 0 {
			next++ // joining space
		}
		next += len(sentence)
		if next > budget && b.Len() > 0 {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
		if b.Len() > budget {
			break
		}
	}

	return b.String()
}

// splitSentences breaks text on terminal punctuation followed by whitespace.
// Abbreviation handling is deliberately naive; spoken replies rarely contain
// them.
func splitSentences(text string) []string {
	var sentences []string
	start := 0

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			// Consume runs of terminal punctuation ("?!", "...").
			end := i + 1
			for end < len(text) && (text[end] == '.' || text[end] == '!' || text[end] == '?') {
				end++
			}
			if end == len(text) || text[end] == ' ' || text[end] == '\n' || text[end] == '\t' {
				sentence := strings.TrimSpace(text[start:end])
				if sentence != "" {
					sentences = append(sentences, sentence)
				}
				start = end
			}
			i = end - 1
		}
	}

	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}

	return sentences
}
