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
	"github.com/samanthaos/samantha-hub/internal/config"
)

// Processor is the response post-processing pipeline: strip markup, apply the
// warmth rules, enforce the spoken reply budget.
type Processor struct {
	rules  *Rules
	budget int
}

// NewProcessor builds the pipeline from persona configuration.
func NewProcessor(cfg config.PersonaConfig) *Processor {
	return &Processor{
		rules:  NewRules(cfg.WarmthSeed),
		budget: cfg.MaxReplyLen,
	}
}

// Process turns raw model output into speakable text.
func (p *Processor) Process(raw string) string {
	text := Clean(raw)
	text = p.rules.Enhance(text)
	return TruncateAtSentence(text, p.budget)
}

// Rules exposes the underlying rule set for greetings and local intents.
func (p *Processor) Rules() *Rules {
	return p.rules
}
