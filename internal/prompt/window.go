// Package prompt assembles the instruction sequence handed to the generation
// client: a tone-conditioned system instruction, a bounded window of prior
// turns, and the current user message as the final turn.
package prompt

import (
	"mira-companion/internal/ai"
	"mira-companion/internal/model"
)

const DefaultMaxTurns = 5

// BuildWindow selects the last maxTurns entries of history, oldest first,
// mapped to generation roles. The input slice is never mutated. Exposing this
// window instead of the full history bounds both latency and token cost; the
// history read path is not capped by it.
func BuildWindow(history []model.Message, maxTurns int) []ai.ChatMessage {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	start := 0
	if len(history) > maxTurns {
		start = len(history) - maxTurns
	}

	window := make([]ai.ChatMessage, 0, len(history)-start)
	for _, msg := range history[start:] {
		role := model.RoleAssistant
		if msg.Role == model.RoleUser {
			role = model.RoleUser
		}
		window = append(window, ai.ChatMessage{Role: role, Content: msg.Content})
	}
	return window
}

// BuildInstructionSequence returns system instruction, windowed history in
// order, then the current user message last.
func BuildInstructionSequence(system string, window []ai.ChatMessage, current string) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(window)+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: system})
	messages = append(messages, window...)
	messages = append(messages, ai.ChatMessage{Role: model.RoleUser, Content: current})
	return messages
}
