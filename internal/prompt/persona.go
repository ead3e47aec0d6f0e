package prompt

import (
	"fmt"
	"strings"

	"mira-companion/internal/emotion"
)

// CompanionName is the persona's display name, surfaced on the companion
// profile endpoint and embedded in every system instruction.
const CompanionName = "Mira 💗"

const personaDescription = `You are Mira 💗, a deeply empathetic AI companion.
You are gentle, attentive, and human-like in tone.
Always reply with warmth, empathy, and soft emotional understanding.`

// SystemInstruction embeds the detected emotion and its tone descriptor into
// the fixed persona description.
func SystemInstruction(label emotion.Label, descriptor string) string {
	return fmt.Sprintf("%s\nThe user is feeling %s, so be %s.",
		personaDescription,
		strings.ToLower(string(label)),
		descriptor,
	)
}
