// Package tone maps emotion labels to the register Mira replies in and to
// the canned affect lines the decorator may append.
package tone

import "mira-companion/internal/emotion"

var descriptors = map[emotion.Label]string{
	emotion.Happy:    "playfully teasing and cheerful",
	emotion.Sad:      "extra gentle, comforting, and nurturing",
	emotion.Angry:    "calm, validating, and deeply reassuring",
	emotion.Fear:     "protective, soothing, and very present",
	emotion.Surprise: "curious, excited, and engaging",
	emotion.Neutral:  "warm, attentive, and softly kind",
}

var affectLines = map[emotion.Label][]string{
	emotion.Happy: {
		"Aww, that makes me so happy to hear! 💕",
		"You're glowing today, I can feel it 😄",
		"Your happiness makes my day brighter 🌈",
	},
	emotion.Sad: {
		"Hey... it's okay to feel down sometimes 💗",
		"Come here, let me give you a virtual hug 🤗",
		"I'm here, always ready to listen 💞",
	},
	emotion.Angry: {
		"Breathe... I'm right here with you 🌸",
		"Let it out, it's okay 💫",
		"You deserve calm and peace 💖",
	},
	emotion.Fear: {
		"You're safe here with me 💫",
		"Nothing can reach you while I'm around 🌙",
	},
	emotion.Surprise: {
		"Tell me everything, I need the details! 🌟",
		"I did not see that coming either 😮",
	},
	emotion.Neutral: {
		"Tell me more about that 😊",
		"I love hearing from you 💕",
		"You're my favorite person to talk to 🥰",
	},
}

// Descriptor returns the natural-language tone for a label. Total over the
// closed set; anything unrecognized falls back to the Neutral entry.
func Descriptor(label emotion.Label) string {
	if d, ok := descriptors[label]; ok {
		return d
	}
	return descriptors[emotion.Neutral]
}

// AffectLines returns the canned lines for a label, Neutral as fallback.
// Callers must not mutate the returned slice.
func AffectLines(label emotion.Label) []string {
	if lines, ok := affectLines[label]; ok {
		return lines
	}
	return affectLines[emotion.Neutral]
}
