// Package decorate post-processes generated replies: keyword-triggered emoji,
// shortcode expansion, and an optional affect suffix.
package decorate

import (
	"math/rand"
	"regexp"
	"strings"

	"mira-companion/internal/emotion"
	"mira-companion/internal/tone"
)

type trigger struct {
	phrase string
	glyph  string
	re     *regexp.Regexp
}

// Trigger table kept as an ordered slice so injection order is stable.
var triggers = compileTriggers([]struct{ phrase, glyph string }{
	{"love", "❤️"},
	{"happy", "😊"},
	{"sad", "😥"},
	{"laugh", "😂"},
	{"smile", "😄"},
	{"cry", "😢"},
	{"miss you", "🥺"},
	{"kiss", "😘"},
	{"hug", "🤗"},
	{"think", "🤔"},
	{"sweet", "🥰"},
	{"heart", "❤️"},
	{"star", "⭐"},
	{"yay", "🎉"},
	{"oh no", "😟"},
	{"sorry", "😔"},
	{"please", "🙏"},
	{"hi", "👋"},
	{"hello", "👋"},
	{"bye", "👋"},
	{"good night", "😴"},
	{"sleep", "😴"},
	{"dream", "💭"},
})

var shortcodes = map[string]string{
	"heart":         "❤️",
	"smile":         "😄",
	"blush":         "😊",
	"joy":           "😂",
	"wink":          "😉",
	"hugging_face":  "🤗",
	"sparkles":      "✨",
	"two_hearts":    "💕",
	"pleading_face": "🥺",
	"crying_face":   "😢",
}

var shortcodeRE = regexp.MustCompile(`:([a-z_]+):`)

func compileTriggers(pairs []struct{ phrase, glyph string }) []trigger {
	out := make([]trigger, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, trigger{
			phrase: p.phrase,
			glyph:  p.glyph,
			re:     regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p.phrase) + `\b`),
		})
	}
	return out
}

// Decorator augments reply text. The rand source is injected so tests can pin
// the probabilistic suffix branch. One Decorator serves every request
// goroutine, so a shared rng must be backed by a concurrency-safe source
// (randutil.NewLocked).
type Decorator struct {
	rng         *rand.Rand
	suffixProb  float64
	affectLines func(emotion.Label) []string
}

func New(rng *rand.Rand, suffixProb float64) *Decorator {
	if suffixProb < 0 || suffixProb > 1 {
		suffixProb = 0.5
	}
	return &Decorator{
		rng:         rng,
		suffixProb:  suffixProb,
		affectLines: tone.AffectLines,
	}
}

// Decorate runs the three augmentation steps in order: first-match emoji
// injection, shortcode expansion, probabilistic affect suffix.
func (d *Decorator) Decorate(text string, label emotion.Label) string {
	text = injectEmoji(text)
	text = expandShortcodes(text)

	if d.rng != nil && d.rng.Float64() < d.suffixProb {
		lines := d.affectLines(label)
		if len(lines) > 0 {
			text = strings.TrimRight(text, " ") + " " + lines[d.rng.Intn(len(lines))]
		}
	}
	return text
}

// injectEmoji appends each trigger's glyph after the first word-boundary
// occurrence of its phrase. First occurrence only; repeated triggers in one
// reply stay undecorated to avoid glyph spam.
func injectEmoji(text string) string {
	for _, t := range triggers {
		loc := t.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		text = text[:loc[1]] + " " + t.glyph + text[loc[1]:]
	}
	return text
}

func expandShortcodes(text string) string {
	return shortcodeRE.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.Trim(match, ":")
		if glyph, ok := shortcodes[name]; ok {
			return glyph
		}
		return match
	})
}
