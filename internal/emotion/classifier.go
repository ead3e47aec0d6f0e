package emotion

import (
	"regexp"
	"strings"
)

// Label is one emotion from the closed set the tone tables understand.
type Label string

const (
	Happy    Label = "Happy"
	Sad      Label = "Sad"
	Angry    Label = "Angry"
	Fear     Label = "Fear"
	Surprise Label = "Surprise"
	Neutral  Label = "Neutral"
)

// Labels lists the closed set, Neutral last. The slice order is also the
// tie-break precedence: an earlier label keeps a tie.
var Labels = []Label{Happy, Sad, Angry, Fear, Surprise, Neutral}

// Result carries the chosen label. Fallback is set when no cue matched and
// the classifier defaulted to Neutral, so callers can tell a scored Neutral
// apart from the no-signal branch.
type Result struct {
	Label    Label
	Fallback bool
}

var keywordBuckets = map[Label][]string{
	Happy: {
		"happy", "glad", "joy", "wonderful", "great", "awesome", "amazing",
		"love", "yay", "haha", "lol", "excited", "smile", "fun", "best day",
	},
	Sad: {
		"sad", "unhappy", "cry", "crying", "miss you", "lonely", "alone",
		"depressed", "down", "hurt", "heartbroken", "upset", "tears", "lost",
	},
	Angry: {
		"angry", "furious", "mad", "annoyed", "hate", "rage", "fed up",
		"pissed", "frustrated", "unfair", "stupid",
	},
	Fear: {
		"scared", "afraid", "fear", "terrified", "worried", "anxious",
		"nervous", "panic", "frightened", "nightmare",
	},
	Surprise: {
		"wow", "whoa", "surprised", "unbelievable", "no way", "really",
		"unexpected", "shocked", "omg", "can't believe",
	},
}

var punctuationBoost = map[Label]int{
	Happy:    1,
	Surprise: 2,
}

// Word-boundary matchers compiled once per keyword, in the precedence order
// of Labels so scoring stays deterministic.
var bucketPatterns = compileBuckets()

type keywordPattern struct {
	label Label
	re    *regexp.Regexp
}

func compileBuckets() []keywordPattern {
	patterns := make([]keywordPattern, 0, 64)
	for _, label := range Labels {
		for _, word := range keywordBuckets[label] {
			patterns = append(patterns, keywordPattern{
				label: label,
				re:    regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`),
			})
		}
	}
	return patterns
}

// Classify maps free text to one label from the closed set. It never fails:
// empty input and cue-free input both land on the Neutral fallback branch.
func Classify(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Label: Neutral, Fallback: true}
	}

	scores := make(map[Label]int, len(Labels))
	for _, p := range bucketPatterns {
		if p.re.MatchString(text) {
			scores[p.label] += 3
		}
	}

	if exclamations := strings.Count(text, "!"); exclamations > 0 {
		scores[Surprise] += exclamations * punctuationBoost[Surprise]
		if exclamations == 1 {
			scores[Happy] += punctuationBoost[Happy]
		}
	}

	best := Neutral
	bestScore := 0
	for _, label := range Labels {
		// Strictly greater, so the earlier label in precedence wins ties.
		if s := scores[label]; s > bestScore {
			best = label
			bestScore = s
		}
	}

	if bestScore == 0 {
		return Result{Label: Neutral, Fallback: true}
	}
	return Result{Label: best}
}
