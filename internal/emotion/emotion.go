// Package emotion scores the dominant emotion of a message by keyword counts.
package emotion

import (
	"regexp"
	"strings"
)

// Emotion is one of the recognised emotions.
type Emotion int

const (
	Neutral Emotion = iota
	Sadness
	Joy
	Anger
	Fear
)

// Emotions lists the scored emotions in tie-break order.
var Emotions = []Emotion{Sadness, Joy, Anger, Fear}

func (e Emotion) String() string {
	switch e {
	case Sadness:
		return "sadness"
	case Joy:
		return "joy"
	case Anger:
		return "anger"
	case Fear:
		return "fear"
	default:
		return "neutral"
	}
}

// MarshalText encodes the emotion by name.
func (e Emotion) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes an emotion name. Unknown names decode to neutral.
func (e *Emotion) UnmarshalText(b []byte) error {
	*e = Parse(string(b))
	return nil
}

// Parse maps a name to its Emotion, defaulting to Neutral.
func Parse(s string) Emotion {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sadness":
		return Sadness
	case "joy":
		return Joy
	case "anger":
		return Anger
	case "fear":
		return Fear
	default:
		return Neutral
	}
}

// Negative reports whether the emotion extends a negative streak.
func (e Emotion) Negative() bool {
	return e == Sadness || e == Anger || e == Fear
}

const (
	baseConfidence    = 0.5
	confidencePerHit  = 0.15
	maxConfidence     = 0.9
	neutralConfidence = 0.5
)

// Result is the outcome of classifying one message.
type Result struct {
	Emotion    Emotion `json:"emotion"`
	Confidence float64 `json:"confidence"`
	Score      int     `json:"score"`
}

// Negative reports whether the detected emotion is negative.
func (r Result) Negative() bool {
	return r.Emotion.Negative()
}

var keywords = map[Emotion][]string{
	Sadness: {
		"sad", "depressed", "crying", "cry", "heartbroken", "lonely", "devastated",
		"unhappy", "miserable", "down", "broke up", "breakup", "break up", "lost", "hurt", "pain",
		"grief", "mourning", "disappointed", "disappointing", "failed", "failure",
		"want her back", "want him back", "want them back", "miss", "missing",
		"terrible", "awful", "horrible", "sucks", "can't", "ending my life",
		"end my life", "feel like dying", "rather be dead", "no point",
	},
	Joy: {
		"happy", "happiness", "excited", "excitement", "great", "wonderful", "amazing", "fantastic",
		"achieved", "achieve", "won", "win", "love", "awesome", "brilliant", "thrilled",
		"delighted", "celebrate", "celebration", "pride", "proud", "best", "excellent",
		"got a job", "got job", "promoted", "passed", "success", "succeed",
		"congratulations", "amazing news", "good news", "great news",
	},
	Anger: {
		"angry", "anger", "furious", "rage", "hate", "mad", "pissed", "frustrated",
		"annoyed", "irritated", "livid", "enraged", "upset", "betrayed",
		"infuriated", "outraged", "boiling", "seething",
	},
	Fear: {
		"scared", "scaring", "anxious", "anxiety", "worried", "worry", "afraid", "nervous",
		"terrified", "terror", "panic", "frightened", "trembling", "dread",
		"uncertain", "worried about", "afraid of", "scared of",
	},
}

// Classifier scores messages against compiled keyword lists.
type Classifier struct {
	patterns map[Emotion][]*regexp.Regexp
}

// NewClassifier compiles the builtin keyword lists.
func NewClassifier() *Classifier {
	c := &Classifier{patterns: make(map[Emotion][]*regexp.Regexp)}
	for _, e := range Emotions {
		seen := make(map[string]bool)
		for _, kw := range keywords[e] {
			if seen[kw] {
				continue
			}
			seen[kw] = true
			c.patterns[e] = append(c.patterns[e], compileKeyword(kw))
		}
	}
	return c
}

func compileKeyword(kw string) *regexp.Regexp {
	expr := regexp.QuoteMeta(kw)
	expr = strings.ReplaceAll(expr, "'", "'?")
	expr = strings.ReplaceAll(expr, " ", `\s+`)
	return regexp.MustCompile(`(?i)\b` + expr + `\b`)
}

// Classify returns the highest scoring emotion. Ties go to the emotion listed
// first in Emotions; no hits at all is Neutral.
func (c *Classifier) Classify(text string) Result {
	text = strings.NewReplacer("’", "'", "‘", "'").Replace(strings.TrimSpace(text))
	if text == "" {
		return Result{Emotion: Neutral, Confidence: neutralConfidence}
	}

	best, bestScore := Neutral, 0
	for _, e := range Emotions {
		score := 0
		for _, re := range c.patterns[e] {
			if re.MatchString(text) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = e, score
		}
	}

	if bestScore == 0 {
		return Result{Emotion: Neutral, Confidence: neutralConfidence}
	}
	return Result{
		Emotion:    best,
		Confidence: min(maxConfidence, baseConfidence+confidencePerHit*float64(bestScore)),
		Score:      bestScore,
	}
}

var defaultClassifier = NewClassifier()

// Classify scores text with the builtin keyword lists.
func Classify(text string) Result {
	return defaultClassifier.Classify(text)
}
