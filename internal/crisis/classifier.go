package crisis

import (
	"strings"
)

// DefaultSevereThreshold is the number of distinct SEVERE matches that makes a
// message a crisis. A single match is reported as an advisory only. The value
// is a tuning heuristic, not a clinical threshold.
const DefaultSevereThreshold = 2

const (
	confidenceCritical     = 1.0
	confidenceSevere       = 0.9
	confidenceSevereSingle = 0.7
	confidenceElevated     = 0.5
	confidenceNormal       = 0.0
)

const (
	advisoryCritical     = "Immediate crisis detected. Emergency intervention required."
	advisorySevere       = "Severe emotional distress detected. Crisis protocol activated."
	advisorySevereSingle = "High distress level. Monitor closely and offer support resources."
	advisoryElevated     = "Elevated emotional distress. Provide empathetic support."
	advisoryNormal       = "No immediate crisis indicators detected."
)

// Verdict is the result of classifying one message.
type Verdict struct {
	IsCrisis        bool     `json:"is_crisis"`
	Severity        Severity `json:"severity"`
	MatchedKeywords []string `json:"matched_keywords"`
	Confidence      float64  `json:"confidence"`
	// AdvisoryMessage is an internal diagnostic. It is never shown to users.
	AdvisoryMessage string `json:"advisory_message"`
	// Topic is the supportive-response sub-topic found in the same message.
	Topic Topic `json:"topic"`
}

// Classifier evaluates messages against a Library. It holds no mutable state.
type Classifier struct {
	lib             *Library
	severeThreshold int
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithSevereThreshold sets how many distinct SEVERE matches make a crisis.
// Values below 1 are ignored.
func WithSevereThreshold(n int) ClassifierOption {
	return func(c *Classifier) {
		if n >= 1 {
			c.severeThreshold = n
		}
	}
}

// NewClassifier creates a classifier over lib. A nil lib uses DefaultLibrary.
func NewClassifier(lib *Library, opts ...ClassifierOption) *Classifier {
	if lib == nil {
		lib = DefaultLibrary()
	}
	c := &Classifier{
		lib:             lib,
		severeThreshold: DefaultSevereThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Library returns the phrase library in use.
func (c *Classifier) Library() *Library {
	return c.lib
}

// SevereThreshold returns the configured SEVERE crisis threshold.
func (c *Classifier) SevereThreshold() int {
	return c.severeThreshold
}

// Classify scans message tier by tier. The first tier that reaches a decision
// wins; lower tiers are not consulted afterwards.
func (c *Classifier) Classify(message string) Verdict {
	text := normalizeMessage(message)
	if text == "" {
		return normalVerdict()
	}

	topic := DetectTopic(text)

	if matches := match(text, c.lib.critical); len(matches) > 0 {
		return Verdict{
			IsCrisis:        true,
			Severity:        SeverityCritical,
			MatchedKeywords: matches,
			Confidence:      confidenceCritical,
			AdvisoryMessage: advisoryCritical,
			Topic:           topic,
		}
	}

	if matches := match(text, c.lib.severe); len(matches) > 0 {
		if len(matches) >= c.severeThreshold {
			return Verdict{
				IsCrisis:        true,
				Severity:        SeveritySevere,
				MatchedKeywords: matches,
				Confidence:      confidenceSevere,
				AdvisoryMessage: advisorySevere,
				Topic:           topic,
			}
		}
		return Verdict{
			IsCrisis:        false,
			Severity:        SeveritySevere,
			MatchedKeywords: matches,
			Confidence:      confidenceSevereSingle,
			AdvisoryMessage: advisorySevereSingle,
			Topic:           topic,
		}
	}

	if matches := match(text, c.lib.elevated); len(matches) > 0 {
		return Verdict{
			IsCrisis:        false,
			Severity:        SeverityElevated,
			MatchedKeywords: matches,
			Confidence:      confidenceElevated,
			AdvisoryMessage: advisoryElevated,
			Topic:           topic,
		}
	}

	v := normalVerdict()
	v.Topic = topic
	return v
}

func normalVerdict() Verdict {
	return Verdict{
		IsCrisis:        false,
		Severity:        SeverityNormal,
		MatchedKeywords: []string{},
		Confidence:      confidenceNormal,
		AdvisoryMessage: advisoryNormal,
		Topic:           TopicDefault,
	}
}

// normalizeMessage trims, lower-cases, repairs invalid UTF-8, and folds
// typographic apostrophes so "can’t" matches "can't".
func normalizeMessage(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.TrimSpace(strings.ToLower(s))
	return strings.NewReplacer("’", "'", "‘", "'").Replace(s)
}

// MessageText extracts classifiable text from an arbitrary decoded value.
// Anything that is not a string (including nil) is treated as empty.
func MessageText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}

var defaultClassifier = NewClassifier(defaultLibrary)

// Classify is a convenience function using the builtin library.
func Classify(message string) Verdict {
	return defaultClassifier.Classify(message)
}
