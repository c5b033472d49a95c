package crisis

import "regexp"

// topicRule binds a sub-topic to the phrases that select it.
type topicRule struct {
	topic    Topic
	patterns []*regexp.Regexp
}

// topicRules are checked in order; the first rule with any hit wins.
var topicRules = []topicRule{
	{TopicSuicide, compileTopic("suicide", "kill myself", "end it all", "no point living")},
	{TopicSelfHarm, compileTopic("hurt myself", "self harm", "cutting")},
	{TopicHopeless, compileTopic("no hope", "hopeless", "give up", "no point")},
}

func compileTopic(phrases ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, compilePhrase(TierCritical, normalizePhrase(p), "builtin").Compiled)
	}
	return out
}

// DetectTopic runs the secondary keyword scan that picks a supportive-first template.
func DetectTopic(message string) Topic {
	text := normalizeMessage(message)
	if text == "" {
		return TopicDefault
	}
	for _, rule := range topicRules {
		for _, re := range rule.patterns {
			if re.MatchString(text) {
				return rule.topic
			}
		}
	}
	return TopicDefault
}

const (
	supportiveDefault = "I hear you, and what you're feeling is valid. Sometimes our thoughts can feel overwhelming. I'm here with you right now. Can you tell me more about what brought this on?"

	supportiveSuicide = "I'm really concerned about you right now. These feelings can be incredibly painful, but they don't have to be permanent. You reached out to me, which shows incredible strength. What's making you feel this way?"

	supportiveSelfHarm = "Thank you for trusting me with this. Those urges can be really intense. Let's work through this together. What usually helps you when you feel this way?"

	supportiveHopeless = "I understand feeling like there's no way forward. But you're still here, and that matters. Let's take this one moment at a time. What's the hardest part right now?"
)

const resourceCritical = `I'm really concerned about what you've shared with me.

You're not alone, and help is available right now:

IMMEDIATE HELP (USA):
988 Suicide & Crisis Lifeline
Call: 988
Text: "HELLO" to 741741
Available: 24/7

IMMEDIATE HELP (INDIA):
AASRA Mental Health Support
Call: +91-9820466726
Website: www.aasra.info
Available: 24/7

EMERGENCY SERVICES:
India: 112
USA: 911
UK: 999
Call if you're in immediate danger.

Please reach out to one of these services now.

They are trained professionals who genuinely want to help. You deserve that support.

Your life has value. This moment of pain is not the end of your story.

I'm here, but please also talk to a real human who can give you the support you truly need right now.`

const resourceSevere = `I can sense you're going through something incredibly difficult right now.

If you're having thoughts of harming yourself, please reach out:

988 Suicide & Crisis Lifeline: call or text 988 (USA)
AASRA: +91-9820466726 (India)

If you are in immediate danger, call emergency services: 911 (USA), 112 (India), 999 (UK).

These are trained professionals available 24/7. You don't have to face this alone.

I'm here to listen, but professional support can provide what you truly need right now.`

const resourceGeneric = `I hear that you're struggling right now. That takes courage to share.

Remember:
- You're talking to an AI, and I have limits
- Professional support is available 24/7 if things feel overwhelming
- 988 (USA) or +91-9820466726 (India)
- In an emergency, call 911 (USA), 112 (India), or 999 (UK)

You matter. Would you like to talk about what's on your mind, or would coping strategies help?`

// SupportiveResponse returns the supportive-first template for a topic.
func SupportiveResponse(t Topic) string {
	switch t {
	case TopicSuicide:
		return supportiveSuicide
	case TopicSelfHarm:
		return supportiveSelfHarm
	case TopicHopeless:
		return supportiveHopeless
	case TopicDefault:
		return supportiveDefault
	default:
		return supportiveDefault
	}
}

// ResourceResponse returns the resource template for a severity.
// Anything other than critical or severe gets the generic block.
func ResourceResponse(s Severity) string {
	switch s {
	case SeverityCritical:
		return resourceCritical
	case SeveritySevere:
		return resourceSevere
	case SeverityElevated, SeverityNormal:
		return resourceGeneric
	default:
		return resourceGeneric
	}
}

// Render returns the response text for kind keyed by a topic or severity name.
// Unknown keys fall back to the default or generic template. Pass-through has
// no catalog text and renders empty; the conversational layer owns that reply.
func Render(kind ResponseKind, key string) string {
	switch kind {
	case KindSupportiveFirst:
		return SupportiveResponse(ParseTopic(key))
	case KindResource:
		return ResourceResponse(ParseSeverity(key))
	case KindPassThrough:
		return ""
	default:
		return ""
	}
}

// Resource is one crisis support contact.
type Resource struct {
	Region    string `json:"region"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Text      string `json:"text,omitempty"`
	Website   string `json:"website,omitempty"`
	Available string `json:"available,omitempty"`
	Note      string `json:"note,omitempty"`
}

// Resources returns the hotline and emergency contacts quoted in resource responses.
func Resources() []Resource {
	return []Resource{
		{
			Region:    "global",
			Name:      "988 Suicide & Crisis Lifeline (USA)",
			Phone:     "988",
			Text:      `Text "HELLO" to 741741`,
			Available: "24/7",
		},
		{
			Region:    "india",
			Name:      "AASRA (India)",
			Phone:     "+91-9820466726",
			Website:   "http://www.aasra.info",
			Available: "24/7",
		},
		{
			Region: "emergency",
			Name:   "Emergency Services",
			Phone:  "112 (India) | 911 (USA) | 999 (UK)",
			Note:   "If you are in immediate danger, call emergency services now.",
		},
	}
}
