package crisis

import (
	"fmt"
	"strings"
)

// Tier is a priority class of crisis-indicating phrases.
// Lower values are scanned first and win over higher ones.
type Tier int

const (
	TierCritical Tier = iota
	TierSevere
	TierElevated
)

// Tiers lists every tier in scan order.
var Tiers = []Tier{TierCritical, TierSevere, TierElevated}

func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierSevere:
		return "severe"
	case TierElevated:
		return "elevated"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier maps a tier name to its Tier.
func ParseTier(s string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return TierCritical, true
	case "severe":
		return TierSevere, true
	case "elevated":
		return TierElevated, true
	default:
		return 0, false
	}
}

// Severity is the outcome level of a single classification.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityElevated
	SeveritySevere
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityNormal:
		return "normal"
	case SeverityElevated:
		return "elevated"
	case SeveritySevere:
		return "severe"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name. Unknown names decode to normal.
func (s *Severity) UnmarshalText(b []byte) error {
	*s = ParseSeverity(string(b))
	return nil
}

// ParseSeverity maps a severity name to its Severity, defaulting to normal.
func ParseSeverity(v string) Severity {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "critical":
		return SeverityCritical
	case "severe":
		return SeveritySevere
	case "elevated":
		return SeverityElevated
	default:
		return SeverityNormal
	}
}

// Escalates reports whether verdicts at this severity may trigger escalation.
func (s Severity) Escalates() bool {
	return s == SeverityCritical || s == SeveritySevere
}

// Topic is the sub-topic used to pick a supportive-first response.
type Topic int

const (
	TopicDefault Topic = iota
	TopicSuicide
	TopicSelfHarm
	TopicHopeless
)

// Topics lists every topic.
var Topics = []Topic{TopicDefault, TopicSuicide, TopicSelfHarm, TopicHopeless}

func (t Topic) String() string {
	switch t {
	case TopicSuicide:
		return "suicide"
	case TopicSelfHarm:
		return "self_harm"
	case TopicHopeless:
		return "hopeless"
	default:
		return "default"
	}
}

// MarshalText encodes the topic by name.
func (t Topic) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a topic name. Unknown names decode to default.
func (t *Topic) UnmarshalText(b []byte) error {
	*t = ParseTopic(string(b))
	return nil
}

// ParseTopic maps a topic name to its Topic, defaulting to TopicDefault.
func ParseTopic(v string) Topic {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "suicide":
		return TopicSuicide
	case "self_harm", "self-harm":
		return TopicSelfHarm
	case "hopeless":
		return TopicHopeless
	default:
		return TopicDefault
	}
}

// ResponseKind is the strategy chosen by the escalation policy.
type ResponseKind int

const (
	KindPassThrough ResponseKind = iota
	KindSupportiveFirst
	KindResource
)

func (k ResponseKind) String() string {
	switch k {
	case KindSupportiveFirst:
		return "supportive_first_response"
	case KindResource:
		return "resource_response"
	default:
		return "pass_through"
	}
}

// MarshalText encodes the kind by name.
func (k ResponseKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name. Unknown names decode to pass_through.
func (k *ResponseKind) UnmarshalText(b []byte) error {
	*k = ParseResponseKind(string(b))
	return nil
}

// ParseResponseKind maps a kind name to its ResponseKind.
func ParseResponseKind(v string) ResponseKind {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "supportive_first_response", "supportive", "supportive_first":
		return KindSupportiveFirst
	case "resource_response", "resource":
		return KindResource
	default:
		return KindPassThrough
	}
}
