package crisis

import (
	"reflect"
	"strings"
	"testing"
)

func TestClassify_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		severity   Severity
		isCrisis   bool
		confidence float64
	}{
		{"critical intent", "I want to kill myself", SeverityCritical, true, 1.0},
		{"single severe", "I feel hopeless", SeveritySevere, false, 0.7},
		{"double severe", "I feel hopeless and I can't take it anymore", SeveritySevere, true, 0.9},
		{"elevated only", "I feel extremely depressed", SeverityElevated, false, 0.5},
		{"empty", "", SeverityNormal, false, 0.0},
		{"whitespace", "   \t\n ", SeverityNormal, false, 0.0},
		{"benign", "I had a nice walk today", SeverityNormal, false, 0.0},
		{"upper case", "I AM SUICIDAL", SeverityCritical, true, 1.0},
		{"farewell", "this is the last time you will hear from me", SeverityCritical, true, 1.0},
		{"curly apostrophe", "I can’t take it anymore, I feel worthless", SeveritySevere, true, 0.9},
		{"missing apostrophe", "i cant take it anymore and i am a burden", SeveritySevere, true, 0.9},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := Classify(tc.message)
			if v.Severity != tc.severity {
				t.Fatalf("severity=%s want %s", v.Severity, tc.severity)
			}
			if v.IsCrisis != tc.isCrisis {
				t.Fatalf("is_crisis=%v want %v", v.IsCrisis, tc.isCrisis)
			}
			if v.Confidence != tc.confidence {
				t.Fatalf("confidence=%v want %v", v.Confidence, tc.confidence)
			}
			if v.AdvisoryMessage == "" {
				t.Fatalf("expected advisory message")
			}
		})
	}
}

func TestClassify_CriticalWinsOverOtherTiers(t *testing.T) {
	msgs := []string{
		"I feel hopeless, worthless, a burden, and I want to end my life",
		"extremely depressed and thinking about an overdose",
		"lost control, can't cope, suicidal",
	}
	for _, msg := range msgs {
		v := Classify(msg)
		if v.Severity != SeverityCritical || !v.IsCrisis {
			t.Fatalf("Classify(%q) = %s/%v, want critical crisis", msg, v.Severity, v.IsCrisis)
		}
		for _, kw := range v.MatchedKeywords {
			found := false
			for _, p := range DefaultLibrary().Patterns(TierCritical) {
				if p.Phrase == kw {
					found = true
				}
			}
			if !found {
				t.Fatalf("matched keyword %q is not a critical phrase", kw)
			}
		}
	}
}

func TestClassify_EverySevereSingleIsAdvisory(t *testing.T) {
	for _, p := range DefaultLibrary().Patterns(TierSevere) {
		msg := "lately " + p.Phrase + " is how it feels"
		v := Classify(msg)
		if v.Severity != SeveritySevere || v.IsCrisis {
			t.Fatalf("Classify(%q) = %s/%v, want severe advisory", msg, v.Severity, v.IsCrisis)
		}
		if len(v.MatchedKeywords) != 1 || v.MatchedKeywords[0] != p.Phrase {
			t.Fatalf("matched=%v want [%s]", v.MatchedKeywords, p.Phrase)
		}
	}
}

func TestClassify_EverySeverePairIsCrisis(t *testing.T) {
	severe := DefaultLibrary().Patterns(TierSevere)
	for i := 0; i < len(severe); i++ {
		for j := i + 1; j < len(severe); j++ {
			msg := severe[i].Phrase + ". " + severe[j].Phrase
			v := Classify(msg)
			if v.Severity == SeverityCritical {
				continue
			}
			if v.Severity != SeveritySevere || !v.IsCrisis {
				t.Fatalf("Classify(%q) = %s/%v, want severe crisis", msg, v.Severity, v.IsCrisis)
			}
		}
	}
}

func TestClassify_EveryCriticalPhrase(t *testing.T) {
	for _, p := range DefaultLibrary().Patterns(TierCritical) {
		v := Classify("honestly " + p.Phrase)
		if v.Severity != SeverityCritical || !v.IsCrisis || v.Confidence != 1.0 {
			t.Fatalf("phrase %q: got %s/%v/%v", p.Phrase, v.Severity, v.IsCrisis, v.Confidence)
		}
	}
}

func TestClassify_CollectsAllMatchesInScanOrder(t *testing.T) {
	v := Classify("I feel worthless and hopeless")
	want := []string{"hopeless", "worthless"}
	if !reflect.DeepEqual(v.MatchedKeywords, want) {
		t.Fatalf("matched=%v want %v", v.MatchedKeywords, want)
	}
}

func TestClassify_LastTimeIsCritical(t *testing.T) {
	v := Classify("This is the LAST TIME you will hear from me")
	if !reflect.DeepEqual(v.MatchedKeywords, []string{"last time"}) {
		t.Fatalf("matched=%v want [last time]", v.MatchedKeywords)
	}
	if v := Classify("the lasting time we spent together"); v.Severity != SeverityNormal {
		t.Fatalf("severity=%s matched=%v, want normal", v.Severity, v.MatchedKeywords)
	}
}

func TestClassify_WordBoundaries(t *testing.T) {
	// "burdensome" must not trigger "burden"; "pointless" must not trigger "no point".
	v := Classify("this is a burdensome and pointless meeting")
	if v.Severity != SeverityNormal {
		t.Fatalf("severity=%s matched=%v, want normal", v.Severity, v.MatchedKeywords)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	msgs := []string{"", "I feel hopeless", "I want to kill myself", "overwhelmed today", "hello"}
	for _, msg := range msgs {
		a := Classify(msg)
		b := Classify(msg)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("Classify(%q) not idempotent: %#v vs %#v", msg, a, b)
		}
	}
}

func TestClassify_InvalidUTF8(t *testing.T) {
	v := Classify("hopeless \xff\xfe")
	if v.Severity != SeveritySevere {
		t.Fatalf("severity=%s want severe", v.Severity)
	}
}

func TestClassify_NormalHasEmptyMatches(t *testing.T) {
	v := Classify("")
	if v.MatchedKeywords == nil || len(v.MatchedKeywords) != 0 {
		t.Fatalf("expected empty non-nil matches, got %#v", v.MatchedKeywords)
	}
}

func TestWithSevereThreshold(t *testing.T) {
	c := NewClassifier(nil, WithSevereThreshold(1))
	v := c.Classify("I feel hopeless")
	if !v.IsCrisis || v.Confidence != 0.9 {
		t.Fatalf("threshold 1: got %v/%v, want crisis 0.9", v.IsCrisis, v.Confidence)
	}

	c = NewClassifier(nil, WithSevereThreshold(3))
	v = c.Classify("I feel hopeless and worthless")
	if v.IsCrisis {
		t.Fatalf("threshold 3: two matches should not be a crisis")
	}

	c = NewClassifier(nil, WithSevereThreshold(0))
	if c.SevereThreshold() != DefaultSevereThreshold {
		t.Fatalf("threshold 0 should be ignored, got %d", c.SevereThreshold())
	}
}

func TestClassify_Topic(t *testing.T) {
	tests := []struct {
		msg  string
		want Topic
	}{
		{"I want to kill myself", TopicSuicide},
		{"I keep cutting and I want to end my life", TopicSelfHarm},
		{"I feel hopeless and I can't take it anymore", TopicHopeless},
		{"I am suicidal", TopicDefault},
		{"there is no point living", TopicSuicide},
	}
	for _, tc := range tests {
		if got := Classify(tc.msg).Topic; got != tc.want {
			t.Fatalf("topic(%q)=%s want %s", tc.msg, got, tc.want)
		}
	}
}

func TestMessageText(t *testing.T) {
	if MessageText(nil) != "" {
		t.Fatalf("nil should be empty")
	}
	if MessageText(42) != "" {
		t.Fatalf("non-string should be empty")
	}
	if MessageText(map[string]any{"a": 1}) != "" {
		t.Fatalf("object should be empty")
	}
	if MessageText("hi") != "hi" {
		t.Fatalf("string passthrough")
	}
	if v := Classify(MessageText(nil)); v.Severity != SeverityNormal {
		t.Fatalf("nil input severity=%s", v.Severity)
	}
}

func BenchmarkClassify(b *testing.B) {
	msg := strings.Repeat("today was long and I am tired but okay ", 20)
	for i := 0; i < b.N; i++ {
		_ = Classify(msg)
	}
}
