package crisis

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDefaultLibrary_TiersAreDisjoint(t *testing.T) {
	lib := DefaultLibrary()
	owner := make(map[string]Tier)
	for _, tier := range Tiers {
		for _, p := range lib.Patterns(tier) {
			if prev, ok := owner[p.Phrase]; ok {
				t.Fatalf("phrase %q in both %s and %s", p.Phrase, prev, tier)
			}
			owner[p.Phrase] = tier
		}
	}
	if len(lib.Duplicates()) != 0 {
		t.Fatalf("builtin library should have no duplicates, got %v", lib.Duplicates())
	}
	if lib.Len() != len(owner) {
		t.Fatalf("Len()=%d want %d", lib.Len(), len(owner))
	}
}

func TestDefaultLibrary_Compiles(t *testing.T) {
	for tier, patterns := range DefaultLibrary().All() {
		if len(patterns) == 0 {
			t.Fatalf("tier %s is empty", tier)
		}
		for _, p := range patterns {
			if p.Compiled == nil {
				t.Fatalf("pattern %q not compiled", p.Phrase)
			}
			if !p.Compiled.MatchString(p.Phrase) {
				t.Fatalf("pattern %q does not match its own phrase", p.Phrase)
			}
			if p.Source != "builtin" {
				t.Fatalf("pattern %q source=%q", p.Phrase, p.Source)
			}
		}
	}
}

func TestNewLibrary_HighestTierWins(t *testing.T) {
	lib := NewLibrary(Extra{
		Critical: []string{"  No Way Out  "},
		Severe:   []string{"no way out", "hopeless", "empty inside"},
		Elevated: []string{"EMPTY   inside", "numb"},
	})

	if !hasPhrase(lib, TierCritical, "no way out") {
		t.Fatalf("expected critical to own 'no way out'")
	}
	if hasPhrase(lib, TierSevere, "no way out") {
		t.Fatalf("severe must not repeat 'no way out'")
	}
	if !hasPhrase(lib, TierSevere, "empty inside") || hasPhrase(lib, TierElevated, "empty inside") {
		t.Fatalf("severe should own 'empty inside'")
	}
	if !hasPhrase(lib, TierElevated, "numb") {
		t.Fatalf("expected elevated 'numb'")
	}

	dups := strings.Join(lib.Duplicates(), ",")
	for _, want := range []string{"severe:no way out", "severe:hopeless", "elevated:empty inside"} {
		if !strings.Contains(dups, want) {
			t.Fatalf("duplicates %q missing %q", dups, want)
		}
	}

	c := NewClassifier(lib)
	if v := c.Classify("there is no way out"); v.Severity != SeverityCritical {
		t.Fatalf("severity=%s want critical", v.Severity)
	}
	if v := c.Classify("I just feel numb"); v.Severity != SeverityElevated {
		t.Fatalf("severity=%s want elevated", v.Severity)
	}
}

func TestNewLibrary_ConfigSourceAndBlank(t *testing.T) {
	lib := NewLibrary(Extra{Elevated: []string{"", "   ", "drained"}})
	ps := lib.Patterns(TierElevated)
	last := ps[len(ps)-1]
	if last.Phrase != "drained" || last.Source != "config" {
		t.Fatalf("last elevated = %+v", last)
	}
	if lib.Len() != DefaultLibrary().Len()+1 {
		t.Fatalf("blank phrases should be skipped")
	}
}

func TestCompilePhrase_EscapesMetacharacters(t *testing.T) {
	p := compilePhrase(TierSevere, "(why) me?", "config")
	if !p.Compiled.MatchString("honestly (why) me? again") {
		t.Fatalf("literal phrase should match, expr=%s", p.Expr)
	}
	if p.Compiled.MatchString("why me") {
		t.Fatalf("metacharacters must be literal, expr=%s", p.Expr)
	}
}

func TestCompilePhrase_WhitespaceRuns(t *testing.T) {
	p := compilePhrase(TierCritical, "kill myself", "builtin")
	if !p.Compiled.MatchString("I want to KILL \t  myself") {
		t.Fatalf("whitespace runs should match")
	}
}

func TestComputeHash_Deterministic(t *testing.T) {
	a := NewLibrary(Extra{}).ComputeHash()
	b := DefaultLibrary().ComputeHash()
	if a != b || len(a) != 64 {
		t.Fatalf("hash mismatch: %s vs %s", a, b)
	}
	c := NewLibrary(Extra{Elevated: []string{"drained"}}).ComputeHash()
	if c == a {
		t.Fatalf("hash should change when phrases change")
	}
}

func TestExportJSON(t *testing.T) {
	out, err := DefaultLibrary().ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	var export PatternExport
	if err := json.Unmarshal([]byte(out), &export); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if export.Metadata.PatternCount != DefaultLibrary().Len() {
		t.Fatalf("pattern_count=%d want %d", export.Metadata.PatternCount, DefaultLibrary().Len())
	}
	for _, tier := range Tiers {
		te, ok := export.Tiers[tier.String()]
		if !ok {
			t.Fatalf("missing tier %s", tier)
		}
		for i := 1; i < len(te.Patterns); i++ {
			if te.Patterns[i-1].Phrase > te.Patterns[i].Phrase {
				t.Fatalf("tier %s patterns not sorted", tier)
			}
		}
	}
	if export.SHA256 != DefaultLibrary().ComputeHash() {
		t.Fatalf("sha mismatch")
	}
}

func TestParseTier(t *testing.T) {
	for _, tier := range Tiers {
		got, ok := ParseTier(strings.ToUpper(tier.String()))
		if !ok || got != tier {
			t.Fatalf("ParseTier(%s)=%v,%v", tier, got, ok)
		}
	}
	if _, ok := ParseTier("mild"); ok {
		t.Fatalf("unknown tier should not parse")
	}
}

func hasPhrase(lib *Library, tier Tier, phrase string) bool {
	for _, p := range lib.Patterns(tier) {
		if p.Phrase == phrase {
			return true
		}
	}
	return false
}
