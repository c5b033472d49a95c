// Package crisis implements crisis detection and response escalation:
// a tiered phrase library, the classifier that scans messages against it,
// the escalation policy, and the fixed response catalog.
package crisis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Pattern is a single phrase matcher in the library.
type Pattern struct {
	// Tier is the tier this phrase belongs to.
	Tier Tier
	// Phrase is the normalized phrase as configured.
	Phrase string
	// Expr is the regex source compiled from Phrase.
	Expr string
	// Compiled is the compiled regex.
	Compiled *regexp.Regexp
	// Source indicates where this phrase came from: "builtin" or "config".
	Source string
}

// Extra holds additional phrases supplied at process start.
type Extra struct {
	Critical []string
	Severe   []string
	Elevated []string
}

// Library holds the three disjoint phrase tiers. It is immutable once built
// and safe for concurrent use.
type Library struct {
	critical []*Pattern
	severe   []*Pattern
	elevated []*Pattern

	// duplicates lists phrases dropped because an earlier tier already owned them.
	duplicates []string
}

var builtinCritical = []string{
	"suicide",
	"suicidal",
	"kill myself",
	"killing myself",
	"end my life",
	"ending my life",
	"take my life",
	"want to die",
	"wanna die",
	"no reason to live",
	"better off dead",
	"hurt myself",
	"cut myself",
	"self harm",
	"self-harm",
	"cutting",
	"burning myself",
	"starving myself",
	"overdose",
	"hang myself",
	"jump off",
	"shoot myself",
	"drown myself",
	"goodbye forever",
	"last time",
	"end it all",
	"wanna end it",
	"can't go on",
}

var builtinSevere = []string{
	"can't take it anymore",
	"give up",
	"hopeless",
	"no point",
	"worthless",
	"burden",
	"everyone would be better without me",
	"don't want to be alive",
	"too much pain",
	"can't handle this",
	"can't cope",
}

var builtinElevated = []string{
	"extremely depressed",
	"overwhelmed",
	"scared of myself",
	"thoughts are dark",
	"lost control",
}

// NewLibrary builds the library from the builtin phrases plus extra.
// Each phrase lands in exactly one tier: the first (highest) tier that lists it.
func NewLibrary(extra Extra) *Library {
	lib := &Library{}
	seen := make(map[string]bool)

	add := func(tier Tier, phrases []string, source string) []*Pattern {
		var out []*Pattern
		for _, raw := range phrases {
			phrase := normalizePhrase(raw)
			if phrase == "" {
				continue
			}
			if seen[phrase] {
				lib.duplicates = append(lib.duplicates, fmt.Sprintf("%s:%s", tier, phrase))
				continue
			}
			seen[phrase] = true
			out = append(out, compilePhrase(tier, phrase, source))
		}
		return out
	}

	lib.critical = add(TierCritical, builtinCritical, "builtin")
	lib.critical = append(lib.critical, add(TierCritical, extra.Critical, "config")...)
	lib.severe = add(TierSevere, builtinSevere, "builtin")
	lib.severe = append(lib.severe, add(TierSevere, extra.Severe, "config")...)
	lib.elevated = add(TierElevated, builtinElevated, "builtin")
	lib.elevated = append(lib.elevated, add(TierElevated, extra.Elevated, "config")...)

	return lib
}

// normalizePhrase lower-cases, folds typographic apostrophes, and collapses whitespace.
func normalizePhrase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// compilePhrase turns a phrase into a word-bounded, case-insensitive regex.
// Apostrophes are optional ("can't" also matches "cant") and spaces match any
// whitespace run. Word boundaries are only anchored on word characters.
func compilePhrase(tier Tier, phrase, source string) *Pattern {
	expr := regexp.QuoteMeta(phrase)
	expr = strings.ReplaceAll(expr, "'", "'?")
	expr = strings.ReplaceAll(expr, " ", `\s+`)
	if isWordByte(phrase[0]) {
		expr = `\b` + expr
	}
	if isWordByte(phrase[len(phrase)-1]) {
		expr += `\b`
	}
	return &Pattern{
		Tier:     tier,
		Phrase:   phrase,
		Expr:     expr,
		Compiled: regexp.MustCompile("(?i)" + expr),
		Source:   source,
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// match returns the phrases in patterns that occur in text, in scan order.
func match(text string, patterns []*Pattern) []string {
	var out []string
	for _, p := range patterns {
		if p.Compiled.MatchString(text) {
			out = append(out, p.Phrase)
		}
	}
	return out
}

// Patterns returns the patterns of one tier, in scan order.
func (l *Library) Patterns(tier Tier) []*Pattern {
	switch tier {
	case TierCritical:
		return l.critical
	case TierSevere:
		return l.severe
	case TierElevated:
		return l.elevated
	default:
		return nil
	}
}

// All returns all patterns grouped by tier name.
func (l *Library) All() map[string][]*Pattern {
	return map[string][]*Pattern{
		TierCritical.String(): l.critical,
		TierSevere.String():   l.severe,
		TierElevated.String(): l.elevated,
	}
}

// Duplicates lists "tier:phrase" entries dropped while building the library.
func (l *Library) Duplicates() []string {
	return append([]string(nil), l.duplicates...)
}

// Len returns the total number of patterns.
func (l *Library) Len() int {
	return len(l.critical) + len(l.severe) + len(l.elevated)
}

// PatternExport is the exported library for external tools.
type PatternExport struct {
	Version     string                `json:"version"`
	GeneratedAt time.Time             `json:"generated_at"`
	SHA256      string                `json:"sha256"`
	Tiers       map[string]TierExport `json:"tiers"`
	Metadata    PatternExportMetadata `json:"metadata"`
}

// TierExport is a single tier's phrases for export.
type TierExport struct {
	Description string           `json:"description"`
	Rule        string           `json:"rule"`
	Patterns    []PatternDetails `json:"patterns"`
}

// PatternDetails is a single phrase for export.
type PatternDetails struct {
	Phrase string `json:"phrase"`
	Expr   string `json:"expr"`
	Source string `json:"source"`
}

// PatternExportMetadata contains summary information about the export.
type PatternExportMetadata struct {
	PatternCount int            `json:"pattern_count"`
	TierCounts   map[string]int `json:"tier_counts"`
}

// Export exports all tiers in a structured, deterministic format.
func (l *Library) Export() *PatternExport {
	export := &PatternExport{
		Version:     "1.0.0",
		GeneratedAt: time.Now().UTC(),
		Tiers:       make(map[string]TierExport),
		Metadata: PatternExportMetadata{
			TierCounts: make(map[string]int),
		},
	}

	tiers := []struct {
		tier        Tier
		patterns    []*Pattern
		description string
		rule        string
	}{
		{TierCritical, l.critical, "Direct statements of suicidal intent or self-harm method", "any single match is a crisis"},
		{TierSevere, l.severe, "Severe distress short of explicit intent", "two or more distinct matches are a crisis; one is an advisory"},
		{TierElevated, l.elevated, "Concern-level language", "never a crisis; soft advisory only"},
	}

	for _, t := range tiers {
		patterns := make([]PatternDetails, 0, len(t.patterns))
		for _, p := range t.patterns {
			patterns = append(patterns, PatternDetails{
				Phrase: p.Phrase,
				Expr:   p.Expr,
				Source: p.Source,
			})
		}
		sort.Slice(patterns, func(i, j int) bool {
			return patterns[i].Phrase < patterns[j].Phrase
		})

		name := t.tier.String()
		export.Tiers[name] = TierExport{
			Description: t.description,
			Rule:        t.rule,
			Patterns:    patterns,
		}
		export.Metadata.TierCounts[name] = len(patterns)
		export.Metadata.PatternCount += len(patterns)
	}

	export.SHA256 = l.ComputeHash()
	return export
}

// ComputeHash returns a deterministic hash of all phrases for change detection.
func (l *Library) ComputeHash() string {
	var all []string
	for _, tier := range Tiers {
		for _, p := range l.Patterns(tier) {
			all = append(all, fmt.Sprintf("%s:%s", tier, p.Phrase))
		}
	}
	sort.Strings(all)

	h := sha256.New()
	for _, p := range all {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ExportJSON returns the export as indented JSON.
func (l *Library) ExportJSON() (string, error) {
	data, err := json.MarshalIndent(l.Export(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

var defaultLibrary = NewLibrary(Extra{})

// DefaultLibrary returns the builtin library.
func DefaultLibrary() *Library {
	return defaultLibrary
}
