package ddl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MatchMode controls how a TypeRule pattern is compared to a column name.
// Comparisons are always case-insensitive.
type MatchMode int

const (
	// MatchContains matches when the name equals or contains the pattern.
	MatchContains MatchMode = iota
	MatchSuffix
	MatchPrefix
	MatchExact
)

// TypeRule maps a name pattern to a SemanticType.
type TypeRule struct {
	Pattern string
	Match   MatchMode
	Type    SemanticType
}

// Matches reports whether the rule applies to the lower-cased column name.
func (r TypeRule) Matches(lowerName string) bool {
	p := strings.ToLower(r.Pattern)
	switch r.Match {
	case MatchSuffix:
		return strings.HasSuffix(lowerName, p)
	case MatchPrefix:
		return strings.HasPrefix(lowerName, p)
	case MatchExact:
		return lowerName == p
	default:
		return strings.Contains(lowerName, p)
	}
}

// Rules is an ordered rule list; earlier rules win.
type Rules []TypeRule

// Match returns the type of the first rule matching name.
func (rs Rules) Match(name string) (SemanticType, bool) {
	lower := strings.ToLower(name)
	for _, r := range rs {
		if r.Matches(lower) {
			return r.Type, true
		}
	}
	return SemanticType{}, false
}

// Infer resolves exactly one type for name: caller overrides first, then the
// built-in table, then STRING.
func Infer(name string, overrides, builtins Rules) SemanticType {
	if t, ok := overrides.Match(name); ok {
		return t
	}
	if t, ok := builtins.Match(name); ok {
		return t
	}
	return String
}

// InferColumns returns a copy of cols with Type set for one database's rules.
func InferColumns(cols []Column, overrides, builtins Rules) []Column {
	out := make([]Column, len(cols))
	for i, c := range cols {
		c.Type = Infer(c.Name, overrides, builtins)
		out[i] = c
	}
	return out
}

// BuiltinRules returns the naming heuristics in priority order. Amount and
// count columns both map to DECIMAL(24,6) so aggregates never overflow.
func BuiltinRules() Rules {
	money := Decimal(24, 6)
	return Rules{
		{Pattern: "_id", Match: MatchSuffix, Type: String},

		{Pattern: "_date", Match: MatchSuffix, Type: Date},
		{Pattern: "date", Match: MatchExact, Type: Date},
		{Pattern: "day", Match: MatchExact, Type: Date},

		{Pattern: "_time", Match: MatchSuffix, Type: DateTime},
		{Pattern: "datetime", Match: MatchContains, Type: DateTime},
		{Pattern: "timestamp", Match: MatchContains, Type: DateTime},

		{Pattern: "_amount", Match: MatchSuffix, Type: money},
		{Pattern: "_balance", Match: MatchSuffix, Type: money},
		{Pattern: "_price", Match: MatchSuffix, Type: money},
		{Pattern: "_amt", Match: MatchSuffix, Type: money},

		{Pattern: "_quantity", Match: MatchSuffix, Type: money},
		{Pattern: "_count", Match: MatchSuffix, Type: money},
		{Pattern: "_cnt", Match: MatchSuffix, Type: money},
		{Pattern: "_num", Match: MatchSuffix, Type: money},
		{Pattern: "_qty", Match: MatchSuffix, Type: money},
		{Pattern: "_days", Match: MatchSuffix, Type: money},

		{Pattern: "_flag", Match: MatchSuffix, Type: Boolean},
		{Pattern: "_is_", Match: MatchContains, Type: Boolean},
		{Pattern: "is_", Match: MatchPrefix, Type: Boolean},
		{Pattern: "has_", Match: MatchPrefix, Type: Boolean},
	}
}

// RuleSpec is the wire form of a caller-supplied rule. Both the short form
// {"pattern", "type"} and the keyword form {"keywords", "dataType",
// "priority"} are accepted.
type RuleSpec struct {
	Pattern  string   `json:"pattern,omitempty"`
	Type     string   `json:"type,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	DataType string   `json:"dataType,omitempty"`
	Priority int      `json:"priority,omitempty"`
	Match    string   `json:"match,omitempty"`
}

// UnmarshalJSON accepts a bare string "pattern=TYPE" as well as an object.
func (s *RuleSpec) UnmarshalJSON(b []byte) error {
	var short string
	if err := json.Unmarshal(b, &short); err == nil {
		pattern, typ, ok := strings.Cut(short, "=")
		if !ok {
			return fmt.Errorf("rule %q: want pattern=TYPE", short)
		}
		*s = RuleSpec{Pattern: strings.TrimSpace(pattern), Type: strings.TrimSpace(typ)}
		return nil
	}
	type plain RuleSpec
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*s = RuleSpec(p)
	return nil
}

var matchModes = map[string]MatchMode{
	"":         MatchContains,
	"contains": MatchContains,
	"suffix":   MatchSuffix,
	"prefix":   MatchPrefix,
	"exact":    MatchExact,
}

// CompileRules validates caller rule specs and flattens them into an ordered
// Rules list. Specs are ordered by ascending priority; ties keep the listed
// order. Errors wrap ErrInvalidInput.
func CompileRules(specs []RuleSpec) (Rules, error) {
	ordered := make([]RuleSpec, len(specs))
	copy(ordered, specs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	var rules Rules
	for i, s := range ordered {
		typ := strings.TrimSpace(s.Type)
		if typ == "" {
			typ = strings.TrimSpace(s.DataType)
		}
		if typ == "" {
			return nil, invalidInput("rule %d has no type", i)
		}
		mode, ok := matchModes[strings.ToLower(s.Match)]
		if !ok {
			return nil, invalidInput("rule %d has unknown match mode %q", i, s.Match)
		}

		patterns := s.Keywords
		if p := strings.TrimSpace(s.Pattern); p != "" {
			patterns = append([]string{p}, patterns...)
		}
		added := 0
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			rules = append(rules, TypeRule{Pattern: p, Match: mode, Type: ParseSemanticType(typ)})
			added++
		}
		if added == 0 {
			return nil, invalidInput("rule %d has no pattern", i)
		}
	}
	return rules, nil
}
