// Package rules provides a YAML-based rules engine for transaction
// classification. Rules match on the transaction description and mark
// flags such as liquidation, which the weekly report totals separately.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var embeddedRules []byte

// MatchType defines how patterns are matched against transaction descriptions
type MatchType string

const (
	// MatchTypeExact requires the pattern to match the entire description exactly
	MatchTypeExact MatchType = "exact"
	// MatchTypeContains requires the pattern to be a substring of the description
	MatchTypeContains MatchType = "contains"
)

// Flags represent boolean classifications a rule can set on a transaction
type Flags struct {
	Liquidation bool `yaml:"liquidation"`
}

// Rule represents a single classification rule.
//
// Rules are created via YAML loading (NewEngine, LoadEmbedded, LoadFromFile),
// which validates all invariants:
//   - Priority in range [0, 999]
//   - Pattern must not be empty after trimming
//   - MatchType must be "exact" or "contains"
//
// Direct struct construction bypasses validation. Fields are exported for
// YAML unmarshaling and testing.
type Rule struct {
	Name      string    `yaml:"name"`
	Pattern   string    `yaml:"pattern"`
	MatchType MatchType `yaml:"match_type"`
	Priority  int       `yaml:"priority"`
	Flags     Flags     `yaml:"flags"`
}

// RuleSet represents the top-level YAML structure
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// MatchResult contains the result of applying a rule
type MatchResult struct {
	Liquidation bool
	RuleName    string // For debugging
}

// Engine performs rule matching on transaction descriptions
type Engine struct {
	rules []Rule // Sorted by priority (highest first)
}

// NewEngine creates a rules engine from YAML data
func NewEngine(rulesData []byte) (*Engine, error) {
	var ruleSet RuleSet
	if err := yaml.Unmarshal(rulesData, &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}

	for i, rule := range ruleSet.Rules {
		if rule.Priority < 0 || rule.Priority > 999 {
			return nil, fmt.Errorf("rule %d (%s): priority must be in [0,999], got %d", i, rule.Name, rule.Priority)
		}
		if rule.MatchType != MatchTypeExact && rule.MatchType != MatchTypeContains {
			return nil, fmt.Errorf("rule %d (%s): invalid match_type %q (must be 'exact' or 'contains')", i, rule.Name, rule.MatchType)
		}
		if strings.TrimSpace(rule.Pattern) == "" {
			return nil, fmt.Errorf("rule %d (%s): pattern cannot be empty", i, rule.Name)
		}
	}

	// Sort rules by priority (highest first). Use SliceStable to preserve
	// YAML file order for rules with equal priority, which keeps matching
	// deterministic.
	sortedRules := make([]Rule, len(ruleSet.Rules))
	copy(sortedRules, ruleSet.Rules)
	sort.SliceStable(sortedRules, func(i, j int) bool {
		return sortedRules[i].Priority > sortedRules[j].Priority
	})

	return &Engine{rules: sortedRules}, nil
}

// LoadEmbedded loads the embedded rules.yaml file
func LoadEmbedded() (*Engine, error) {
	engine, err := NewEngine(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules (possible binary corruption): %w", err)
	}
	return engine, nil
}

// LoadFromFile loads rules from a filesystem path
func LoadFromFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	engine, err := NewEngine(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", path, err)
	}
	return engine, nil
}

// Match applies rules to a transaction description and returns the first
// match. Rules are evaluated in priority order (highest first); equal
// priorities keep their YAML file order. Returns (nil, false) if no rule
// matches.
func (e *Engine) Match(description string) (*MatchResult, bool) {
	normalizedDesc := strings.ToLower(strings.TrimSpace(description))

	for _, rule := range e.rules {
		normalizedPattern := strings.ToLower(strings.TrimSpace(rule.Pattern))

		matched := false
		switch rule.MatchType {
		case MatchTypeExact:
			matched = normalizedDesc == normalizedPattern
		case MatchTypeContains:
			matched = strings.Contains(normalizedDesc, normalizedPattern)
		}

		if matched {
			return &MatchResult{
				Liquidation: rule.Flags.Liquidation,
				RuleName:    rule.Name,
			}, true
		}
	}

	return nil, false
}

// GetRules returns a copy of the rules for inspection. Rule fields are all
// value types, so modifying the returned slice cannot affect engine state.
// Rules come back in priority order (highest first).
func (e *Engine) GetRules() []Rule {
	result := make([]Rule, len(e.rules))
	copy(result, e.rules)
	return result
}
