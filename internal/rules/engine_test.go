package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewEngine_ValidRules(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Test Rule"
    pattern: "LIQUID"
    match_type: "contains"
    priority: 100
    flags:
      liquidation: true
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if len(engine.rules) != 1 {
		t.Errorf("NewEngine() rules count = %d, want 1", len(engine.rules))
	}

	rule := engine.rules[0]
	if rule.Name != "Test Rule" {
		t.Errorf("rule.Name = %s, want Test Rule", rule.Name)
	}
	if rule.Priority != 100 {
		t.Errorf("rule.Priority = %d, want 100", rule.Priority)
	}
	if !rule.Flags.Liquidation {
		t.Error("rule.Flags.Liquidation = false, want true")
	}
}

func TestNewEngine_InvalidPriority(t *testing.T) {
	tests := []struct {
		name     string
		priority string
	}{
		{"negative priority", "-1"},
		{"priority too high", "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rulesYAML := `
rules:
  - name: "Invalid Priority"
    pattern: "TEST"
    match_type: "contains"
    priority: ` + tt.priority + `
    flags:
      liquidation: false
`
			_, err := NewEngine([]byte(rulesYAML))
			if err == nil {
				t.Errorf("NewEngine() expected error for %s", tt.name)
			}
		})
	}
}

func TestNewEngine_InvalidMatchType(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Invalid Match Type"
    pattern: "TEST"
    match_type: "regex"
    priority: 100
    flags:
      liquidation: false
`
	_, err := NewEngine([]byte(rulesYAML))
	if err == nil {
		t.Error("NewEngine() expected error for invalid match_type")
	}
}

func TestNewEngine_EmptyPattern(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Empty Pattern"
    pattern: ""
    match_type: "contains"
    priority: 100
    flags:
      liquidation: false
`
	_, err := NewEngine([]byte(rulesYAML))
	if err == nil {
		t.Error("NewEngine() expected error for empty pattern")
	}
}

func TestNewEngine_PrioritySorting(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Low Priority"
    pattern: "LOW"
    match_type: "contains"
    priority: 100
    flags:
      liquidation: false
  - name: "High Priority"
    pattern: "HIGH"
    match_type: "contains"
    priority: 900
    flags:
      liquidation: true
  - name: "Medium Priority"
    pattern: "MED"
    match_type: "contains"
    priority: 500
    flags:
      liquidation: false
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if len(engine.rules) != 3 {
		t.Fatalf("NewEngine() rules count = %d, want 3", len(engine.rules))
	}

	if engine.rules[0].Name != "High Priority" {
		t.Errorf("rules[0].Name = %s, want High Priority", engine.rules[0].Name)
	}
	if engine.rules[1].Name != "Medium Priority" {
		t.Errorf("rules[1].Name = %s, want Medium Priority", engine.rules[1].Name)
	}
	if engine.rules[2].Name != "Low Priority" {
		t.Errorf("rules[2].Name = %s, want Low Priority", engine.rules[2].Name)
	}
}

func TestMatch_Contains(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Liquidation"
    pattern: "LIQUID"
    match_type: "contains"
    priority: 100
    flags:
      liquidation: true
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	tests := []struct {
		name        string
		description string
		wantMatch   bool
	}{
		{"exact word", "LIQUID", true},
		{"case insensitive", "liquidação de cotas", true},
		{"embedded", "Resgate p/ Liquidacao", true},
		{"no match", "TED recebida", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, matched := engine.Match(tt.description)
			if matched != tt.wantMatch {
				t.Errorf("Match(%q) matched = %v, want %v", tt.description, matched, tt.wantMatch)
			}
			if matched && !result.Liquidation {
				t.Errorf("Match(%q) liquidation = false, want true", tt.description)
			}
		})
	}
}

func TestMatch_Exact(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Exact Match Rule"
    pattern: "LIQUIDACAO FINANCEIRA"
    match_type: "exact"
    priority: 100
    flags:
      liquidation: true
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	tests := []struct {
		name        string
		description string
		wantMatch   bool
	}{
		{"exact match", "LIQUIDACAO FINANCEIRA", true},
		{"case insensitive", "liquidacao financeira", true},
		{"with whitespace", "  liquidacao financeira  ", true},
		{"substring only", "LIQUIDACAO FINANCEIRA CETIP", false},
		{"no match", "TARIFA", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, matched := engine.Match(tt.description)
			if matched != tt.wantMatch {
				t.Errorf("Match(%q) matched = %v, want %v", tt.description, matched, tt.wantMatch)
			}
		})
	}
}

func TestMatch_FirstMatchWins(t *testing.T) {
	rulesYAML := `
rules:
  - name: "High Priority"
    pattern: "CETIP"
    match_type: "contains"
    priority: 900
    flags:
      liquidation: true
  - name: "Low Priority"
    pattern: "CETIP"
    match_type: "contains"
    priority: 100
    flags:
      liquidation: false
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	result, matched := engine.Match("LIQ CETIP D0")
	if !matched {
		t.Fatal("Match() expected match for LIQ CETIP D0")
	}
	if result.RuleName != "High Priority" {
		t.Errorf("Match() ruleName = %s, want High Priority", result.RuleName)
	}
	if !result.Liquidation {
		t.Error("Match() liquidation = false, want true")
	}
}

func TestMatch_NoMatch(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Specific Rule"
    pattern: "LIQUID"
    match_type: "contains"
    priority: 100
    flags:
      liquidation: true
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	result, matched := engine.Match("Pagamento fornecedor")
	if matched {
		t.Error("Match() expected no match for Pagamento fornecedor")
	}
	if result != nil {
		t.Error("Match() result should be nil when no match")
	}
}

func TestLoadEmbedded(t *testing.T) {
	engine, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	if len(engine.rules) == 0 {
		t.Error("LoadEmbedded() returned empty rules")
	}

	for i := 1; i < len(engine.rules); i++ {
		if engine.rules[i].Priority > engine.rules[i-1].Priority {
			t.Errorf("LoadEmbedded() rules not sorted: rules[%d].Priority (%d) > rules[%d].Priority (%d)",
				i, engine.rules[i].Priority, i-1, engine.rules[i-1].Priority)
		}
	}

	tests := []struct {
		description     string
		wantMatch       bool
		wantLiquidation bool
	}{
		{"Liquidação de títulos", true, true},
		{"LIQ CETIP", true, true},
		{"Resgate Selic", true, true},
		{"TED recebida", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			result, matched := engine.Match(tt.description)
			if matched != tt.wantMatch {
				t.Errorf("Match(%q) matched = %v, want %v", tt.description, matched, tt.wantMatch)
			}
			if matched && result.Liquidation != tt.wantLiquidation {
				t.Errorf("Match(%q) liquidation = %v, want %v", tt.description, result.Liquidation, tt.wantLiquidation)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	rulesFile := filepath.Join(tmpDir, "custom_rules.yaml")

	rulesYAML := `
rules:
  - name: "Custom Rule"
    pattern: "RESGATE"
    match_type: "contains"
    priority: 100
    flags:
      liquidation: true
`

	err := os.WriteFile(rulesFile, []byte(rulesYAML), 0644)
	if err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	engine, err := LoadFromFile(rulesFile)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	result, matched := engine.Match("Resgate de cotas")
	if !matched {
		t.Error("Match() expected match for Resgate de cotas")
	}
	if !result.Liquidation {
		t.Error("Match() liquidation = false, want true")
	}
}

func TestLoadFromFile_NotExists(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/rules.yaml")
	if err == nil {
		t.Error("LoadFromFile() expected error for non-existent file")
	}
}

func TestGetRules(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Test Rule"
    pattern: "LIQUID"
    match_type: "contains"
    priority: 100
    flags:
      liquidation: true
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	rules := engine.GetRules()
	if len(rules) != 1 {
		t.Errorf("GetRules() count = %d, want 1", len(rules))
	}

	rules[0].Name = "Modified"
	originalRules := engine.GetRules()
	if originalRules[0].Name == "Modified" {
		t.Error("GetRules() did not return a defensive copy")
	}
}

func TestNewEngine_InvalidYAML(t *testing.T) {
	invalidYAML := `
rules:
  - name: "Invalid"
    invalid_field: [this is not proper YAML structure
`

	_, err := NewEngine([]byte(invalidYAML))
	if err == nil {
		t.Error("NewEngine() expected error for invalid YAML")
	}
}
