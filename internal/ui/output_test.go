package ui

import (
	"testing"
)

func TestCenter(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		width    int
		expected string
	}{
		{
			name:     "text shorter than width",
			text:     "Hello",
			width:    15,
			expected: "     Hello",
		},
		{
			name:     "text same as width",
			text:     "Hello",
			width:    5,
			expected: "Hello",
		},
		{
			name:     "text longer than width",
			text:     "Hello World",
			width:    5,
			expected: "Hello World",
		},
		{
			name:     "even padding",
			text:     "Test",
			width:    10,
			expected: "   Test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := center(tt.text, tt.width)
			if result != tt.expected {
				t.Errorf("center(%q, %d) = %q; want %q", tt.text, tt.width, result, tt.expected)
			}
		})
	}
}

func TestOutputFunctionsDoNotPanic(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"Header", func() { Header("Treasury Import") }},
		{"Step", func() { Step(1, 4, "Parsing statement") }},
		{"Success", func() { Success("done") }},
		{"Info", func() { Info("3 transactions") }},
		{"Detail", func() { Detail("New transactions", 3) }},
		{"Warning", func() { Warning("2 rows skipped") }},
		{"Error", func() { Error("parse failed") }},
		{"CyanText", func() { CyanText("arbi") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn()
		})
	}
}
