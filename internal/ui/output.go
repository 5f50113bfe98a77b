// Package ui prints formatted CLI output for the treasury tool.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan)
	red    = color.New(color.FgRed)
)

// Header prints a formatted section header
func Header(text string) {
	line := strings.Repeat("=", 60)
	green.Printf("\n%s\n", line)
	green.Printf("%-60s\n", center(text, 60))
	green.Printf("%s\n\n", line)
}

// Step prints a step indicator
func Step(stepNum, totalSteps int, text string) {
	yellow.Printf("[%d/%d] %s\n", stepNum, totalSteps, text)
}

// Success prints a success message
func Success(text string) {
	green.Printf("  → %s\n", text)
}

// Info prints an info message
func Info(text string) {
	fmt.Printf("  → %s\n", text)
}

// Detail prints an indented key/value line
func Detail(label string, value any) {
	fmt.Printf("      %-22s %v\n", label+":", value)
}

// Warning prints a warning message
func Warning(text string) {
	yellow.Printf("  ⚠ %s\n", text)
}

// Error prints an error message
func Error(text string) {
	red.Printf("Error: %s\n", text)
}

// CyanText prints cyan text
func CyanText(text string) {
	cyan.Println(text)
}

// center centers text within a given width
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
