// Package theme styles the checkin CLI output.
package theme

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/checkin/internal/domain"
)

// Color palette, kid-friendly
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Label = lipgloss.NewStyle().
		Foreground(TextDim).
		Width(12)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Secondary)
)

// Card frames a question or lesson.
var Card = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Border).
	Padding(0, 1)

// Outcomes
var (
	Correct = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Incorrect = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	Warning = lipgloss.NewStyle().
		Foreground(Accent).
		Bold(true)
)

// Status colors a session status: locked states warn, closed states pass.
func Status(s domain.SessionStatus) string {
	switch s {
	case domain.StatusFullStop, domain.StatusRemediation:
		return Incorrect.Render(string(s))
	case domain.StatusCompleted, domain.StatusParentUnlocked:
		return Correct.Render(string(s))
	default:
		return Warning.Render(string(s))
	}
}

// Strikes draws the remaining strikes as filled dots out of total.
func Strikes(remaining, total int) string {
	remaining = max(0, min(remaining, total))
	return Incorrect.Render(strings.Repeat("●", remaining)) +
		Hint.Render(strings.Repeat("○", total-remaining))
}

// Field renders a "label value" line.
func Field(label, value string) string {
	return Label.Render(label) + " " + value
}

// Rule is a horizontal separator of width n.
func Rule(n int) string {
	return Hint.Render(strings.Repeat("─", n))
}
