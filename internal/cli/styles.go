// Package cli provides styled terminal output, prompts and interrupt handling
// for the recon commands.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/balance-sync-recon/internal/model"
)

// Palette. Green means reconciled, amber means the balances drifted apart,
// red means the arithmetic itself is wrong.
var (
	accent    = lipgloss.Color("#5DADE2")
	reconcile = lipgloss.Color("#58D68D")
	drift     = lipgloss.Color("#F5B041")
	broken    = lipgloss.Color("#EC7063")
	muted     = lipgloss.Color("#7F8C8D")
	rule      = lipgloss.Color("#34495E")
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)
	SuccessStyle = lipgloss.NewStyle().Foreground(reconcile)
	WarningStyle = lipgloss.NewStyle().Foreground(drift)
	ErrorStyle   = lipgloss.NewStyle().Foreground(broken)
	InfoStyle    = lipgloss.NewStyle().Foreground(accent)
	SubtleStyle  = lipgloss.NewStyle().Foreground(muted)
	PromptStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)

	// BoxStyle frames summary blocks.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(rule).
			Padding(0, 2)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(rule)
	TableCellStyle = lipgloss.NewStyle().PaddingRight(2)
)

const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "!"
	InfoIcon    = "»"
	LedgerIcon  = "≡"
)

func FormatSuccess(message string) string { return SuccessStyle.Render(SuccessIcon + " " + message) }
func FormatError(message string) string   { return ErrorStyle.Render(ErrorIcon + " " + message) }
func FormatWarning(message string) string { return WarningStyle.Render(WarningIcon + " " + message) }
func FormatInfo(message string) string    { return InfoStyle.Render(InfoIcon + " " + message) }

// FormatTitle renders a top-level heading.
func FormatTitle(title string) string {
	return TitleStyle.Render(LedgerIcon + " " + title)
}

// FormatPrompt renders a question awaiting input.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " →")
}

// FormatMismatch colors a mismatch type by severity.
func FormatMismatch(m model.MismatchType) string {
	switch m {
	case model.MismatchNone:
		return SuccessStyle.Render(string(m))
	case model.MismatchBalanceSync:
		return WarningStyle.Render(string(m))
	default:
		return ErrorStyle.Render(string(m))
	}
}

// RenderBox frames content under a heading.
func RenderBox(title, content string) string {
	heading := TitleStyle.UnsetMargins().Render(title)
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, heading, content))
}

func StyleTitle(text string) string   { return TitleStyle.Render(text) }
func StyleSuccess(text string) string { return SuccessStyle.Render(text) }
func StyleWarning(text string) string { return WarningStyle.Render(text) }
func StyleError(text string) string   { return ErrorStyle.Render(text) }
