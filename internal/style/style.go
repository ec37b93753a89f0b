// Package style renders transaction state for terminal output (the
// "tyloo inspect" CLI command), grounded on the teacher's fancy package:
// github.com/charmbracelet/lipgloss styles keyed off domain state rather
// than generic text.
package style

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/tylooteam/tyloo/internal/txcore"
)

var (
	colorBlue    = lipgloss.Color("39")
	colorGreen   = lipgloss.Color("82")
	colorYellow  = lipgloss.Color("228")
	colorRed     = lipgloss.Color("196")
	colorGray    = lipgloss.Color("250")
	colorMagenta = lipgloss.Color("201")
)

var (
	rootStyle   = lipgloss.NewStyle().Foreground(colorBlue).Bold(true)
	branchStyle = lipgloss.NewStyle().Foreground(colorMagenta)

	tryingStyle     = lipgloss.NewStyle().Foreground(colorYellow)
	confirmingStyle = lipgloss.NewStyle().Foreground(colorGreen)
	cancellingStyle = lipgloss.NewStyle().Foreground(colorRed)
	unknownStyle    = lipgloss.NewStyle().Foreground(colorGray)

	headerStyle = lipgloss.NewStyle().Bold(true)
	infoStyle   = lipgloss.NewStyle().Foreground(colorGray).Italic(true)
)

// Type renders a transaction Type with its color.
func Type(t txcore.Type) string {
	switch t {
	case txcore.Root:
		return rootStyle.Render(string(t))
	case txcore.Branch:
		return branchStyle.Render(string(t))
	default:
		return unknownStyle.Render(string(t))
	}
}

// Status renders a transaction Status with its color.
func Status(s txcore.Status) string {
	switch s {
	case txcore.StatusTrying:
		return tryingStyle.Render(s.String())
	case txcore.StatusConfirming:
		return confirmingStyle.Render(s.String())
	case txcore.StatusCancelling:
		return cancellingStyle.Render(s.String())
	default:
		return unknownStyle.Render(s.String())
	}
}

// Header renders a section header.
func Header(text string) string {
	return headerStyle.Render(text)
}

// Info renders descriptive, non-critical text.
func Info(text string) string {
	return infoStyle.Render(text)
}

// Record renders a one-line summary of a persisted transaction record,
// the row format "tyloo inspect" lists.
func Record(rec txcore.Record) string {
	return fmt.Sprintf(
		"%s  %s  %s  retries=%d  participants=%d",
		rec.Xid, Type(rec.Type), Status(rec.Status), rec.RetriedCount, len(rec.Participants),
	)
}
