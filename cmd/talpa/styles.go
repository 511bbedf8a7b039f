package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/alekspetrov/talpa/internal/routes"
)

// Palette shared with the setup form.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7eb8da")) // steel blue

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7ec699")) // sage green

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d48a8a")) // dusty rose

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4a054")) // amber

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c9d1d9")) // light gray

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7eb8da"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8b949e")) // mid gray

	boldStyle = lipgloss.NewStyle().Bold(true)
)

// printStep prints "  → label ok".
func printStep(w io.Writer, label string) {
	fmt.Fprintf(w, "  %s %s %s\n", dimStyle.Render("→"), label, successStyle.Render("ok"))
}

// printWarning prints a DNS warning and its remediation hint.
func printWarning(w io.Writer, warning *routes.Warning) {
	fmt.Fprintf(w, "  %s %s\n", warnStyle.Render("⚠"), warning.String())
	if warning.Hint != "" {
		fmt.Fprintf(w, "    %s\n", dimStyle.Render(warning.Hint))
	}
}
