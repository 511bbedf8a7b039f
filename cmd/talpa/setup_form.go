package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alekspetrov/talpa/internal/cloudflare"
)

type formField struct {
	label  string
	value  string
	secret bool
}

// setupModel is the bubbletea form that collects the four credentials.
type setupModel struct {
	fields  []formField
	focus   int
	err     string
	done    bool
	aborted bool

	backend string
	service string
}

func newSetupModel(initial cloudflare.Credentials) *setupModel {
	return &setupModel{
		fields: []formField{
			{label: "Account ID", value: initial.AccountID},
			{label: "Zone ID", value: initial.ZoneID},
			{label: "Tunnel ID", value: initial.TunnelID},
			{label: "API Token", value: initial.APIToken, secret: true},
		},
	}
}

// Credentials returns the entered values, trimmed.
func (m *setupModel) Credentials() cloudflare.Credentials {
	return cloudflare.Credentials{
		AccountID: strings.TrimSpace(m.fields[0].value),
		ZoneID:    strings.TrimSpace(m.fields[1].value),
		TunnelID:  strings.TrimSpace(m.fields[2].value),
		APIToken:  strings.TrimSpace(m.fields[3].value),
	}
}

// Init implements tea.Model
func (m *setupModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m *setupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	field := &m.fields[m.focus]
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.aborted = true
		return m, tea.Quit

	case tea.KeyEnter:
		if strings.TrimSpace(field.value) == "" {
			m.err = field.label + " cannot be empty"
			return m, nil
		}
		m.err = ""
		if next := m.firstEmpty(); next >= 0 {
			m.focus = next
			return m, nil
		}
		m.done = true
		return m, tea.Quit

	case tea.KeyTab, tea.KeyDown:
		m.focus = (m.focus + 1) % len(m.fields)

	case tea.KeyShiftTab, tea.KeyUp:
		m.focus = (m.focus + len(m.fields) - 1) % len(m.fields)

	case tea.KeyBackspace:
		if r := []rune(field.value); len(r) > 0 {
			field.value = string(r[:len(r)-1])
		}

	case tea.KeyCtrlU:
		field.value = ""

	case tea.KeyRunes, tea.KeySpace:
		field.value += string(key.Runes)
		if key.Type == tea.KeySpace && len(key.Runes) == 0 {
			field.value += " "
		}
		m.err = ""
	}

	return m, nil
}

// firstEmpty returns the index of the first empty field, or -1.
func (m *setupModel) firstEmpty() int {
	for i, f := range m.fields {
		if strings.TrimSpace(f.value) == "" {
			return i
		}
	}
	return -1
}

// View implements tea.Model
func (m *setupModel) View() string {
	if m.done || m.aborted {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Tunnel CLI Setup"))
	b.WriteString("\n\n")
	if m.backend != "" {
		fmt.Fprintf(&b, "  Credentials will be stored in the %s backend\n", m.backend)
		if m.service != "" {
			fmt.Fprintf(&b, "  under the service: %s\n", dimStyle.Render(m.service))
		}
		b.WriteString("\n")
	}

	for i, f := range m.fields {
		value := f.value
		if f.secret {
			value = strings.Repeat("•", len([]rune(value)))
		}

		marker := dimStyle.Render("→")
		label := labelStyle.Render(f.label + ":")
		if i == m.focus {
			marker = warnStyle.Render("▸")
			value += warnStyle.Render("█")
		}
		fmt.Fprintf(&b, "  %s %s %s\n", marker, label, valueStyle.Render(value))
	}

	if m.err != "" {
		b.WriteString("\n  " + failStyle.Render(m.err) + "\n")
	}
	b.WriteString("\n  " + dimStyle.Render("enter next · tab/shift+tab move · esc cancel") + "\n")
	return b.String()
}
